package browse

import (
	"context"
	"errors"
	"fmt"

	"github.com/JNZader/codingrules/internal/activation"
	"github.com/JNZader/codingrules/internal/history"
	"github.com/JNZader/codingrules/internal/metrics"
	"github.com/JNZader/codingrules/internal/profiles"
	"github.com/JNZader/codingrules/internal/rules"
	"github.com/JNZader/codingrules/internal/sonar"
)

// customRuleFields are the fields listed for the custom rules of a template.
var customRuleFields = []string{"name", "severity", "params"}

// Details is the view of an open rule.
type Details struct {
	Rule    rules.Details      `json:"rule"`
	Actives []rules.Activation `json:"actives,omitempty"`

	// IsCustom marks rules instantiated from a template.
	IsCustom bool `json:"isCustom"`
	// IsEditable allows editing and deleting a custom rule.
	IsEditable bool `json:"isEditable"`

	// Profiles holds one reconciled row per activation for non-template
	// rules. ShowParams is false for custom rules, whose parameters are
	// fixed by the template.
	Profiles   []activation.Row `json:"profiles,omitempty"`
	ShowParams bool             `json:"showParams"`

	// CustomRules lists the rules created from a template rule.
	CustomRules []CustomRule `json:"customRules,omitempty"`
	// CanChangeCustom allows creating and deleting custom rules.
	CanChangeCustom bool `json:"canChangeCustom"`

	// Issues is set when the unresolved issues of the rule were counted.
	Issues *rules.IssueCount `json:"issues,omitempty"`
}

// CustomRule is a rule created from a template. Params only holds
// parameters with a default value.
type CustomRule struct {
	Key      string         `json:"key"`
	Name     string         `json:"name"`
	Severity rules.Severity `json:"severity"`
	Params   []rules.Param  `json:"params,omitempty"`
}

// LoadDetails fetches the details of a rule. Requests are last-requested
// wins: a new call cancels the previous one, and a response arriving after
// a newer call, CloseRule or Close yields ErrStale.
func (s *Session) LoadDetails(ctx context.Context, key string) (*Details, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStale
	}
	s.cancelDetailsLocked()
	s.detailSeq++
	seq := s.detailSeq
	dctx, cancel := context.WithCancel(ctx)
	s.detailCancel = cancel
	canWrite := s.canWrite
	referenced := s.referenced
	s.mu.Unlock()

	details, err := s.fetchDetails(dctx, key, canWrite, referenced)

	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.detailSeq || s.closed {
		s.met.Counter(metrics.MetricStaleResponses).Inc()
		s.log.Debug("discarding details of %s", key)
		return nil, ErrStale
	}
	s.detailCancel = nil
	if err != nil {
		return nil, err
	}
	s.details = details
	return details, nil
}

// CurrentDetails returns the last applied details, or nil.
func (s *Session) CurrentDetails() *Details {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.details
}

// BuildDetails derives the details view of an already fetched rule. It does
// not touch the current details.
func (s *Session) BuildDetails(ctx context.Context, resp rules.ShowResponse) *Details {
	s.mu.Lock()
	canWrite, referenced := s.canWrite, s.referenced
	s.mu.Unlock()
	return s.buildDetails(ctx, resp, canWrite, referenced)
}

func (s *Session) cancelDetailsLocked() {
	if s.detailCancel != nil {
		s.detailCancel()
		s.detailCancel = nil
	}
	s.detailSeq++
	s.details = nil
}

func (s *Session) fetchDetails(ctx context.Context, key string, canWrite bool, referenced profiles.Index) (*Details, error) {
	resp, err := s.api.GetRuleDetails(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("loading rule %s: %w", key, err)
	}
	return s.buildDetails(ctx, resp, canWrite, referenced), nil
}

func (s *Session) buildDetails(ctx context.Context, resp rules.ShowResponse, canWrite bool, referenced profiles.Index) *Details {
	rule := resp.Rule
	d := &Details{
		Rule:       rule,
		Actives:    resp.Actives,
		IsCustom:   rule.IsCustom(),
		IsEditable: canWrite && s.opts.AllowCustomRules && rule.IsCustom(),
		ShowParams: !rule.IsCustom(),
	}

	if rule.IsTemplate {
		d.CanChangeCustom = s.opts.AllowCustomRules && canWrite
		custom, err := s.customRules(ctx, rule.Key)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("listing custom rules of %s: %v", rule.Key, err)
		}
		d.CustomRules = custom
		return d
	}

	d.Profiles = activation.ReconcileAll(resp.Actives, referenced, activation.Options{
		CanWrite:       canWrite,
		RuleLanguage:   rule.Lang,
		RuleIsTemplate: rule.IsTemplate,
	})
	s.met.Counter(metrics.MetricRowsReconciled).Add(int64(len(d.Profiles)))
	return d
}

func (s *Session) customRules(ctx context.Context, templateKey string) ([]CustomRule, error) {
	resp, err := s.api.SearchRules(ctx, sonar.SearchParams{
		Query:  rules.Query{TemplateKey: templateKey},
		Fields: customRuleFields,
	})
	if err != nil {
		return nil, err
	}
	out := make([]CustomRule, 0, len(resp.Rules))
	for _, r := range resp.Rules {
		cr := CustomRule{Key: r.Key, Name: r.Name, Severity: r.Severity}
		for _, p := range r.Params {
			if p.DefaultValue != "" {
				cr.Params = append(cr.Params, p)
			}
		}
		out = append(out, cr)
	}
	return out, nil
}

// HistoryView summarizes the details for the viewed-rules history.
func (d *Details) HistoryView() *history.View {
	overridden := 0
	for _, row := range d.Profiles {
		if row.Overridden() {
			overridden++
		}
	}
	return &history.View{
		RuleKey:    d.Rule.Key,
		RuleName:   d.Rule.Name,
		Language:   d.Rule.Lang,
		Severity:   string(d.Rule.Severity),
		Type:       string(d.Rule.Type),
		Profiles:   len(d.Profiles),
		Overridden: overridden,
	}
}
