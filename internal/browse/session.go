// Package browse holds the state of a coding rules browsing session: the
// current query, the loaded pages of rules, facet counts, selection and the
// details of the open rule.
package browse

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/JNZader/codingrules/internal/logger"
	"github.com/JNZader/codingrules/internal/metrics"
	"github.com/JNZader/codingrules/internal/profiles"
	"github.com/JNZader/codingrules/internal/rules"
	"github.com/JNZader/codingrules/internal/sonar"
	"github.com/JNZader/codingrules/internal/worker"
)

// DefaultPageSize is the number of rules requested per page.
const DefaultPageSize = 100

// ErrStale is returned for a response superseded by a newer request or
// arriving after the session was closed. Its result has been discarded.
var ErrStale = errors.New("stale response discarded")

// API is the subset of the rules API used by a session.
type API interface {
	GetRulesApp(ctx context.Context) (rules.AppResponse, error)
	SearchProfiles(ctx context.Context, language string) ([]profiles.Profile, error)
	SearchRules(ctx context.Context, params sonar.SearchParams) (rules.SearchResponse, error)
	GetRuleDetails(ctx context.Context, key string) (rules.ShowResponse, error)
}

// Options configures a session.
type Options struct {
	PageSize         int
	AllowCustomRules bool
	Logger           *logger.Logger
	Metrics          *metrics.Collector
}

// Session is safe for concurrent use. Network calls run without holding the
// session lock; their results are applied only if no newer request of the
// same kind was issued meanwhile.
type Session struct {
	api  API
	opts Options
	log  *logger.Logger
	met  *metrics.Collector

	mu           sync.Mutex
	closed       bool
	loading      bool
	canWrite     bool
	repositories map[string]rules.Repository
	referenced   profiles.Index
	query        rules.Query
	openFacets   map[rules.FacetKey]bool
	facets       rules.Facets
	actives      rules.Actives
	list         []rules.Rule
	paging       *rules.Paging
	selected     string
	open         string

	listSeq uint64

	detailSeq    uint64
	detailCancel context.CancelFunc
	details      *Details
}

// New creates a session over api.
func New(api API, opts Options) *Session {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Global()
	}
	return &Session{
		api:        api,
		opts:       opts,
		log:        opts.Logger.WithPrefix("browse"),
		met:        opts.Metrics,
		referenced: profiles.Index{},
		openFacets: map[rules.FacetKey]bool{
			rules.FacetLanguages: false,
			rules.FacetTypes:     false,
		},
	}
}

// Init loads the session context, then the first page of rules matching
// query. The rule named by open, if any and present on the first page,
// becomes the open rule.
func (s *Session) Init(ctx context.Context, query rules.Query, open string) error {
	s.mu.Lock()
	s.query = query
	s.open = open
	s.mu.Unlock()

	if err := s.LoadContext(ctx); err != nil {
		return err
	}
	return s.FetchFirst(ctx)
}

// LoadContext loads the rules app data and the quality profiles
// concurrently. Details can be loaded once it returns.
func (s *Session) LoadContext(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	var (
		app  rules.AppResponse
		list []profiles.Profile
	)
	results := worker.Run(ctx, worker.Config{Workers: 2},
		worker.NewFuncTask("rules-app", func(ctx context.Context) error {
			var err error
			app, err = s.api.GetRulesApp(ctx)
			return err
		}),
		worker.NewFuncTask("profiles", func(ctx context.Context) error {
			var err error
			list, err = s.api.SearchProfiles(ctx, "")
			return err
		}),
	)
	if err := worker.FirstError(results); err != nil {
		s.stopLoading()
		return fmt.Errorf("loading initial data: %w", err)
	}

	repos := make(map[string]rules.Repository, len(app.Repositories))
	for _, r := range app.Repositories {
		repos[r.Key] = r
	}

	s.mu.Lock()
	s.loading = false
	s.canWrite = app.CanWrite
	s.repositories = repos
	s.referenced = profiles.KeyBy(list)
	s.mu.Unlock()

	s.log.Debug("loaded %d repositories and %d profiles", len(repos), len(list))
	return nil
}

// CanWrite reports the caller's write capability on rules.
func (s *Session) CanWrite() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canWrite
}

// Profiles returns the referenced quality profiles.
func (s *Session) Profiles() profiles.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.referenced
}

// SetQuery changes the query and reloads the first page when it differs
// from the current one.
func (s *Session) SetQuery(ctx context.Context, query rules.Query) error {
	s.mu.Lock()
	same := s.query.Equal(query)
	s.query = query
	s.mu.Unlock()

	if same {
		return nil
	}
	return s.FetchFirst(ctx)
}

// ChangeFilter merges changes into the current query and reloads.
func (s *Session) ChangeFilter(ctx context.Context, changes rules.Query) error {
	s.mu.Lock()
	next := s.query.Merge(changes)
	s.mu.Unlock()
	return s.SetQuery(ctx, next)
}

// Reset clears every filter and reloads.
func (s *Session) Reset(ctx context.Context) error {
	return s.SetQuery(ctx, rules.Query{})
}

// Reload fetches the first page again with the current query.
func (s *Session) Reload(ctx context.Context) error {
	return s.FetchFirst(ctx)
}

// FetchFirst replaces the loaded rules with the first page of the current
// query, requesting counts for the open facets.
func (s *Session) FetchFirst(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.listSeq++
	seq := s.listSeq
	params := s.searchParams()
	s.mu.Unlock()

	resp, err := s.api.SearchRules(ctx, params)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.listSeq || s.closed {
		s.met.Counter(metrics.MetricStaleResponses).Inc()
		return ErrStale
	}
	s.loading = false
	if err != nil {
		return fmt.Errorf("searching rules: %w", err)
	}

	paging := resp.Paging()
	s.actives = nil
	if resp.Actives != nil {
		s.actives = rules.ParseActives(resp.Actives)
	}
	s.facets = nil
	if resp.Facets != nil {
		s.facets = rules.ParseFacets(resp.Facets)
	}
	s.paging = &paging
	s.list = resp.Rules
	s.met.Counter(metrics.MetricRulesFetched).Add(int64(len(resp.Rules)))

	s.selected = ""
	if len(s.list) > 0 {
		s.selected = s.list[0].Key
		if s.open != "" && rules.IndexOf(s.list, s.open) >= 0 {
			s.selected = s.open
		}
	}
	return nil
}

// FetchMore appends the next page of rules. It is a no-op before the first
// page was loaded or when every rule is already loaded. Facets are not
// requested again.
func (s *Session) FetchMore(ctx context.Context) error {
	s.mu.Lock()
	if s.paging == nil || !s.paging.HasMore(len(s.list)) {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	seq := s.listSeq
	params := s.searchParams()
	params.Page = s.paging.PageIndex + 1
	params.Facets = nil
	s.mu.Unlock()

	resp, err := s.api.SearchRules(ctx, params)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.listSeq || s.closed {
		s.met.Counter(metrics.MetricStaleResponses).Inc()
		return ErrStale
	}
	s.loading = false
	if err != nil {
		return fmt.Errorf("fetching page %d: %w", params.Page, err)
	}
	if s.paging == nil || params.Page != s.paging.PageIndex+1 {
		// An overlapping call already appended this page.
		s.met.Counter(metrics.MetricStaleResponses).Inc()
		return ErrStale
	}

	paging := resp.Paging()
	if resp.Actives != nil {
		s.actives = s.actives.Merge(rules.ParseActives(resp.Actives))
	}
	s.paging = &paging
	s.list = append(s.list, resp.Rules...)
	s.met.Counter(metrics.MetricRulesFetched).Add(int64(len(resp.Rules)))
	return nil
}

// FetchFacet loads the counts of a single facet with a one-rule page.
func (s *Session) FetchFacet(ctx context.Context, facet rules.FacetKey) error {
	s.mu.Lock()
	s.loading = true
	seq := s.listSeq
	params := s.searchParams()
	params.PageSize = 1
	params.Facets = []rules.FacetKey{facet}
	s.mu.Unlock()

	resp, err := s.api.SearchRules(ctx, params)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.listSeq || s.closed {
		s.met.Counter(metrics.MetricStaleResponses).Inc()
		return ErrStale
	}
	s.loading = false
	if err != nil {
		return fmt.Errorf("fetching facet %s: %w", facet, err)
	}
	s.facets = s.facets.Merge(rules.ParseFacets(resp.Facets))
	return nil
}

// ToggleFacet opens or closes a facet and reports its new state. Opening a
// requestable facet whose counts are not loaded fetches them.
func (s *Session) ToggleFacet(ctx context.Context, facet rules.FacetKey) (bool, error) {
	s.mu.Lock()
	open := !s.openFacets[facet]
	s.openFacets[facet] = open
	_, loaded := s.facets[facet]
	s.mu.Unlock()

	if rules.ShouldRequestFacet(facet) && !loaded {
		if err := s.FetchFacet(ctx, facet); err != nil {
			return open, err
		}
	}
	return open, nil
}

// CloseFacet marks a facet closed.
func (s *Session) CloseFacet(facet rules.FacetKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openFacets[facet] = false
}

// SelectNext moves the selection down. When a rule is open, the next rule
// is opened instead. It returns the new selection, or "" at the end.
func (s *Session) SelectNext() string {
	return s.move(1)
}

// SelectPrevious moves the selection up, like SelectNext.
func (s *Session) SelectPrevious() string {
	return s.move(-1)
}

func (s *Session) move(delta int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := rules.IndexOf(s.list, s.selected)
	next := idx + delta
	if idx < 0 || next < 0 || next >= len(s.list) {
		return ""
	}
	key := s.list[next].Key
	s.selected = key
	if s.open != "" {
		s.open = key
	}
	return key
}

// OpenRule opens and selects a rule.
func (s *Session) OpenRule(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = key
	s.selected = key
}

// OpenSelected opens the selected rule, if any.
func (s *Session) OpenSelected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != "" {
		s.open = s.selected
	}
	return s.open
}

// CloseRule closes the open rule and drops its details. The selection is
// kept.
func (s *Session) CloseRule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = ""
	s.cancelDetailsLocked()
}

// RemoveRule drops a deleted rule from the loaded list.
func (s *Session) RemoveRule(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := rules.IndexOf(s.list, key)
	if idx < 0 {
		return
	}
	s.list = append(s.list[:idx:idx], s.list[idx+1:]...)
	if s.paging != nil && s.paging.Total > 0 {
		s.paging.Total--
	}
	if s.open == key {
		s.open = ""
		s.cancelDetailsLocked()
	}
	if s.selected == key {
		s.selected = ""
		switch {
		case idx < len(s.list):
			s.selected = s.list[idx].Key
		case len(s.list) > 0:
			s.selected = s.list[len(s.list)-1].Key
		}
	}
}

// Activation returns the activation of rule in the query's profile.
func (s *Session) Activation(rule string) (rules.ActiveSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actives.Lookup(rule, s.query.Profile)
}

// SelectedProfile returns the profile the query filters on.
func (s *Session) SelectedProfile() (profiles.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.query.Profile == "" {
		return profiles.Profile{}, false
	}
	return s.referenced.Get(s.query.Profile)
}

// Close discards any in-flight response and stops pending detail loads.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancelDetailsLocked()
}

// State is a point-in-time copy of the session.
type State struct {
	Loading      bool
	CanWrite     bool
	Query        rules.Query
	Rules        []rules.Rule
	Paging       *rules.Paging
	Facets       rules.Facets
	OpenFacets   []rules.FacetKey
	Actives      rules.Actives
	Selected     string
	Open         string
	Profiles     profiles.Index
	Repositories map[string]rules.Repository
	Filtered     bool
}

// Snapshot returns a copy of the current state. Later fetches do not
// change a returned State.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Loading:      s.loading,
		CanWrite:     s.canWrite,
		Query:        s.query,
		Rules:        append([]rules.Rule(nil), s.list...),
		Facets:       s.facets.Clone(),
		Actives:      s.actives.Clone(),
		Selected:     s.selected,
		Profiles:     maps.Clone(s.referenced),
		Repositories: maps.Clone(s.repositories),
		Filtered:     s.query.IsFiltered(),
	}
	if s.paging != nil {
		p := *s.paging
		st.Paging = &p
	}
	for _, f := range rules.FacetKeys() {
		if s.openFacets[f] {
			st.OpenFacets = append(st.OpenFacets, f)
		}
	}
	if s.open != "" && rules.IndexOf(s.list, s.open) >= 0 {
		st.Open = s.open
	}
	return st
}

func (s *Session) searchParams() sonar.SearchParams {
	var facets []rules.FacetKey
	for _, f := range rules.FacetKeys() {
		if s.openFacets[f] && rules.ShouldRequestFacet(f) {
			facets = append(facets, f)
		}
	}
	return sonar.SearchParams{
		Query:    s.query,
		Fields:   rules.SearchFields(s.query.Profile != ""),
		Facets:   facets,
		PageSize: s.opts.PageSize,
		Sort:     "name",
	}
}

func (s *Session) stopLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
}
