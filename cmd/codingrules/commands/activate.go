package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JNZader/codingrules/internal/activation"
	"github.com/JNZader/codingrules/internal/browse"
	"github.com/JNZader/codingrules/internal/profiles"
	"github.com/JNZader/codingrules/internal/rules"
	"github.com/JNZader/codingrules/internal/sonar"
)

var activateCmd = &cobra.Command{
	Use:   "activate <profile> <rule-key>",
	Short: "Activate a rule in a quality profile, or change its activation",
	Long: `Activate a rule in a quality profile. When the rule is already active,
the given severity and parameters replace the current ones.

The profile is a profile key, or a profile name of the rule's language.

Examples:
  codingrules activate "Team way" go:S100 --severity MAJOR
  codingrules activate AYx1 go:S100 --param format='^[a-z][a-zA-Z0-9]*$'`,
	Args: cobra.ExactArgs(2),
	RunE: runActivate,
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate <profile> <rule-key>",
	Short: "Deactivate a rule in a quality profile",
	Long: `Deactivate a rule in a quality profile. Rules a profile inherits must be
deactivated in the parent profile.`,
	Args: cobra.ExactArgs(2),
	RunE: runDeactivate,
}

var revertCmd = &cobra.Command{
	Use:   "revert <profile> <rule-key>",
	Short: "Revert an overriding activation to the parent's definition",
	Args:  cobra.ExactArgs(2),
	RunE:  runRevert,
}

var (
	activateSeverity string
	activateParams   []string
)

func init() {
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(deactivateCmd)
	rootCmd.AddCommand(revertCmd)

	activateCmd.Flags().StringVar(&activateSeverity, "severity", "", "activation severity")
	activateCmd.Flags().StringArrayVar(&activateParams, "param", nil, "parameter as key=value (repeatable)")
}

// Activation changes.
const (
	actionActivate   = "activate"
	actionChange     = "change"
	actionDeactivate = "deactivate"
	actionRevert     = "revert"
)

// ErrNotAllowed is returned when a profile does not allow a change.
var ErrNotAllowed = errors.New("not allowed")

// target is a rule and profile an activation change applies to.
type target struct {
	details  *browse.Details
	profile  profiles.Profile
	row      *activation.Row
	canWrite bool
}

// loadTarget loads the rule with its reconciled rows and resolves the
// profile argument.
func loadTarget(ctx context.Context, a *app, profileArg, ruleKey string) (*target, error) {
	session := a.browser()
	defer session.Close()

	if err := session.LoadContext(ctx); err != nil {
		return nil, err
	}
	d, err := session.LoadDetails(ctx, ruleKey)
	if err != nil {
		return nil, err
	}

	p, err := resolveProfile(session.Profiles(), profileArg, d.Rule.Lang)
	if err != nil {
		return nil, err
	}

	t := &target{details: d, profile: p, canWrite: session.CanWrite()}
	for i := range d.Profiles {
		if d.Profiles[i].ProfileKey == p.Key {
			t.row = &d.Profiles[i]
			break
		}
	}
	return t, nil
}

// resolveProfile finds a profile by key, then by name among the profiles
// of lang.
func resolveProfile(idx profiles.Index, arg, lang string) (profiles.Profile, error) {
	if p, ok := idx.Get(arg); ok {
		return p, nil
	}
	var matches []profiles.Profile
	for _, p := range idx.ForLanguage(lang) {
		if strings.EqualFold(p.Name, arg) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return profiles.Profile{}, fmt.Errorf("unknown quality profile %q", arg)
	case 1:
		return matches[0], nil
	default:
		return profiles.Profile{}, fmt.Errorf("quality profile name %q is ambiguous, use its key", arg)
	}
}

// checkAllowed decides from the reconciled row whether action may be
// applied to the target.
func checkAllowed(action string, t *target) error {
	rule := t.details.Rule
	deny := func(reason string, args ...any) error {
		return fmt.Errorf("cannot %s %s in %s: %s: %w", action, rule.Key, t.profile.Name, fmt.Sprintf(reason, args...), ErrNotAllowed)
	}

	switch action {
	case actionActivate:
		if rule.IsTemplate {
			return deny("template rules cannot be activated")
		}
		if t.row != nil {
			return deny("rule is already active")
		}
		if t.profile.Language != rule.Lang {
			return deny("profile language is %s, rule language is %s", t.profile.Language, rule.Lang)
		}
		if !t.canWrite || !t.profile.Editable() {
			return deny("profile is not editable")
		}
	case actionChange:
		if t.row == nil {
			return deny("rule is not active")
		}
		if !t.row.Actions.CanChange {
			return deny("profile is not editable")
		}
	case actionDeactivate:
		if t.row == nil {
			return deny("rule is not active")
		}
		if !t.row.Actions.CanDeactivate {
			if t.profile.HasParent() && t.profile.Editable() && t.canWrite {
				return deny("profile inherits from %s, deactivate the rule there", t.profile.ParentName)
			}
			return deny("profile is not editable")
		}
	case actionRevert:
		if t.row == nil {
			return deny("rule is not active")
		}
		if !t.row.Actions.CanRevert {
			if t.row.Inherit != rules.InheritOverrides {
				return deny("activation does not override the parent profile")
			}
			return deny("profile is not editable")
		}
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

func runActivate(cmd *cobra.Command, args []string) error {
	req := sonar.ActivateRequest{Profile: args[0], Rule: args[1]}
	if activateSeverity != "" {
		sev, ok := rules.ParseSeverity(activateSeverity)
		if !ok {
			return fmt.Errorf("invalid severity %q", activateSeverity)
		}
		req.Severity = sev
	}
	params, err := parseParamFlags(activateParams)
	if err != nil {
		return err
	}
	req.Params = params

	return applyChange(cmd, args[0], args[1], func(t *target) (string, error) {
		action := actionActivate
		if t.row != nil {
			if req.Severity == "" && len(req.Params) == 0 {
				return "", fmt.Errorf("%s is already active in %s, give --severity or --param to change it", t.details.Rule.Key, t.profile.Name)
			}
			action = actionChange
		}
		if err := checkAllowed(action, t); err != nil {
			return "", err
		}
		return action, nil
	}, func(ctx context.Context, a *app, t *target) error {
		req.Profile = t.profile.Key
		return a.client.ActivateRule(ctx, req)
	})
}

func runDeactivate(cmd *cobra.Command, args []string) error {
	return applyChange(cmd, args[0], args[1], func(t *target) (string, error) {
		return actionDeactivate, checkAllowed(actionDeactivate, t)
	}, func(ctx context.Context, a *app, t *target) error {
		return a.client.DeactivateRule(ctx, t.profile.Key, t.details.Rule.Key)
	})
}

func runRevert(cmd *cobra.Command, args []string) error {
	return applyChange(cmd, args[0], args[1], func(t *target) (string, error) {
		return actionRevert, checkAllowed(actionRevert, t)
	}, func(ctx context.Context, a *app, t *target) error {
		return a.client.RevertRule(ctx, t.profile.Key, t.details.Rule.Key)
	})
}

// applyChange loads the target, runs the eligibility check and only then
// sends the write.
func applyChange(
	cmd *cobra.Command,
	profileArg, ruleKey string,
	check func(t *target) (string, error),
	write func(ctx context.Context, a *app, t *target) error,
) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	t, err := loadTarget(ctx, a, profileArg, ruleKey)
	if err != nil {
		return err
	}
	action, err := check(t)
	if err != nil {
		return err
	}
	if err := write(ctx, a, t); err != nil {
		return fmt.Errorf("%s %s in %s: %w", action, t.details.Rule.Key, t.profile.Name, err)
	}

	printf(cmd, "%s: %s in %s\n", pastTense(action), t.details.Rule.Key, t.profile.Name)
	return nil
}

func pastTense(action string) string {
	switch action {
	case actionActivate:
		return "Activated"
	case actionChange:
		return "Changed"
	case actionDeactivate:
		return "Deactivated"
	case actionRevert:
		return "Reverted"
	}
	return action
}
