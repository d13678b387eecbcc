package activation

import (
	"github.com/JNZader/codingrules/internal/profiles"
	"github.com/JNZader/codingrules/internal/rules"
)

// Reconcile computes the display row of act. It returns false when the
// activation's profile is not in referenced, which callers treat as a row
// to skip. Diffs are computed from raw values; the server's inherit status
// only drives the parent link and revert eligibility.
func Reconcile(act rules.Activation, all []rules.Activation, referenced profiles.Index, opts Options) (Row, bool) {
	profile, ok := referenced[act.QProfile]
	if !ok {
		return Row{}, false
	}

	parent, hasParent := findParent(profile, all)

	row := Row{
		ProfileKey:  profile.Key,
		ProfileName: profile.Name,
		Language:    profile.Language,
		BuiltIn:     profile.IsBuiltIn,
		Severity:    act.Severity,
		Inherit:     act.Inherit,
		Params:      make([]ParamDiff, 0, len(act.Params)),
	}

	// An activation without severity has nothing to compare.
	if hasParent && act.Severity != "" && act.Severity != parent.Severity {
		row.SeverityOverridden = true
		row.SeverityOriginal = parent.Severity
	}

	for _, p := range act.Params {
		diff := ParamDiff{Key: p.Key, Value: p.Value}
		if hasParent {
			original, found := parent.Param(p.Key)
			if found {
				diff.Original = &original
			}
			diff.Overridden = !found || original != p.Value
		}
		row.Params = append(row.Params, diff)
	}

	if profile.ParentName != "" && act.Inherit.FromParent() {
		row.ParentLink = &ProfileLink{Name: profile.ParentName, Language: profile.Language}
	}

	canEdit := opts.CanWrite && profile.Actions.Edit && !profile.IsBuiltIn
	row.Actions = Actions{
		CanChange:     canEdit && !opts.RuleIsTemplate,
		CanDeactivate: canEdit && !profile.HasParent(),
		CanRevert:     canEdit && profile.HasParent() && act.Inherit == rules.InheritOverrides,
		CanActivate:   referenced.CanActivate(opts.RuleLanguage),
	}

	return row, true
}

// ReconcileAll reconciles every activation in order and drops rows whose
// profile is unknown.
func ReconcileAll(all []rules.Activation, referenced profiles.Index, opts Options) []Row {
	rows := make([]Row, 0, len(all))
	for _, act := range all {
		if row, ok := Reconcile(act, all, referenced, opts); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

func findParent(profile profiles.Profile, all []rules.Activation) (rules.Activation, bool) {
	if !profile.HasParent() {
		return rules.Activation{}, false
	}
	for _, a := range all {
		if a.QProfile == profile.ParentKey {
			return a, true
		}
	}
	return rules.Activation{}, false
}
