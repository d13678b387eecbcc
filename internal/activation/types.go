// Package activation compares a rule activation against the activation of
// the parent quality profile and derives what a caller can show and do.
package activation

import "github.com/JNZader/codingrules/internal/rules"

// Options carries caller context that the activation itself does not hold.
type Options struct {
	// CanWrite is the caller's global write capability on rules.
	CanWrite bool
	// RuleLanguage is the language of the rule being displayed.
	RuleLanguage string
	// RuleIsTemplate marks template rules, whose activations cannot be changed.
	RuleIsTemplate bool
}

// Row is the display-ready reconciliation of one activation.
type Row struct {
	ProfileKey  string         `json:"profileKey"`
	ProfileName string         `json:"profileName"`
	Language    string         `json:"language"`
	BuiltIn     bool           `json:"builtIn,omitempty"`
	Severity    rules.Severity `json:"severity"`
	Inherit     rules.Inherit  `json:"inherit"`

	SeverityOverridden bool           `json:"severityOverridden"`
	SeverityOriginal   rules.Severity `json:"severityOriginal,omitempty"`
	Params             []ParamDiff    `json:"params"`
	ParentLink         *ProfileLink   `json:"parentLink,omitempty"`
	Actions            Actions        `json:"actions"`
}

// ParamDiff is one activation parameter compared with the parent value.
// Original is nil when the parent has no value for the key.
type ParamDiff struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Overridden bool    `json:"overridden"`
	Original   *string `json:"original,omitempty"`
}

// ProfileLink points to a profile by name and language.
type ProfileLink struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

// Actions lists the operations offered on a row.
type Actions struct {
	CanChange     bool `json:"canChange"`
	CanDeactivate bool `json:"canDeactivate"`
	CanRevert     bool `json:"canRevert"`
	CanActivate   bool `json:"canActivate"`
}

// OverriddenParams counts parameters that differ from the parent.
func (r Row) OverriddenParams() int {
	n := 0
	for _, p := range r.Params {
		if p.Overridden {
			n++
		}
	}
	return n
}

// Overridden reports whether anything on the row differs from the parent.
func (r Row) Overridden() bool {
	return r.SeverityOverridden || r.OverriddenParams() > 0
}
