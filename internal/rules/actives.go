package rules

import "maps"

// ActiveSummary is the short form of an activation kept per rule and profile.
type ActiveSummary struct {
	Inherit  Inherit  `json:"inherit"`
	Severity Severity `json:"severity"`
}

// Actives indexes activation summaries by rule key, then profile key.
type Actives map[string]map[string]ActiveSummary

// ParseActives converts the raw actives block of a search response.
func ParseActives(raw map[string][]Activation) Actives {
	actives := make(Actives, len(raw))
	for rule, activations := range raw {
		byProfile := make(map[string]ActiveSummary, len(activations))
		for _, a := range activations {
			byProfile[a.QProfile] = ActiveSummary{Inherit: a.Inherit, Severity: a.Severity}
		}
		actives[rule] = byProfile
	}
	return actives
}

// Merge adds the entries of other to a, replacing rules present in both.
func (a Actives) Merge(other Actives) Actives {
	if a == nil {
		a = make(Actives, len(other))
	}
	for rule, byProfile := range other {
		a[rule] = byProfile
	}
	return a
}

// Clone returns a deep copy of a.
func (a Actives) Clone() Actives {
	if a == nil {
		return nil
	}
	out := make(Actives, len(a))
	for rule, byProfile := range a {
		out[rule] = maps.Clone(byProfile)
	}
	return out
}

// Lookup returns the activation of rule in profile.
func (a Actives) Lookup(rule, profile string) (ActiveSummary, bool) {
	if a == nil || profile == "" {
		return ActiveSummary{}, false
	}
	s, ok := a[rule][profile]
	return s, ok
}
