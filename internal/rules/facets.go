package rules

import (
	"maps"
	"sort"
)

// FacetKey names a facet on the client side.
type FacetKey string

const (
	FacetLanguages            FacetKey = "languages"
	FacetTypes                FacetKey = "types"
	FacetSeverities           FacetKey = "severities"
	FacetStatuses             FacetKey = "statuses"
	FacetTags                 FacetKey = "tags"
	FacetRepositories         FacetKey = "repositories"
	FacetActivationSeverities FacetKey = "activationSeverities"
	FacetAvailableSince       FacetKey = "availableSince"
	FacetInheritance          FacetKey = "inheritance"
	FacetProfile              FacetKey = "profile"
	FacetTemplate             FacetKey = "template"
)

// FacetKeys returns every facet in display order.
func FacetKeys() []FacetKey {
	return []FacetKey{
		FacetLanguages,
		FacetTypes,
		FacetTags,
		FacetRepositories,
		FacetSeverities,
		FacetStatuses,
		FacetAvailableSince,
		FacetTemplate,
		FacetProfile,
		FacetInheritance,
		FacetActivationSeverities,
	}
}

// Facets using the same name on both sides are not listed.
var serverFacetNames = map[FacetKey]string{
	FacetActivationSeverities: "active_severities",
	FacetAvailableSince:       "available_since",
}

// ShouldRequestFacet reports whether counts for the facet come from the server.
// The remaining facets are driven by client-side data (profiles, dates, flags).
func ShouldRequestFacet(facet FacetKey) bool {
	switch facet {
	case FacetLanguages, FacetTypes, FacetSeverities, FacetStatuses,
		FacetTags, FacetRepositories, FacetActivationSeverities:
		return true
	}
	return false
}

// ServerFacet maps a client facet key to the server facet name.
func ServerFacet(facet FacetKey) string {
	if name, ok := serverFacetNames[facet]; ok {
		return name
	}
	return string(facet)
}

// AppFacet maps a server facet name back to the client facet key.
func AppFacet(property string) FacetKey {
	for key, name := range serverFacetNames {
		if name == property {
			return key
		}
	}
	return FacetKey(property)
}

// RawFacet is a facet as returned by the search endpoint.
type RawFacet struct {
	Property string          `json:"property"`
	Values   []RawFacetValue `json:"values"`
}

// RawFacetValue is one value count of a raw facet.
type RawFacetValue struct {
	Val   string `json:"val"`
	Count int    `json:"count"`
}

// Facets holds value counts per facet.
type Facets map[FacetKey]map[string]int

// ParseFacets converts raw facets into counts keyed by client facet key.
func ParseFacets(raw []RawFacet) Facets {
	facets := make(Facets, len(raw))
	for _, f := range raw {
		values := make(map[string]int, len(f.Values))
		for _, v := range f.Values {
			values[v.Val] = v.Count
		}
		facets[AppFacet(f.Property)] = values
	}
	return facets
}

// TakeFacet returns the values of the given server facet, or nil.
func TakeFacet(raw []RawFacet, property string) []RawFacetValue {
	for _, f := range raw {
		if f.Property == property {
			return f.Values
		}
	}
	return nil
}

// Merge copies the facets of other into f, replacing existing entries.
func (f Facets) Merge(other Facets) Facets {
	if f == nil {
		f = make(Facets, len(other))
	}
	for k, v := range other {
		f[k] = v
	}
	return f
}

// Clone returns a deep copy of f.
func (f Facets) Clone() Facets {
	if f == nil {
		return nil
	}
	out := make(Facets, len(f))
	for k, v := range f {
		out[k] = maps.Clone(v)
	}
	return out
}

// FacetValue is a value count pair.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Sorted returns the values of a facet ordered by count, then value.
func (f Facets) Sorted(key FacetKey) []FacetValue {
	values := f[key]
	out := make([]FacetValue, 0, len(values))
	for v, c := range values {
		out = append(out, FacetValue{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}
