// Package profiles holds the quality profile catalog and its inheritance tree.
package profiles

import (
	"sort"
	"strings"
)

// Profile is a quality profile as returned by the profile search endpoint.
type Profile struct {
	Key             string  `json:"key"`
	Name            string  `json:"name"`
	Language        string  `json:"language"`
	LanguageName    string  `json:"languageName,omitempty"`
	ParentKey       string  `json:"parentKey,omitempty"`
	ParentName      string  `json:"parentName,omitempty"`
	IsBuiltIn       bool    `json:"isBuiltIn,omitempty"`
	IsDefault       bool    `json:"isDefault,omitempty"`
	IsInherited     bool    `json:"isInherited,omitempty"`
	ActiveRuleCount int     `json:"activeRuleCount,omitempty"`
	Actions         Actions `json:"actions"`
}

// Actions lists what the current user may do with a profile.
type Actions struct {
	Edit              bool `json:"edit,omitempty"`
	SetAsDefault      bool `json:"setAsDefault,omitempty"`
	Copy              bool `json:"copy,omitempty"`
	Delete            bool `json:"delete,omitempty"`
	AssociateProjects bool `json:"associateProjects,omitempty"`
}

// HasParent reports whether the profile inherits from another profile.
func (p Profile) HasParent() bool {
	return p.ParentKey != ""
}

// Editable reports whether the profile itself accepts changes.
func (p Profile) Editable() bool {
	return p.Actions.Edit && !p.IsBuiltIn
}

// SearchResponse is the raw response of the profile search endpoint.
type SearchResponse struct {
	Profiles []Profile `json:"profiles"`
}

// Index maps profile keys to profiles.
type Index map[string]Profile

// KeyBy indexes profiles by key. Later duplicates win.
func KeyBy(list []Profile) Index {
	idx := make(Index, len(list))
	for _, p := range list {
		idx[p.Key] = p
	}
	return idx
}

// Get returns the profile with the given key.
func (idx Index) Get(key string) (Profile, bool) {
	p, ok := idx[key]
	return p, ok
}

// Parent returns the parent of the profile with the given key.
func (idx Index) Parent(key string) (Profile, bool) {
	p, ok := idx[key]
	if !ok || !p.HasParent() {
		return Profile{}, false
	}
	return idx.Get(p.ParentKey)
}

// Ancestors returns the parent chain of key, nearest first. The walk stops
// at a profile missing from the index or at the first repeated key.
func (idx Index) Ancestors(key string) []Profile {
	var chain []Profile
	seen := map[string]bool{key: true}

	for {
		parent, ok := idx.Parent(key)
		if !ok || seen[parent.Key] {
			return chain
		}
		seen[parent.Key] = true
		chain = append(chain, parent)
		key = parent.Key
	}
}

// Children returns the direct children of key sorted by name.
func (idx Index) Children(key string) []Profile {
	var children []Profile
	for _, p := range idx {
		if p.ParentKey == key {
			children = append(children, p)
		}
	}
	sortByName(children)
	return children
}

// Roots returns profiles without a known parent, sorted by language then name.
func (idx Index) Roots() []Profile {
	var roots []Profile
	for _, p := range idx {
		if _, ok := idx[p.ParentKey]; !p.HasParent() || !ok {
			roots = append(roots, p)
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		if roots[i].Language != roots[j].Language {
			return roots[i].Language < roots[j].Language
		}
		return strings.ToLower(roots[i].Name) < strings.ToLower(roots[j].Name)
	})
	return roots
}

// ForLanguage returns profiles of the given language sorted by name.
func (idx Index) ForLanguage(lang string) []Profile {
	var out []Profile
	for _, p := range idx {
		if p.Language == lang {
			out = append(out, p)
		}
	}
	sortByName(out)
	return out
}

// CanActivate reports whether any profile of lang grants edit.
func (idx Index) CanActivate(lang string) bool {
	for _, p := range idx {
		if p.Actions.Edit && p.Language == lang {
			return true
		}
	}
	return false
}

// Sorted returns all profiles sorted by language then name.
func (idx Index) Sorted() []Profile {
	out := make([]Profile, 0, len(idx))
	for _, p := range idx {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Language != out[j].Language {
			return out[i].Language < out[j].Language
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func sortByName(list []Profile) {
	sort.Slice(list, func(i, j int) bool {
		return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
	})
}
