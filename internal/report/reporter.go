// Package report renders rules, rule details and profiles as text,
// markdown or JSON.
package report

import (
	"fmt"
	"io"

	"github.com/JNZader/codingrules/internal/browse"
	"github.com/JNZader/codingrules/internal/history"
	"github.com/JNZader/codingrules/internal/profiles"
	"github.com/JNZader/codingrules/internal/rules"
)

// Reporter writes each view in one output format.
type Reporter interface {
	// Format returns the format name.
	Format() string

	Rules(w io.Writer, v RulesView) error
	Rule(w io.Writer, v RuleView) error
	Profiles(w io.Writer, v ProfilesView) error
	Tags(w io.Writer, tags []string) error
	Recent(w io.Writer, views []*history.View) error
}

// Linker builds UI links. A nil Linker renders no links.
type Linker interface {
	RuleURL(key string) string
	ProfileURL(name, language string) string
}

// RulesView is a page of search results.
type RulesView struct {
	Rules      []rules.Rule     `json:"rules"`
	Paging     *rules.Paging    `json:"paging,omitempty"`
	Facets     rules.Facets     `json:"facets,omitempty"`
	OpenFacets []rules.FacetKey `json:"-"`
	Actives    rules.Actives    `json:"actives,omitempty"`
	// Profile is the profile the search was filtered on.
	Profile string `json:"profile,omitempty"`
}

// RuleView is an open rule.
type RuleView struct {
	Details *browse.Details `json:"details"`
	Links   Linker          `json:"-"`
}

// ProfilesView is the profile inheritance forest.
type ProfilesView struct {
	Tree  []profiles.Node `json:"tree"`
	Links Linker          `json:"-"`
}

// NewReporter creates a reporter for the given format.
func NewReporter(format string) (Reporter, error) {
	switch format {
	case "text", "":
		return &TextReporter{}, nil
	case "markdown", "md":
		return &MarkdownReporter{}, nil
	case "json":
		return &JSONReporter{Indent: true}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

// AvailableFormats returns the list of supported formats.
func AvailableFormats() []string {
	return []string{"text", "markdown", "json"}
}

func ruleURL(l Linker, key string) string {
	if l == nil {
		return ""
	}
	return l.RuleURL(key)
}

func profileURL(l Linker, name, language string) string {
	if l == nil {
		return ""
	}
	return l.ProfileURL(name, language)
}
