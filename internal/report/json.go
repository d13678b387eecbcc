package report

import (
	"encoding/json"
	"io"

	"github.com/JNZader/codingrules/internal/browse"
	"github.com/JNZader/codingrules/internal/history"
	"github.com/JNZader/codingrules/internal/profiles"
)

// JSONReporter writes views as JSON documents.
type JSONReporter struct {
	Indent bool
}

func (r *JSONReporter) Format() string { return "json" }

func (r *JSONReporter) Rules(w io.Writer, v RulesView) error {
	return r.encode(w, v)
}

func (r *JSONReporter) Rule(w io.Writer, v RuleView) error {
	if v.Details == nil {
		return r.encode(w, nil)
	}
	type profileJSON struct {
		Name string `json:"name"`
		URL  string `json:"url,omitempty"`
	}
	out := struct {
		*browse.Details
		URL     string        `json:"url,omitempty"`
		Parents []profileJSON `json:"parents,omitempty"`
	}{
		Details: v.Details,
		URL:     ruleURL(v.Links, v.Details.Rule.Key),
	}
	for _, row := range v.Details.Profiles {
		if row.ParentLink != nil {
			out.Parents = append(out.Parents, profileJSON{
				Name: row.ParentLink.Name,
				URL:  profileURL(v.Links, row.ParentLink.Name, row.ParentLink.Language),
			})
		}
	}
	return r.encode(w, out)
}

func (r *JSONReporter) Profiles(w io.Writer, v ProfilesView) error {
	tree := v.Tree
	if tree == nil {
		tree = []profiles.Node{}
	}
	return r.encode(w, struct {
		Tree []profiles.Node `json:"tree"`
	}{tree})
}

func (r *JSONReporter) Tags(w io.Writer, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	return r.encode(w, struct {
		Tags []string `json:"tags"`
	}{tags})
}

func (r *JSONReporter) Recent(w io.Writer, views []*history.View) error {
	if views == nil {
		views = []*history.View{}
	}
	return r.encode(w, struct {
		Views []*history.View `json:"views"`
	}{views})
}

func (r *JSONReporter) encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	if r.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}
