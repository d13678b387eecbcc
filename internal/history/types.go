// Package history provides SQLite-based storage of recently viewed rules,
// searchable by name and key.
package history

import "time"

// View is one viewed rule with a summary of its activations.
type View struct {
	ID         int64     `json:"id"`
	RuleKey    string    `json:"rule_key"`
	RuleName   string    `json:"rule_name"`
	Language   string    `json:"language,omitempty"`
	Severity   string    `json:"severity,omitempty"`
	Type       string    `json:"type,omitempty"`
	Profiles   int       `json:"profiles"`
	Overridden int       `json:"overridden"`
	ViewCount  int       `json:"view_count"`
	ViewedAt   time.Time `json:"viewed_at"`
}

// SearchQuery filters the history.
type SearchQuery struct {
	// Text matches rule names and keys by prefix
	Text string
	// Language filters by rule language
	Language string
	// OnlyOverridden keeps rules with at least one overriding activation
	OnlyOverridden bool
	// Limit caps the result size (0 = 20)
	Limit int
}

// Stats summarizes the history.
type Stats struct {
	Rules      int            `json:"rules"`
	Views      int            `json:"views"`
	ByLanguage map[string]int `json:"by_language"`
}
