package commands

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JNZader/codingrules/internal/report"
	"github.com/JNZader/codingrules/internal/rules"
	"github.com/JNZader/codingrules/internal/sonar"
)

var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search coding rules",
	Long: `Search coding rules by text and facets.

List filters take comma separated values. When --profile is set, every rule
reports its activation in that quality profile.

Examples:
  # Rules about naming in Go
  codingrules search naming --languages go

  # Critical bugs, with tag counts
  codingrules search --types BUG --severities CRITICAL --facet tags

  # Rules of a profile that it does not activate
  codingrules search --profile my-profile-key --activation false

  # Every security rule, as JSON
  codingrules search --preset security --all --format json`,
	RunE: runSearch,
}

// searchFilters maps filter flags to request parameter names.
var searchFilters = map[string]string{
	"languages":    "languages",
	"types":        "types",
	"severities":   "severities",
	"statuses":     "statuses",
	"tags":         "tags",
	"repositories": "repositories",
	"profile":      "qprofile",
	"activation":   "activation",
	"inheritance":  "inheritance",
	"template":     "is_template",
	"since":        "available_since",
}

var (
	searchPreset      string
	searchFacets      []string
	searchAll         bool
	searchLimit       int
	searchListPresets bool
)

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchPreset, "preset", "", "start from a named search preset")
	searchCmd.Flags().StringSliceVar(&searchFacets, "facet", nil, "facets to show counts for (e.g. tags,repositories)")
	searchCmd.Flags().BoolVar(&searchAll, "all", false, "load every matching rule instead of one page")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum number of rules (0 = one page, or all with --all)")
	searchCmd.Flags().BoolVar(&searchListPresets, "list-presets", false, "list the available presets and exit")

	searchCmd.Flags().String("languages", "", "language keys")
	searchCmd.Flags().String("types", "", "rule types (CODE_SMELL, BUG, VULNERABILITY, SECURITY_HOTSPOT)")
	searchCmd.Flags().String("severities", "", "severities (INFO, MINOR, MAJOR, CRITICAL, BLOCKER)")
	searchCmd.Flags().String("statuses", "", "statuses (READY, BETA, DEPRECATED)")
	searchCmd.Flags().String("tags", "", "rule tags")
	searchCmd.Flags().String("repositories", "", "rule repository keys")
	searchCmd.Flags().String("profile", "", "quality profile key")
	searchCmd.Flags().String("activation", "", "with --profile: true for active rules, false for inactive ones")
	searchCmd.Flags().String("inheritance", "", "with --profile: NONE, INHERITED or OVERRIDES")
	searchCmd.Flags().String("template", "", "true for templates only, false to exclude them")
	searchCmd.Flags().String("since", "", "rules available since this date (YYYY-MM-DD)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchListPresets {
		return listPresets(cmd)
	}

	query, err := searchQuery(cmd, args)
	if err != nil {
		return err
	}
	facets, err := parseFacets(searchFacets)
	if err != nil {
		return err
	}
	reporter, err := newReporter(cmd)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var view report.RulesView
	if searchAll {
		view, err = searchEverything(cmd, a, query, facets)
	} else {
		view, err = searchPage(cmd, a, query, facets)
	}
	if err != nil {
		return err
	}

	return render(cmd, func(w io.Writer) error {
		return reporter.Rules(w, view)
	})
}

// searchQuery merges the preset, the text arguments and the filter flags.
func searchQuery(cmd *cobra.Command, args []string) (rules.Query, error) {
	var query rules.Query
	if searchPreset != "" {
		preset, err := rules.NewPresetLoader(cfg.Search.PresetsDir).Get(searchPreset)
		if err != nil {
			return query, err
		}
		query = preset.Query
	}

	values := url.Values{}
	if text := strings.TrimSpace(strings.Join(args, " ")); text != "" {
		values.Set("q", text)
	}
	for flag, param := range searchFilters {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		v, _ := cmd.Flags().GetString(flag)
		values.Set(param, v)
	}
	query = query.Merge(rules.ParseQuery(values))

	if query.Profile == "" && (query.Activation != nil || query.Inheritance != "") {
		return query, fmt.Errorf("--activation and --inheritance require --profile")
	}
	return query, nil
}

func parseFacets(names []string) ([]rules.FacetKey, error) {
	known := make(map[rules.FacetKey]bool)
	for _, key := range rules.FacetKeys() {
		known[key] = true
	}

	out := make([]rules.FacetKey, 0, len(names))
	for _, name := range names {
		key := rules.FacetKey(strings.TrimSpace(name))
		if !known[key] {
			return nil, fmt.Errorf("unknown facet %q", name)
		}
		out = append(out, key)
	}
	return out, nil
}

// searchPage loads the first page through a browse session, then more pages
// until --limit rules are loaded.
func searchPage(cmd *cobra.Command, a *app, query rules.Query, facets []rules.FacetKey) (report.RulesView, error) {
	ctx := cmd.Context()
	session := a.browser()
	defer session.Close()

	if err := session.Init(ctx, query, ""); err != nil {
		return report.RulesView{}, err
	}
	for _, facet := range facets {
		if _, err := session.ToggleFacet(ctx, facet); err != nil {
			return report.RulesView{}, err
		}
	}
	for searchLimit > 0 {
		state := session.Snapshot()
		if len(state.Rules) >= searchLimit || state.Paging == nil || !state.Paging.HasMore(len(state.Rules)) {
			break
		}
		if err := session.FetchMore(ctx); err != nil {
			return report.RulesView{}, err
		}
		if len(session.Snapshot().Rules) == len(state.Rules) {
			break
		}
	}

	state := session.Snapshot()
	list := state.Rules
	if searchLimit > 0 && len(list) > searchLimit {
		list = list[:searchLimit]
	}
	return report.RulesView{
		Rules:      list,
		Paging:     state.Paging,
		Facets:     state.Facets,
		OpenFacets: state.OpenFacets,
		Actives:    state.Actives,
		Profile:    query.Profile,
	}, nil
}

// searchEverything pages through the whole result set with the largest
// page size.
func searchEverything(cmd *cobra.Command, a *app, query rules.Query, facets []rules.FacetKey) (report.RulesView, error) {
	requested := make([]rules.FacetKey, 0, len(facets))
	for _, f := range facets {
		if rules.ShouldRequestFacet(f) {
			requested = append(requested, f)
		}
	}

	resp, err := a.client.SearchAllRules(cmd.Context(), sonar.SearchParams{
		Query:    query,
		Fields:   rules.SearchFields(query.Profile != ""),
		Facets:   requested,
		PageSize: sonar.MaxPageSize,
		Sort:     cfg.Search.Sort,
	}, searchLimit)
	if err != nil {
		return report.RulesView{}, err
	}

	paging := resp.Paging()
	return report.RulesView{
		Rules:      resp.Rules,
		Paging:     &paging,
		Facets:     rules.ParseFacets(resp.Facets),
		OpenFacets: requested,
		Actives:    rules.ParseActives(resp.Actives),
		Profile:    query.Profile,
	}, nil
}

func listPresets(cmd *cobra.Command) error {
	presets, err := rules.NewPresetLoader(cfg.Search.PresetsDir).Load()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, name := range rules.Names(presets) {
		fmt.Fprintf(tw, "%s\t%s\n", name, presets[name].Description)
	}
	return tw.Flush()
}
