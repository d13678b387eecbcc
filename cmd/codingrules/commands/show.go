package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JNZader/codingrules/internal/browse"
	"github.com/JNZader/codingrules/internal/report"
	"github.com/JNZader/codingrules/internal/worker"
)

var showCmd = &cobra.Command{
	Use:   "show <rule-key>...",
	Short: "Show rules with their quality profile activations",
	Long: `Show the description and parameters of rules, and their activation in
every quality profile.

Each activation is compared with the activation of the parent profile, and
severities or parameters a profile overrides are shown with the original
value. Template rules list the custom rules created from them instead.

Examples:
  # Show one rule
  codingrules show go:S100

  # Show several rules, fetched concurrently
  codingrules show go:S100 go:S103 go:S1135 --workers 3

  # Include the number of open issues per project
  codingrules show go:S100 --issues`,
	Args: cobra.MinimumNArgs(1),
	RunE: runShow,
}

var (
	showWorkers int
	showIssues  bool
)

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().IntVar(&showWorkers, "workers", 4, "concurrent requests when showing several rules")
	showCmd.Flags().BoolVar(&showIssues, "issues", false, "count the open issues of each rule")
}

func runShow(cmd *cobra.Command, args []string) error {
	reporter, err := newReporter(cmd)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	session := a.browser()
	defer session.Close()

	if err := session.LoadContext(ctx); err != nil {
		return err
	}

	var (
		list     []*browse.Details
		fetchErr error
	)
	if len(args) == 1 {
		d, err := session.LoadDetails(ctx, args[0])
		if err != nil {
			return err
		}
		list = append(list, d)
	} else {
		fetched, err := worker.FetchDetails(ctx, a.client, args, showWorkers)
		fetchErr = err
		seen := make(map[string]bool, len(args))
		for _, key := range args {
			if resp, ok := fetched[key]; ok && !seen[key] {
				seen[key] = true
				list = append(list, session.BuildDetails(ctx, resp))
			}
		}
	}

	for _, d := range list {
		a.record(ctx, d)
		if showIssues && !d.Rule.IsTemplate {
			countIssues(ctx, a, d)
		}
	}

	err = render(cmd, func(w io.Writer) error {
		for i, d := range list {
			if i > 0 && reporter.Format() != "json" {
				fmt.Fprintln(w)
			}
			if err := reporter.Rule(w, report.RuleView{Details: d, Links: a.client}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return fetchErr
}

// countIssues attaches the open issue count to d. A failure only warns
// since counting needs browse permission on the projects.
func countIssues(ctx context.Context, a *app, d *browse.Details) {
	ic, err := a.client.CountRuleIssues(ctx, d.Rule.Key)
	if err != nil {
		a.log.Warn("counting issues of %s: %v", d.Rule.Key, err)
		return
	}
	d.Issues = &ic
}
