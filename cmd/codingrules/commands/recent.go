package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/JNZader/codingrules/internal/history"
)

var recentCmd = &cobra.Command{
	Use:   "recent [text]",
	Short: "List recently viewed rules",
	Long: `List the rules shown recently, most recent first.

Text matches rule names and keys by word prefix.

Examples:
  codingrules recent
  codingrules recent naming --language go
  codingrules recent --overridden
  codingrules recent --stats`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecent,
}

var (
	recentLimit      int
	recentLanguage   string
	recentOverridden bool
	recentStats      bool
	recentClear      bool
)

func init() {
	rootCmd.AddCommand(recentCmd)

	recentCmd.Flags().IntVar(&recentLimit, "limit", 20, "maximum number of rules")
	recentCmd.Flags().StringVarP(&recentLanguage, "language", "l", "", "only rules of this language")
	recentCmd.Flags().BoolVar(&recentOverridden, "overridden", false, "only rules some profile overrides")
	recentCmd.Flags().BoolVar(&recentStats, "stats", false, "show history statistics")
	recentCmd.Flags().BoolVar(&recentClear, "clear", false, "forget every viewed rule")
}

func runRecent(cmd *cobra.Command, args []string) error {
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled (history.enabled)")
	}

	store, err := history.NewStore(history.StoreConfig{
		Path:       cfg.History.Path,
		MaxEntries: cfg.History.MaxEntries,
	})
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	switch {
	case recentClear:
		if err := store.Clear(ctx); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		printf(cmd, "History cleared\n")
		return nil
	case recentStats:
		stats, err := store.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		return outputHistoryStats(cmd, stats)
	}

	var views []*history.View
	if len(args) == 0 && recentLanguage == "" && !recentOverridden {
		views, err = store.Recent(ctx, recentLimit)
	} else {
		q := history.SearchQuery{Language: recentLanguage, OnlyOverridden: recentOverridden, Limit: recentLimit}
		if len(args) == 1 {
			q.Text = args[0]
		}
		views, err = store.Search(ctx, q)
	}
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}

	reporter, err := newReporter(cmd)
	if err != nil {
		return err
	}
	return render(cmd, func(w io.Writer) error {
		return reporter.Recent(w, views)
	})
}

func outputHistoryStats(cmd *cobra.Command, stats *history.Stats) error {
	if cfg.Output.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), stats)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%d rules viewed %d times\n", stats.Rules, stats.Views)

	langs := make([]string, 0, len(stats.ByLanguage))
	for lang := range stats.ByLanguage {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		name := lang
		if name == "" {
			name = "(none)"
		}
		fmt.Fprintf(w, "  %-12s %d\n", name, stats.ByLanguage[lang])
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
