package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the response cache",
	Long: `Inspect and clear the cache of API responses.

Only the file and badger backends outlive a single command.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached response",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	if !cfg.Cache.Enabled {
		printf(cmd, "Cache is disabled\n")
		return nil
	}
	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	stats := c.Stats()
	if cfg.Output.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), stats)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Backend:  %s\n", stats.Backend)
	fmt.Fprintf(w, "Entries:  %d\n", stats.Entries)
	fmt.Fprintf(w, "Size:     %s\n", humanize.IBytes(uint64(stats.Bytes)))
	fmt.Fprintf(w, "Hits:     %d\n", stats.Hits)
	fmt.Fprintf(w, "Misses:   %d\n", stats.Misses)
	fmt.Fprintf(w, "Hit rate: %.1f%%\n", stats.HitRate()*100)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	if !cfg.Cache.Enabled {
		printf(cmd, "Cache is disabled\n")
		return nil
	}
	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	printf(cmd, "Cache cleared\n")
	return nil
}
