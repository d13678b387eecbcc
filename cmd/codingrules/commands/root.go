// Package commands contains all CLI commands for codingrules.
//
// This package uses the Cobra library for CLI management.
// Each command is defined in its own file and registered in init().
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JNZader/codingrules/internal/config"
	"github.com/JNZader/codingrules/internal/logger"
	"github.com/JNZader/codingrules/internal/metrics"
	"github.com/JNZader/codingrules/internal/profiler"
)

var (
	// cfgFile holds the path to the config file (from --config flag)
	cfgFile string

	// verbose enables debug logging
	verbose bool

	// quiet suppresses all output except errors
	quiet bool

	// outputFormat overrides output.format
	outputFormat string

	// outputPath writes reports to a file instead of stdout
	outputPath string

	// metricsFormat dumps collected metrics to stderr after the command
	metricsFormat string

	// cfg is the configuration loaded before every command
	cfg *config.Config

	// configFileUsed is the config file cfg was read from, if any
	configFileUsed string

	// profiling selects the profiles to collect
	profiling profiler.Options

	// prof is the running profile collection, if any
	prof *profiler.Session
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "codingrules",
	Short: "Browse coding rules and quality profiles",
	Long: `codingrules is a CLI for the coding rules of a code quality server.

It searches rules by text and facets, shows a rule with its activation in
every quality profile (highlighting where a profile overrides its parent),
manages tags, notes and custom rules, and activates, deactivates or reverts
rules in quality profiles.

Examples:
  # Search Go rules about naming
  codingrules search naming --languages go

  # Show a rule and its quality profile activations
  codingrules show go:S100

  # Show the quality profile inheritance tree
  codingrules profiles tree

  # Serve the rules to MCP clients
  codingrules mcp-serve`,

	// SilenceUsage prevents printing usage on errors
	SilenceUsage: true,

	// SilenceErrors lets Execute print errors itself
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

// Execute runs the root command until it finishes or the process is
// interrupted. Errors are printed to stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	finish(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// finish stops profiling and dumps metrics, whether the command failed or not.
func finish(w io.Writer) {
	if prof != nil {
		if err := prof.Stop(metrics.Global()); err != nil {
			fmt.Fprintf(w, "Warning: %v\n", err)
		}
		prof = nil
	}
	if metricsFormat != "" {
		if err := metrics.Global().WriteTo(w, metricsFormat); err != nil {
			fmt.Fprintf(w, "Warning: %v\n", err)
		}
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is .codingrules.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "", "output format (text, markdown, json)")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "write output to a file")
	rootCmd.PersistentFlags().StringVar(&metricsFormat, "metrics", "", "print metrics to stderr (json, prometheus)")
	rootCmd.PersistentFlags().StringVar(&profiling.CPUFile, "cpuprofile", "", "write a CPU profile to this file")
	rootCmd.PersistentFlags().StringVar(&profiling.HeapFile, "memprofile", "", "write a heap profile to this file")
	rootCmd.PersistentFlags().StringVar(&profiling.Addr, "pprof-addr", "", "serve pprof on this address (e.g. localhost:6060)")
}

// initializeConfig loads the configuration and sets up logging.
func initializeConfig(cmd *cobra.Command) error {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}

	bindings := map[string]string{
		"output.format":  "format",
		"output.verbose": "verbose",
		"output.quiet":   "quiet",
	}
	for key, name := range bindings {
		if flag := cmd.Flags().Lookup(name); flag != nil && flag.Changed {
			if err := loader.BindFlag(key, flag); err != nil {
				return err
			}
		}
	}

	loaded, err := loader.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg = loaded
	configFileUsed = loader.ConfigFileUsed()

	switch {
	case cfg.Output.Quiet:
		logger.SetLevel(logger.LevelError)
	case cfg.Output.Verbose:
		logger.SetLevel(logger.LevelDebug)
	default:
		logger.SetLevel(logger.LevelWarn)
	}
	logger.SetOutput(cmd.ErrOrStderr())

	if isVerbose() && configFileUsed != "" {
		logger.Debug("using config file %s", configFileUsed)
	}

	if profiling.Enabled() && prof == nil {
		p, err := profiler.Start(profiling, logger.Default())
		if err != nil {
			return err
		}
		prof = p
	}
	return nil
}

// isVerbose returns true if verbose mode is enabled
func isVerbose() bool {
	return cfg != nil && cfg.Output.Verbose && !cfg.Output.Quiet
}

// isQuiet returns true if quiet mode is enabled
func isQuiet() bool {
	return cfg != nil && cfg.Output.Quiet
}
