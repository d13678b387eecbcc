package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View codingrules configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the current configuration, including values from
config file, environment variables, and defaults. The token is masked.

Examples:
  # Show config in YAML format
  codingrules config show

  # Show config as JSON
  codingrules config show --json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configShowJSON bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)

	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "output as JSON")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	masked := cfg.Masked()
	w := cmd.OutOrStdout()

	if configShowJSON {
		return writeJSON(w, masked)
	}

	if !isQuiet() {
		if configFileUsed != "" {
			fmt.Fprintf(w, "# Config file: %s\n\n", configFileUsed)
		} else {
			fmt.Fprint(w, "# No config file found, using defaults\n\n")
		}
	}

	data, err := yaml.Marshal(masked)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = w.Write(data)
	return err
}
