package commands

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JNZader/codingrules/internal/report"
)

// newReporter returns the reporter for the configured format. A format
// inferred from --output wins over the configured default but not over
// an explicit --format.
func newReporter(cmd *cobra.Command) (report.Reporter, error) {
	format := cfg.Output.Format
	if !cmd.Flags().Changed("format") {
		if detected := DetectFormatFromPath(outputPath); detected != "" {
			format = detected
		}
	}
	return report.NewReporter(format)
}

// render writes what fn produces to --output or the command's stdout.
func render(cmd *cobra.Command, fn func(w io.Writer) error) error {
	if outputPath == "" {
		return fn(cmd.OutOrStdout())
	}

	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return err
	}
	return WriteOutput(cmd, buf.Bytes(), outputPath)
}

// WriteOutput writes the report to a file or stdout.
func WriteOutput(cmd *cobra.Command, content []byte, outputPath string) error {
	if outputPath == "" {
		_, err := cmd.OutOrStdout().Write(content)
		return err
	}

	// Create parent directories
	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}

	if !isQuiet() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to: %s\n", outputPath)
	}
	return nil
}

// DetectFormatFromPath infers the output format from file extension.
func DetectFormatFromPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return "json"
	case ".md", ".markdown":
		return "markdown"
	case ".txt":
		return "text"
	default:
		return ""
	}
}

// printf writes a status line unless quiet.
func printf(cmd *cobra.Command, format string, args ...any) {
	if isQuiet() {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
