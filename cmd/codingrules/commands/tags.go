package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JNZader/codingrules/internal/sonar"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List and set rule tags",
}

var tagsListCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List rule tags",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTagsList,
}

var tagsSetCmd = &cobra.Command{
	Use:   "set <rule-key> [tag...]",
	Short: "Replace the tags of a rule",
	Long: `Replace the user tags of a rule. Tags may be given as separate arguments
or comma separated. Without tags, every user tag is removed.

System tags of the rule are not affected.

Examples:
  codingrules tags set go:S100 naming,team-a
  codingrules tags set go:S100`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTagsSet,
}

var noteCmd = &cobra.Command{
	Use:   "note <rule-key> [text]",
	Short: "Set the markdown note of a rule",
	Long: `Set the extended markdown description attached to a rule.

Examples:
  codingrules note go:S100 "Prefer *lowerCamelCase*."
  codingrules note go:S100 --file note.md
  codingrules note go:S100 --clear`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runNote,
}

var (
	tagsLimit int
	noteFile  string
	noteClear bool
)

func init() {
	rootCmd.AddCommand(tagsCmd)
	tagsCmd.AddCommand(tagsListCmd)
	tagsCmd.AddCommand(tagsSetCmd)
	rootCmd.AddCommand(noteCmd)

	tagsListCmd.Flags().IntVar(&tagsLimit, "limit", 100, "maximum number of tags")
	noteCmd.Flags().StringVar(&noteFile, "file", "", "read the note from a file")
	noteCmd.Flags().BoolVar(&noteClear, "clear", false, "remove the note")
}

func runTagsList(cmd *cobra.Command, args []string) error {
	reporter, err := newReporter(cmd)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}
	tags, err := a.client.GetRuleTags(cmd.Context(), prefix, tagsLimit)
	if err != nil {
		return err
	}

	return render(cmd, func(w io.Writer) error {
		return reporter.Tags(w, tags)
	})
}

func runTagsSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	tags := splitTags(args[1:])

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rule, err := a.client.UpdateRule(cmd.Context(), sonar.UpdateRuleRequest{Key: key, Tags: &tags})
	if err != nil {
		return fmt.Errorf("updating tags of %s: %w", key, err)
	}

	if len(rule.Tags) == 0 {
		printf(cmd, "Removed the tags of %s\n", key)
		return nil
	}
	printf(cmd, "Tags of %s: %s\n", key, strings.Join(rule.Tags, ", "))
	return nil
}

func splitTags(args []string) []string {
	tags := []string{}
	seen := map[string]bool{}
	for _, arg := range args {
		for _, tag := range strings.Split(arg, ",") {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag != "" && !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

func runNote(cmd *cobra.Command, args []string) error {
	key := args[0]

	var note string
	switch {
	case noteClear:
		if len(args) > 1 || noteFile != "" {
			return fmt.Errorf("--clear takes no note text")
		}
	case noteFile != "":
		if len(args) > 1 {
			return fmt.Errorf("give the note as text or --file, not both")
		}
		data, err := os.ReadFile(noteFile) //nolint:gosec // Path comes from the user
		if err != nil {
			return fmt.Errorf("reading note: %w", err)
		}
		note = string(data)
	case len(args) == 2:
		note = args[1]
	default:
		return fmt.Errorf("a note text, --file or --clear is required")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	note = strings.TrimSpace(note)
	if _, err := a.client.UpdateRule(cmd.Context(), sonar.UpdateRuleRequest{Key: key, MarkdownNote: &note}); err != nil {
		return fmt.Errorf("updating note of %s: %w", key, err)
	}

	if note == "" {
		printf(cmd, "Removed the note of %s\n", key)
	} else {
		printf(cmd, "Updated the note of %s\n", key)
	}
	return nil
}
