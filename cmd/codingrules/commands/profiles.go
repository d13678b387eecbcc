package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/JNZader/codingrules/internal/profiles"
	"github.com/JNZader/codingrules/internal/report"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List quality profiles",
	Long:  `List quality profiles, flat or as their inheritance tree.`,
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quality profiles by language and name",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProfiles(cmd, false)
	},
}

var profilesTreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show the quality profile inheritance tree",
	Long: `Show quality profiles as an inheritance tree. Root profiles are sorted
by language then name, children by name.

Examples:
  codingrules profiles tree
  codingrules profiles tree --language go`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProfiles(cmd, true)
	},
}

var profilesLanguage string

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesTreeCmd)

	profilesCmd.PersistentFlags().StringVarP(&profilesLanguage, "language", "l", "", "only profiles of this language")
}

func runProfiles(cmd *cobra.Command, tree bool) error {
	reporter, err := newReporter(cmd)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.client.SearchProfiles(cmd.Context(), profilesLanguage)
	if err != nil {
		return err
	}

	idx := profiles.KeyBy(list)
	var nodes []profiles.Node
	if tree {
		nodes = idx.Tree()
	} else {
		for _, p := range idx.Sorted() {
			nodes = append(nodes, profiles.Node{Profile: p})
		}
	}

	return render(cmd, func(w io.Writer) error {
		return reporter.Profiles(w, report.ProfilesView{Tree: nodes, Links: a.client})
	})
}
