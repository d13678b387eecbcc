package commands

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Build information, set with -ldflags "-X". Binaries built with go install
// fall back to the module and VCS data embedded by the toolchain.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version, and optionally the server's",
	Long: `Print the version of codingrules. With --server, the version of the
configured server is fetched too, which also checks the URL and token.

Examples:
  codingrules version
  codingrules version --short
  codingrules version --server --json`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

var (
	versionShort  bool
	versionJSON   bool
	versionServer bool
)

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVarP(&versionShort, "short", "s", false, "print only the client version")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print as JSON")
	versionCmd.Flags().BoolVar(&versionServer, "server", false, "also print the server version")
}

// VersionInfo describes the client build and, when requested, the server.
type VersionInfo struct {
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	BuildDate     string `json:"build_date"`
	GoVersion     string `json:"go_version"`
	Platform      string `json:"platform"`
	ServerURL     string `json:"server_url,omitempty"`
	ServerVersion string `json:"server_version,omitempty"`
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := GetVersionInfo()
	w := cmd.OutOrStdout()

	if versionShort {
		fmt.Fprintln(w, info.Version)
		return nil
	}

	if versionServer {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		v, err := a.client.ServerVersion(cmd.Context())
		if err != nil {
			return fmt.Errorf("server version: %w", err)
		}
		info.ServerURL = a.client.BaseURL()
		info.ServerVersion = v
	}

	if versionJSON {
		return writeJSON(w, info)
	}

	fmt.Fprintf(w, "codingrules %s (%s, built %s, %s %s)\n",
		info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
	if info.ServerVersion != "" {
		fmt.Fprintf(w, "server %s at %s\n", info.ServerVersion, info.ServerURL)
	}
	return nil
}

// GetVersionInfo returns the client build information.
func GetVersionInfo() VersionInfo {
	info := VersionInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.Commit == "unknown":
			info.Commit = s.Value
			if len(info.Commit) > 12 {
				info.Commit = info.Commit[:12]
			}
		case s.Key == "vcs.time" && info.BuildDate == "unknown":
			info.BuildDate = s.Value
		}
	}
	return info
}
