package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JNZader/codingrules/internal/logger"
	"github.com/JNZader/codingrules/internal/mcp"
	"github.com/JNZader/codingrules/internal/metrics"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp-serve",
	Short: "Serve coding rules to MCP (Model Context Protocol) clients",
	Long: `Start codingrules as an MCP server. The server communicates over
stdin/stdout using JSON-RPC 2.0; logs go to stderr.

Available tools:
  - search_rules   Search coding rules by text and facets
  - show_rule      Show a rule with its activation in every quality profile
  - list_profiles  List quality profiles as an inheritance tree

Configure in .mcp.json:
  {
    "mcpServers": {
      "codingrules": {
        "type": "stdio",
        "command": "codingrules",
        "args": ["mcp-serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	deps := &mcp.Deps{
		API:              a.client,
		Links:            a.client,
		Logger:           logger.Default().WithPrefix("mcp"),
		Metrics:          metrics.Global(),
		PageSize:         cfg.Search.PageSize,
		AllowCustomRules: cfg.Server.AllowCustomRules,
	}
	store, err := a.openHistory()
	if err != nil {
		a.log.Warn("history unavailable: %v", err)
	} else if store != nil {
		deps.History = store
	}

	server := mcp.NewServer(deps, Version)

	deps.Logger.Info("MCP server starting")
	if err := mcp.Serve(server); err != nil {
		if cmd.Context().Err() != nil {
			return nil
		}
		return fmt.Errorf("MCP server error: %w", err)
	}
	deps.Logger.Info("MCP server stopped")
	return nil
}
