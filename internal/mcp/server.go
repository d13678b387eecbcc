// Package mcp exposes rule search, rule details and quality profiles as
// Model Context Protocol tools served over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/JNZader/codingrules/internal/browse"
	"github.com/JNZader/codingrules/internal/history"
	"github.com/JNZader/codingrules/internal/logger"
	"github.com/JNZader/codingrules/internal/metrics"
	"github.com/JNZader/codingrules/internal/report"
)

// ServerName is advertised to MCP clients.
const ServerName = "codingrules"

// Recorder stores viewed rules.
type Recorder interface {
	Record(ctx context.Context, v *history.View) error
}

// Deps holds what the tools need.
type Deps struct {
	API              browse.API
	Links            report.Linker
	Logger           *logger.Logger
	Metrics          *metrics.Collector
	History          Recorder
	PageSize         int
	AllowCustomRules bool
}

// NewServer creates an MCP server with every tool registered.
func NewServer(deps *Deps, version string) *server.MCPServer {
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	s := server.NewMCPServer(ServerName, version, server.WithToolCapabilities(true))
	RegisterTools(s, deps)
	return s
}

// Serve runs the server on stdin and stdout until the input is closed.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// RegisterTools adds the rule tools to s.
func RegisterTools(s *server.MCPServer, deps *Deps) {
	registerSearchRulesTool(s, deps)
	registerShowRuleTool(s, deps)
	registerListProfilesTool(s, deps)
}

// errorResponse is the body of a tool error result.
type errorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// newErrorResult reports a failure the client can act on.
func newErrorResult(code, message string) *mcp.CallToolResult {
	body, _ := json.Marshal(errorResponse{Error: true, Code: code, Message: message})
	result := mcp.NewToolResultText(string(body))
	result.IsError = true
	return result
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}
