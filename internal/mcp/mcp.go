// Package mcp provides the Scribe MCP server, exposing tool execution,
// cancellation, and run inspection to MCP clients.
package mcp

import (
	_ "embed"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/scribe"
	"github.com/deixis/scribe/internal/history"
	"github.com/deixis/scribe/internal/runner"
	"github.com/deixis/scribe/internal/toolkit"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	sup     *runner.Supervisor
	toolkit *toolkit.Toolkit
	store   history.Store
}

// NewServer creates an MCP server with all Scribe tools registered.
func NewServer(sup *runner.Supervisor, tk *toolkit.Toolkit, store history.Store) *mcp.Server {
	h := &handler{sup: sup, toolkit: tk, store: store}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "scribe", Version: scribe.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "list_tools",
		Description: "List the runnable tool scripts in the tools directory.",
	}, h.listToolsHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "run_tool",
		Description: `Run a tool script to completion and return its output, exit code, and created files.

Options become command-line arguments: names already in --flag form pass through
(booleans contribute the bare flag when true), input_file is positional, and
everything else becomes --name value. Option names are applied in sorted order.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "start_tool",
		Description: `Start a tool script without waiting for it and return a run ID.

Use poll_run to follow its output and stop_tool to terminate it.`,
	}, h.startHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "poll_run",
		Description: "Report a run's status and accumulated output: live snapshot while running, final record afterwards.",
	}, h.pollHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "stop_tool",
		Description: "Send a termination signal to a running tool. Best-effort; the run's record still completes once the process dies.",
	}, h.stopHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_run",
		Description: "Load the stored record of a completed run by its run ID.",
	}, h.getRunHandler)

	return s
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
