package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/scribe/internal/history"
	"github.com/deixis/scribe/internal/runner"
	"github.com/deixis/scribe/internal/toolkit"
)

type listToolsParams struct{}

func (h *handler) listToolsHandler(ctx context.Context, req *mcp.CallToolRequest, params listToolsParams) (*mcp.CallToolResult, any, error) {
	names, err := h.toolkit.List()
	if err != nil {
		return errorResult(fmt.Sprintf("listing tools: %v", err))
	}
	if len(names) == 0 {
		return textResult(fmt.Sprintf("No tools found in %s.", h.toolkit.Dir()))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tools in %s:\n", h.toolkit.Dir())
	for _, n := range names {
		fmt.Fprintf(&b, "  %s\n", n)
	}
	return textResult(b.String())
}

type runParams struct {
	Tool    string         `json:"tool" jsonschema:"the tool script name, extension included (e.g. count_tokens.py)"`
	Options map[string]any `json:"options,omitempty" jsonschema:"option name → value (bool, number, or string); applied in sorted name order"`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	if params.Tool == "" {
		return errorResult("tool is required")
	}

	_, done, err := h.sup.Start(ctx, params.Tool, sortedOptions(params.Options), runner.Discard)
	if err != nil {
		return errorResult(fmt.Sprintf("starting %s: %v", params.Tool, err))
	}

	select {
	case res := <-done:
		return textResult(formatResult(res))
	case <-ctx.Done():
		return errorResult(fmt.Sprintf("run cancelled: %v", ctx.Err()))
	}
}

func (h *handler) startHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	if params.Tool == "" {
		return errorResult("tool is required")
	}

	// The run must outlive this tool call; cancellation goes through stop_tool.
	id, _, err := h.sup.Start(context.Background(), params.Tool, sortedOptions(params.Options), runner.Discard)
	if err != nil {
		return errorResult(fmt.Sprintf("starting %s: %v", params.Tool, err))
	}

	return textResult(fmt.Sprintf("Started %s.\nRun: %s\n\nFollow with poll_run(run_id=%q); terminate with stop_tool.", params.Tool, id, id))
}

type runIDParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID returned by start_tool or run_tool"`
}

func (h *handler) pollHandler(ctx context.Context, req *mcp.CallToolRequest, params runIDParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	if stdout, stderr, ok := h.sup.Peek(params.RunID); ok {
		var b strings.Builder
		fmt.Fprintf(&b, "Run: %s\nStatus: running\n", params.RunID)
		writeOutput(&b, stdout, stderr)
		return textResult(b.String())
	}

	rec, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("run %s is not live and has no stored record: %v", params.RunID, err))
	}
	return textResult(formatRecord(rec))
}

func (h *handler) stopHandler(ctx context.Context, req *mcp.CallToolRequest, params runIDParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	if !h.sup.Stop(params.RunID) {
		return textResult(fmt.Sprintf("Run %s is not live; nothing to stop.", params.RunID))
	}
	return textResult(fmt.Sprintf("Termination signal sent to run %s. Its record completes once the process exits.", params.RunID))
}

func (h *handler) getRunHandler(ctx context.Context, req *mcp.CallToolRequest, params runIDParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	rec, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("loading run %s: %v", params.RunID, err))
	}
	return textResult(formatRecord(rec))
}

// sortedOptions converts a JSON option map into an ordered bag. JSON
// objects carry no order, so names are sorted to keep translation
// deterministic across calls.
func sortedOptions(m map[string]any) toolkit.Options {
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make(toolkit.Options, 0, len(names))
	for _, name := range names {
		opts = append(opts, toolkit.Option{Name: name, Value: m[name]})
	}
	return opts
}

func formatResult(res *runner.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", res.RunID)
	fmt.Fprintf(&b, "Tool: %s\n", res.Tool)
	fmt.Fprintf(&b, "Exit code: %d\n", res.ExitCode)
	if res.Stopped {
		fmt.Fprintln(&b, "Stopped: yes")
	}
	if res.Truncated {
		fmt.Fprintln(&b, "Output truncated.")
	}
	writeFiles(&b, res.CreatedFiles)
	writeOutput(&b, res.Stdout, res.Stderr)
	return b.String()
}

func formatRecord(rec *history.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\nStatus: finished\n", rec.ID)
	fmt.Fprintf(&b, "Tool: %s\n", rec.Tool)
	fmt.Fprintf(&b, "Exit code: %d\n", rec.ExitCode)
	fmt.Fprintf(&b, "Started: %s (took %s)\n", rec.StartedAt.Format("2006-01-02 15:04:05"), rec.Duration.Round(time.Millisecond))
	if rec.Stopped {
		fmt.Fprintln(&b, "Stopped: yes")
	}
	writeFiles(&b, rec.CreatedFiles)
	writeOutput(&b, rec.Stdout, rec.Stderr)
	return b.String()
}

func writeFiles(b *strings.Builder, files []string) {
	if len(files) == 0 {
		return
	}
	fmt.Fprintf(b, "Created files (%d):\n", len(files))
	for _, f := range files {
		fmt.Fprintf(b, "  %s\n", f)
	}
}

func writeOutput(b *strings.Builder, stdout, stderr string) {
	if stdout != "" {
		fmt.Fprintf(b, "\nOutput:\n%s", stdout)
		if !strings.HasSuffix(stdout, "\n") {
			fmt.Fprintln(b)
		}
	}
	if stderr != "" {
		fmt.Fprintf(b, "\nErrors:\n%s", stderr)
		if !strings.HasSuffix(stderr, "\n") {
			fmt.Fprintln(b)
		}
	}
}
