package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/apex-spec/internal/journal"
	"github.com/HendryAvila/apex-spec/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// HistoryToolName is the name of the operation history tool.
const HistoryToolName = "get_history"

// HistoryTool handles the get_history MCP tool. It is only registered when
// the operation journal is available.
type HistoryTool struct {
	svc *workflow.Service
}

// NewHistoryTool creates a HistoryTool with its dependencies.
func NewHistoryTool(svc *workflow.Service) *HistoryTool {
	return &HistoryTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool(HistoryToolName,
		mcp.WithDescription(
			"List recent workflow operations (analyze, prerequisite checks, state reads and updates, "+
				"catalog listings) recorded for a project, newest first, with their outcome and duration.",
		),
		mcp.WithString("project_dir",
			mcp.Description(projectDirDescription+" Use '*' to list operations across all projects."),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of entries (default: %d, max: %d)",
				journal.DefaultLimit, journal.MaxLimit)),
		),
	)
}

// Handle processes the get_history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(req, "limit", journal.DefaultLimit)

	entries, err := t.svc.History(ctx, projectDirArg(req), limit)
	if err != nil {
		return mcp.NewToolResultError("Error reading history: " + err.Error()), nil
	}
	out, err := marshalIndent(entries)
	if err != nil {
		return mcp.NewToolResultError("Error reading history: " + err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}
