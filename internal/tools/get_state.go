package tools

import (
	"context"

	"github.com/HendryAvila/apex-spec/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// GetStateTool handles the get_state MCP tool.
type GetStateTool struct {
	svc *workflow.Service
}

// NewGetStateTool creates a GetStateTool with its dependencies.
func NewGetStateTool(svc *workflow.Service) *GetStateTool {
	return &GetStateTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *GetStateTool) Definition() mcp.Tool {
	return mcp.NewTool(workflow.OpGetState,
		mcp.WithDescription(
			"Read the current project state from .spec_system/state.json. Returns the full JSON state object.",
		),
		mcp.WithString("project_dir",
			mcp.Description(projectDirDescription),
		),
	)
}

// Handle processes the get_state tool call.
func (t *GetStateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := t.svc.GetState(ctx, projectDirArg(req))
	if err != nil {
		return mcp.NewToolResultError("Error reading state: " + err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}
