package tools

import (
	"context"

	"github.com/HendryAvila/apex-spec/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// ListCommandsTool handles the list_commands MCP tool.
type ListCommandsTool struct {
	svc *workflow.Service
}

// NewListCommandsTool creates a ListCommandsTool with its dependencies.
func NewListCommandsTool(svc *workflow.Service) *ListCommandsTool {
	return &ListCommandsTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *ListCommandsTool) Definition() mcp.Tool {
	return mcp.NewTool(workflow.OpListCommands,
		mcp.WithDescription(
			"List all available Apex Spec System commands with their names and descriptions. "+
				"Reads from the canonical commands/ directory.",
		),
	)
}

// Handle processes the list_commands tool call.
func (t *ListCommandsTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := t.svc.ListCommands(ctx)
	if err != nil {
		return mcp.NewToolResultError("Error listing commands: " + err.Error()), nil
	}
	out, err := marshalIndent(c)
	if err != nil {
		return mcp.NewToolResultError("Error listing commands: " + err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}
