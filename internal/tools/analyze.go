package tools

import (
	"context"

	"github.com/HendryAvila/apex-spec/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// AnalyzeTool handles the analyze_project MCP tool.
type AnalyzeTool struct {
	svc *workflow.Service
}

// NewAnalyzeTool creates an AnalyzeTool with its dependencies.
func NewAnalyzeTool(svc *workflow.Service) *AnalyzeTool {
	return &AnalyzeTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *AnalyzeTool) Definition() mcp.Tool {
	return mcp.NewTool(workflow.OpAnalyze,
		mcp.WithDescription(
			"Analyze project state: current phase, session, completed sessions, and next candidates. "+
				"Returns the same JSON as scripts/analyze-project.sh --json.",
		),
		mcp.WithString("project_dir",
			mcp.Description(projectDirDescription),
		),
	)
}

// Handle processes the analyze_project tool call.
func (t *AnalyzeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := t.svc.Analyze(ctx, projectDirArg(req))
	if err != nil {
		return mcp.NewToolResultError("Error: " + err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}
