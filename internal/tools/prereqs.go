package tools

import (
	"context"
	"errors"

	"github.com/HendryAvila/apex-spec/internal/validator"
	"github.com/HendryAvila/apex-spec/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// CheckPrereqsTool handles the check_prereqs MCP tool.
//
// The validator exits non-zero when a prerequisite fails but still prints
// its JSON report, so a failed check returns that report as the error
// result rather than a generic message.
type CheckPrereqsTool struct {
	svc *workflow.Service
}

// NewCheckPrereqsTool creates a CheckPrereqsTool with its dependencies.
func NewCheckPrereqsTool(svc *workflow.Service) *CheckPrereqsTool {
	return &CheckPrereqsTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *CheckPrereqsTool) Definition() mcp.Tool {
	return mcp.NewTool(workflow.OpCheckPrereqs,
		mcp.WithDescription(
			"Validate prerequisites: environment (spec system, jq, git), required tools, files, "+
				"and session dependencies. Returns the same JSON as scripts/check-prereqs.sh --json.",
		),
		mcp.WithString("project_dir",
			mcp.Description(projectDirDescription),
		),
		mcp.WithString("tools",
			mcp.Description("Comma-separated list of required tools to check (e.g. 'node,npm,docker')."),
		),
		mcp.WithString("files",
			mcp.Description("Comma-separated list of required file paths to check."),
		),
		mcp.WithString("prereqs",
			mcp.Description("Comma-separated list of prerequisite session IDs to check."),
		),
		mcp.WithBoolean("env_only",
			mcp.Description("If true, only check the environment (spec system, jq, git). Default: false."),
		),
	)
}

// Handle processes the check_prereqs tool call.
func (t *CheckPrereqsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := t.svc.CheckPrereqs(ctx, workflow.PrereqRequest{
		ProjectDir: projectDirArg(req),
		Tools:      req.GetString("tools", ""),
		Files:      req.GetString("files", ""),
		Prereqs:    req.GetString("prereqs", ""),
		EnvOnly:    boolArg(req, "env_only", false),
	})
	if err != nil {
		var exitErr *validator.ExitError
		if errors.As(err, &exitErr) {
			return mcp.NewToolResultError(exitErr.Payload()), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}
