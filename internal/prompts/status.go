package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the apex-status MCP prompt.
// It instructs the AI to read and present the current project state.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("apex-status",
		mcp.WithPromptDescription(
			"Check the current status of your Apex Spec project. "+
				"Shows the active phase and session, completed sessions, "+
				"and what to do next.",
		),
		mcp.WithArgument("project_dir",
			mcp.ArgumentDescription("Project directory. Default: the server's project directory"),
		),
	)
}

// Handle processes the apex-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	target := "the default project"
	call := ""
	if dir := promptArg(req, "project_dir"); dir != "" {
		target = fmt.Sprintf("the project at %s", dir)
		call = fmt.Sprintf(" with project_dir='%s'", dir)
	}

	return &mcp.GetPromptResult{
		Description: "Apex Project Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Please check the status of %s.\n\n"+
						"1. Run `get_state`%s to read the raw state\n"+
						"2. Run `analyze_project`%s to get the next session candidates\n"+
						"3. Show me the current phase, the active session and how many sessions are completed\n"+
						"4. Tell me exactly what I should do next",
					target, call, call,
				)),
			},
		},
	}, nil
}
