// Package prompts implements MCP prompt handlers for the spec workflow.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartSessionPrompt handles the apex-start-session MCP prompt.
// It guides the AI through checking a session's prerequisites and
// marking it as the active session.
type StartSessionPrompt struct{}

// NewStartSessionPrompt creates a StartSessionPrompt.
func NewStartSessionPrompt() *StartSessionPrompt {
	return &StartSessionPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartSessionPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("apex-start-session",
		mcp.WithPromptDescription(
			"Start the next implementation session. "+
				"Checks prerequisites first and only then records the session as active.",
		),
		mcp.WithArgument("session_id",
			mcp.ArgumentDescription("Session to start (e.g. 'phase01-session02'). Default: the recommended next session"),
		),
		mcp.WithArgument("prereqs",
			mcp.ArgumentDescription("Comma-separated session IDs that must be completed first"),
		),
	)
}

// Handle processes the apex-start-session prompt request.
func (p *StartSessionPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	session := promptArg(req, "session_id")
	prereqs := promptArg(req, "prereqs")

	pick := fmt.Sprintf("We are starting session '%s'.", session)
	if session == "" {
		session = "<the recommended session>"
		pick = "Run `analyze_project` and pick the recommended next session."
	}

	check := "Run `check_prereqs` with env_only=true"
	if prereqs != "" {
		check = fmt.Sprintf("Run `check_prereqs` with prereqs='%s'", prereqs)
	}

	return &mcp.GetPromptResult{
		Description: "Start an Apex session",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"%s\n\n"+
						"Please:\n"+
						"1. %s. If it reports failures, show them to me and stop\n"+
						"2. Run `update_state` with current_session='%s' and set that session's phase to in_progress via phase_status\n"+
						"3. Summarize the session scope and the first concrete step\n\n"+
						"When the session is done, run `update_state` with add_completed_sessions=['%s'] and current_session=null.",
					pick, check, session, session,
				)),
			},
		},
	}, nil
}

// promptArg returns a prompt argument, or "" when absent.
func promptArg(req mcp.GetPromptRequest, key string) string {
	if args := req.Params.Arguments; args != nil {
		return args[key]
	}
	return ""
}
