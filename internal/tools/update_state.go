package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/apex-spec/internal/state"
	"github.com/HendryAvila/apex-spec/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// UpdateStateTool handles the update_state MCP tool.
// Only the fields present in the request are merged into the state file;
// everything else on disk survives untouched.
type UpdateStateTool struct {
	svc *workflow.Service
}

// NewUpdateStateTool creates an UpdateStateTool with its dependencies.
func NewUpdateStateTool(svc *workflow.Service) *UpdateStateTool {
	return &UpdateStateTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *UpdateStateTool) Definition() mcp.Tool {
	return mcp.NewTool(workflow.OpUpdateState,
		mcp.WithDescription(
			"Update specific fields in .spec_system/state.json. Merges the provided fields into the existing state. "+
				"Supports: current_phase (number), current_session (string|null), adding to completed_sessions "+
				"(string[]), and phase_status ({phase, status}).",
		),
		mcp.WithString("project_dir",
			mcp.Description(projectDirDescription),
		),
		mcp.WithNumber("current_phase",
			mcp.Description("Set the current phase number."),
		),
		mcp.WithString("current_session",
			mcp.Description("Set the current session ID, or null to clear it."),
		),
		mcp.WithArray("add_completed_sessions",
			mcp.Description("Session IDs to append to the completed_sessions array. IDs already present are skipped."),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithObject("phase_status",
			mcp.Description("Update a specific phase's status."),
			mcp.Properties(map[string]any{
				"phase": map[string]any{
					"type":        "string",
					"description": "Phase number as string (e.g. '0', '1').",
				},
				"status": map[string]any{
					"type": "string",
					"enum": state.Statuses(),
				},
			}),
		),
	)
}

// Handle processes the update_state tool call.
func (t *UpdateStateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	patch, err := patchFromArgs(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError("Error updating state: " + err.Error()), nil
	}

	out, err := t.svc.UpdateState(ctx, projectDirArg(req), patch)
	if err != nil {
		return mcp.NewToolResultError("Error updating state: " + err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

// patchFromArgs builds a state.Patch from raw tool arguments. Presence is
// what matters: an absent key leaves the field alone, while an explicit
// null current_session clears it.
func patchFromArgs(args map[string]any) (state.Patch, error) {
	var p state.Patch

	if v, ok := args["current_phase"]; ok && v != nil {
		n, ok := v.(float64)
		if !ok {
			return p, fmt.Errorf("current_phase must be a number, got %T", v)
		}
		p.CurrentPhase = &n
	}

	if v, ok := args["current_session"]; ok {
		p.SetSession = true
		switch s := v.(type) {
		case nil:
		case string:
			p.CurrentSession = &s
		default:
			return p, fmt.Errorf("current_session must be a string or null, got %T", v)
		}
	}

	if v, ok := args["add_completed_sessions"]; ok && v != nil {
		items, ok := v.([]any)
		if !ok {
			return p, fmt.Errorf("add_completed_sessions must be an array of strings, got %T", v)
		}
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return p, fmt.Errorf("add_completed_sessions[%d] must be a string, got %T", i, item)
			}
			p.AddCompletedSessions = append(p.AddCompletedSessions, s)
		}
	}

	if v, ok := args["phase_status"]; ok && v != nil {
		obj, ok := v.(map[string]any)
		if !ok {
			return p, fmt.Errorf("phase_status must be an object, got %T", v)
		}
		phase, _ := obj["phase"].(string)
		status, _ := obj["status"].(string)
		p.PhaseStatus = &state.PhaseStatusUpdate{Phase: phase, Status: state.Status(status)}
	}

	return p, nil
}
