// Package resources implements MCP resource handlers for the spec workflow.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (apex://...) following MCP conventions and
// always describe the server's default project.
package resources

import (
	"context"
	"fmt"

	"github.com/HendryAvila/apex-spec/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// Resource URIs.
const (
	StateURI    = "apex://project/state"
	CommandsURI = "apex://commands"
)

// Handler manages resource endpoints.
type Handler struct {
	svc *workflow.Service
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(svc *workflow.Service) *Handler {
	return &Handler{svc: svc}
}

// StateResource returns the MCP resource definition for the project state.
func (h *Handler) StateResource() mcp.Resource {
	return mcp.NewResource(
		StateURI,
		"Apex Project State",
		mcp.WithResourceDescription("Contents of .spec_system/state.json for the default project: "+
			"current phase, current session, completed sessions and phase statuses"),
		mcp.WithMIMEType(mimeJSON),
	)
}

// HandleState returns the state document of the default project.
func (h *Handler) HandleState(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := h.svc.GetState(ctx, "")
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, out), nil
}

// CommandsResource returns the MCP resource definition for the command catalog.
func (h *Handler) CommandsResource() mcp.Resource {
	return mcp.NewResource(
		CommandsURI,
		"Apex Command Catalog",
		mcp.WithResourceDescription("Names and descriptions of the available workflow commands"),
		mcp.WithMIMEType(mimeJSON),
	)
}

// HandleCommands returns the command catalog as JSON.
func (h *Handler) HandleCommands(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	c, err := h.svc.ListCommands(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	text, err := indentJSON(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling catalog: %w", err)
	}
	return jsonResource(req.Params.URI, text), nil
}
