// Package tools implements the MCP tool handlers for the spec workflow.
//
// Each tool is a struct holding its dependencies, with a Definition for
// registration and a Handle compatible with mcp-go's CallToolRequest
// signature. One file per tool.
//
// Handlers never return a Go error for a per-request failure: every
// failure becomes an error result so a single bad call cannot take the
// server down.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

const projectDirDescription = "Absolute path to the project directory containing .spec_system/. " +
	"Defaults to the server's project directory."

// Tool-level outcome labels reported to the Observer.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Handler is the mcp-go tool handler signature.
type Handler = func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Observer receives one observation per tool call.
// Implemented by *metrics.Metrics.
type Observer interface {
	ObserveTool(tool, outcome string, elapsed time.Duration)
}

// Instrument wraps h so every call is reported to o. Results flagged as
// errors count as "error"; a nil Observer returns h unchanged.
func Instrument(name string, o Observer, h Handler) Handler {
	if o == nil {
		return h
	}
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := h(ctx, req)
		outcome := outcomeOK
		if err != nil || (result != nil && result.IsError) {
			outcome = outcomeError
		}
		o.ObserveTool(name, outcome, time.Since(start))
		return result, err
	}
}

// projectDirArg returns the optional project_dir argument.
func projectDirArg(req mcp.CallToolRequest) string {
	return req.GetString("project_dir", "")
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// marshalIndent renders v as 2-space indented JSON without HTML escaping.
func marshalIndent(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
