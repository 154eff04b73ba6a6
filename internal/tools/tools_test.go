package tools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HendryAvila/apex-spec/internal/catalog"
	"github.com/HendryAvila/apex-spec/internal/journal"
	"github.com/HendryAvila/apex-spec/internal/state"
	"github.com/HendryAvila/apex-spec/internal/validator"
	"github.com/HendryAvila/apex-spec/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- Test helpers ---

// stubRunner returns a canned validator result and records the last call.
type stubRunner struct {
	out      string
	err      error
	lastName string
	lastArgs []string
	lastDir  string
}

func (r *stubRunner) Run(_ context.Context, name string, args []string, workDir string) (string, error) {
	r.lastName, r.lastArgs, r.lastDir = name, args, workDir
	return r.out, r.err
}

type memJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (j *memJournal) Record(_ context.Context, e journal.Entry) (journal.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	e.ID = "id-" + e.Tool
	j.entries = append(j.entries, e)
	return e, nil
}

func (j *memJournal) Recent(_ context.Context, _ string, limit int) ([]journal.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := []journal.Entry{}
	for i := len(j.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.entries[i])
	}
	return out, nil
}

// setupService creates a project dir, a commands dir and a Service over them.
func setupService(t *testing.T, runner workflow.Runner, opts ...workflow.Option) (svc *workflow.Service, projectDir, commandsDir string) {
	t.Helper()
	projectDir = t.TempDir()
	commandsDir = t.TempDir()
	svc = workflow.NewService(projectDir, runner, state.NewFileStore(), catalog.NewReader(commandsDir, nil), opts...)
	return svc, projectDir, commandsDir
}

func writeStateFile(t *testing.T, projectDir, content string) {
	t.Helper()
	if err := os.MkdirAll(state.SpecSystemPath(projectDir), 0o755); err != nil {
		t.Fatalf("setup: mkdir: %v", err)
	}
	if err := os.WriteFile(state.Path(projectDir), []byte(content), 0o644); err != nil {
		t.Fatalf("setup: write state: %v", err)
	}
}

func readStateFile(t *testing.T, projectDir string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(state.Path(projectDir))
	if err != nil {
		t.Fatalf("reading state: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("state is not valid JSON: %v", err)
	}
	return doc
}

func callTool(t *testing.T, h Handler, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle returned a Go error: %v", err)
	}
	return result
}

// isErrorResult checks if the result is a tool error.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

const sampleState = `{
  "version": "2.0",
  "current_phase": 0,
  "current_session": null,
  "completed_sessions": ["phase00-session01"],
  "phases": {
    "0": {"status": "in_progress", "sessions": 3}
  }
}
`

// --- Definitions ---

func TestDefinitions_Names(t *testing.T) {
	svc, _, _ := setupService(t, &stubRunner{})
	tests := map[string]mcp.Tool{
		"analyze_project": NewAnalyzeTool(svc).Definition(),
		"check_prereqs":   NewCheckPrereqsTool(svc).Definition(),
		"get_state":       NewGetStateTool(svc).Definition(),
		"update_state":    NewUpdateStateTool(svc).Definition(),
		"list_commands":   NewListCommandsTool(svc).Definition(),
		"get_history":     NewHistoryTool(svc).Definition(),
	}
	for want, def := range tests {
		if def.Name != want {
			t.Errorf("tool name = %q, want %q", def.Name, want)
		}
		if def.Description == "" {
			t.Errorf("tool %s has no description", want)
		}
	}
}

// --- AnalyzeTool ---

func TestAnalyzeTool_Success(t *testing.T) {
	runner := &stubRunner{out: `{"current_phase":1}`}
	svc, projectDir, _ := setupService(t, runner)
	tool := NewAnalyzeTool(svc)

	result := callTool(t, tool.Handle, map[string]interface{}{})
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}
	if got := getResultText(result); got != `{"current_phase":1}` {
		t.Errorf("result = %q, want validator output verbatim", got)
	}
	if runner.lastDir != projectDir {
		t.Errorf("validator ran in %q, want default project %q", runner.lastDir, projectDir)
	}
	if runner.lastName != validator.AnalyzeProject {
		t.Errorf("validator = %q, want %q", runner.lastName, validator.AnalyzeProject)
	}
}

func TestAnalyzeTool_ExplicitProjectDir(t *testing.T) {
	runner := &stubRunner{out: "{}"}
	svc, _, _ := setupService(t, runner)
	other := t.TempDir()

	callTool(t, NewAnalyzeTool(svc).Handle, map[string]interface{}{"project_dir": other})
	if runner.lastDir != other {
		t.Errorf("validator ran in %q, want %q", runner.lastDir, other)
	}
}

func TestAnalyzeTool_Failure(t *testing.T) {
	runner := &stubRunner{err: &validator.StartError{Validator: validator.AnalyzeProject, Err: errors.New("script not available")}}
	svc, _, _ := setupService(t, runner)

	result := callTool(t, NewAnalyzeTool(svc).Handle, map[string]interface{}{})
	if !isErrorResult(result) {
		t.Fatal("expected error result")
	}
	if text := getResultText(result); !strings.HasPrefix(text, "Error: ") || !strings.Contains(text, "script not available") {
		t.Errorf("unexpected error text: %q", text)
	}
}

// --- CheckPrereqsTool ---

func TestCheckPrereqsTool_BuildsFlags(t *testing.T) {
	runner := &stubRunner{out: `{"overall":"pass"}`}
	svc, _, _ := setupService(t, runner)

	result := callTool(t, NewCheckPrereqsTool(svc).Handle, map[string]interface{}{
		"tools":    "node,npm",
		"prereqs":  "phase00-session01",
		"env_only": true,
	})
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	want := []string{"--json", "--env", "--tools", "node,npm", "--prereqs", "phase00-session01"}
	if strings.Join(runner.lastArgs, " ") != strings.Join(want, " ") {
		t.Errorf("args = %v, want %v", runner.lastArgs, want)
	}
}

func TestCheckPrereqsTool_FailedCheckReturnsReport(t *testing.T) {
	report := `{"overall":"fail","tools":{"docker":"missing"}}`
	runner := &stubRunner{err: &validator.ExitError{Validator: validator.CheckPrereqs, ExitCode: 1, Output: report}}
	svc, _, _ := setupService(t, runner)

	result := callTool(t, NewCheckPrereqsTool(svc).Handle, map[string]interface{}{"tools": "docker"})
	if !isErrorResult(result) {
		t.Fatal("expected error result")
	}
	if got := getResultText(result); got != report {
		t.Errorf("result = %q, want the validator report %q", got, report)
	}
}

func TestCheckPrereqsTool_FailedCheckWithoutOutput(t *testing.T) {
	runner := &stubRunner{err: &validator.ExitError{Validator: validator.CheckPrereqs, ExitCode: 2}}
	svc, _, _ := setupService(t, runner)

	result := callTool(t, NewCheckPrereqsTool(svc).Handle, map[string]interface{}{})
	if !isErrorResult(result) {
		t.Fatal("expected error result")
	}
	if text := getResultText(result); !strings.Contains(text, "exited with status 2") {
		t.Errorf("expected exit status message, got %q", text)
	}
}

func TestCheckPrereqsTool_Timeout(t *testing.T) {
	runner := &stubRunner{err: &validator.TimeoutError{Validator: validator.CheckPrereqs, Timeout: 30 * time.Second, Output: "{partial"}}
	svc, _, _ := setupService(t, runner)

	result := callTool(t, NewCheckPrereqsTool(svc).Handle, map[string]interface{}{})
	if !isErrorResult(result) {
		t.Fatal("expected error result")
	}
	text := getResultText(result)
	if !strings.Contains(text, "timed out") {
		t.Errorf("expected timeout message, got %q", text)
	}
	if strings.Contains(text, "{partial") {
		t.Errorf("partial output must not be presented as a report: %q", text)
	}
}

// --- GetStateTool ---

func TestGetStateTool_Success(t *testing.T) {
	svc, projectDir, _ := setupService(t, &stubRunner{})
	writeStateFile(t, projectDir, sampleState)

	result := callTool(t, NewGetStateTool(svc).Handle, map[string]interface{}{})
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}
	if got := getResultText(result); got != strings.TrimSpace(sampleState) {
		t.Errorf("result = %q, want file content verbatim", got)
	}
}

func TestGetStateTool_MissingFile(t *testing.T) {
	svc, projectDir, _ := setupService(t, &stubRunner{})

	result := callTool(t, NewGetStateTool(svc).Handle, map[string]interface{}{})
	if !isErrorResult(result) {
		t.Fatal("expected error result for missing state")
	}
	if text := getResultText(result); !strings.HasPrefix(text, "Error reading state: ") {
		t.Errorf("unexpected error text: %q", text)
	}
	if _, err := os.Stat(state.Path(projectDir)); !os.IsNotExist(err) {
		t.Error("get_state must not create the state file")
	}
}

func TestGetStateTool_InvalidJSON(t *testing.T) {
	svc, projectDir, _ := setupService(t, &stubRunner{})
	writeStateFile(t, projectDir, `{"current_phase": `)

	result := callTool(t, NewGetStateTool(svc).Handle, map[string]interface{}{})
	if !isErrorResult(result) {
		t.Fatal("expected error result for invalid JSON")
	}
}

// --- UpdateStateTool ---

func TestUpdateStateTool_FullPatch(t *testing.T) {
	svc, projectDir, _ := setupService(t, &stubRunner{})
	writeStateFile(t, projectDir, sampleState)

	result := callTool(t, NewUpdateStateTool(svc).Handle, map[string]interface{}{
		"current_phase":          float64(1),
		"current_session":        "phase01-session01",
		"add_completed_sessions": []interface{}{"phase00-session01", "phase00-session02"},
		"phase_status":           map[string]interface{}{"phase": "1", "status": "in_progress"},
	})
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	doc := readStateFile(t, projectDir)
	if doc["version"] != "2.0" {
		t.Errorf("unrelated field lost: version = %v", doc["version"])
	}
	if doc["current_phase"] != float64(1) {
		t.Errorf("current_phase = %v, want 1", doc["current_phase"])
	}
	if doc["current_session"] != "phase01-session01" {
		t.Errorf("current_session = %v", doc["current_session"])
	}
	completed, _ := doc["completed_sessions"].([]any)
	if len(completed) != 2 || completed[0] != "phase00-session01" || completed[1] != "phase00-session02" {
		t.Errorf("completed_sessions = %v", completed)
	}
	phases, _ := doc["phases"].(map[string]any)
	if p0, _ := phases["0"].(map[string]any); p0["sessions"] != float64(3) || p0["status"] != "in_progress" {
		t.Errorf("phase 0 should be untouched, got %v", p0)
	}
	if p1, _ := phases["1"].(map[string]any); len(p1) != 1 || p1["status"] != "in_progress" {
		t.Errorf("phase 1 should hold only status, got %v", p1)
	}

	// The result is the document as written.
	data, _ := os.ReadFile(state.Path(projectDir))
	if getResultText(result) != strings.TrimSpace(string(data)) {
		t.Error("result should match the written file")
	}
}

func TestUpdateStateTool_NullClearsSession(t *testing.T) {
	svc, projectDir, _ := setupService(t, &stubRunner{})
	writeStateFile(t, projectDir, `{"current_session": "s1", "completed_sessions": []}`)

	result := callTool(t, NewUpdateStateTool(svc).Handle, map[string]interface{}{
		"current_session": nil,
	})
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	doc := readStateFile(t, projectDir)
	v, present := doc["current_session"]
	if !present || v != nil {
		t.Errorf("current_session = %v (present=%v), want null", v, present)
	}
}

func TestUpdateStateTool_AbsentSessionIsUntouched(t *testing.T) {
	svc, projectDir, _ := setupService(t, &stubRunner{})
	writeStateFile(t, projectDir, `{"current_session": "s1"}`)

	callTool(t, NewUpdateStateTool(svc).Handle, map[string]interface{}{"current_phase": float64(2)})

	doc := readStateFile(t, projectDir)
	if doc["current_session"] != "s1" {
		t.Errorf("current_session = %v, want s1", doc["current_session"])
	}
}

func TestUpdateStateTool_InvalidStatus(t *testing.T) {
	svc, projectDir, _ := setupService(t, &stubRunner{})
	writeStateFile(t, projectDir, sampleState)

	result := callTool(t, NewUpdateStateTool(svc).Handle, map[string]interface{}{
		"phase_status": map[string]interface{}{"phase": "0", "status": "finished"},
	})
	if !isErrorResult(result) {
		t.Fatal("expected error result for invalid status")
	}
	if text := getResultText(result); !strings.HasPrefix(text, "Error updating state: ") {
		t.Errorf("unexpected error text: %q", text)
	}

	data, _ := os.ReadFile(state.Path(projectDir))
	if string(data) != sampleState {
		t.Error("state file must not change when the patch is rejected")
	}
}

func TestUpdateStateTool_WrongArgumentTypes(t *testing.T) {
	svc, projectDir, _ := setupService(t, &stubRunner{})
	writeStateFile(t, projectDir, sampleState)

	tests := map[string]map[string]interface{}{
		"phase as string":     {"current_phase": "1"},
		"session as number":   {"current_session": float64(3)},
		"sessions not array":  {"add_completed_sessions": "s1"},
		"non-string session":  {"add_completed_sessions": []interface{}{"s1", float64(2)}},
		"phase_status string": {"phase_status": "0:completed"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			result := callTool(t, NewUpdateStateTool(svc).Handle, args)
			if !isErrorResult(result) {
				t.Fatalf("expected error result, got %s", getResultText(result))
			}
		})
	}
}

func TestUpdateStateTool_MissingStateFile(t *testing.T) {
	svc, projectDir, _ := setupService(t, &stubRunner{})

	result := callTool(t, NewUpdateStateTool(svc).Handle, map[string]interface{}{"current_phase": float64(1)})
	if !isErrorResult(result) {
		t.Fatal("expected error result for missing state")
	}
	if _, err := os.Stat(state.Path(projectDir)); !os.IsNotExist(err) {
		t.Error("update_state must not create the state file")
	}
}

// --- ListCommandsTool ---

func TestListCommandsTool(t *testing.T) {
	svc, _, commandsDir := setupService(t, &stubRunner{})
	files := map[string]string{
		"b.md":  "---\nname: Beta\ndescription: Second <step>\n---\nbody",
		"a.md":  "---\nname: Alpha\n---\nbody",
		"c.txt": "---\nname: Gamma\n---\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(commandsDir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	result := callTool(t, NewListCommandsTool(svc).Handle, nil)
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	text := getResultText(result)
	var got catalog.Catalog
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if got.Count != 2 || len(got.Commands) != 2 {
		t.Fatalf("expected 2 commands, got %+v", got)
	}
	if got.Commands[0].Name != "Alpha" || got.Commands[1].Name != "Beta" {
		t.Errorf("order = %v, want [Alpha Beta]", got.Commands)
	}
	if got.Commands[0].Description != "" {
		t.Errorf("missing description should be empty, got %q", got.Commands[0].Description)
	}
	if !strings.Contains(text, "\n  \"commands\"") {
		t.Errorf("expected 2-space indentation, got:\n%s", text)
	}
	if !strings.Contains(text, "Second <step>") {
		t.Errorf("description should not be HTML-escaped, got:\n%s", text)
	}
}

func TestListCommandsTool_MissingDirectory(t *testing.T) {
	svc := workflow.NewService(t.TempDir(), &stubRunner{}, state.NewFileStore(),
		catalog.NewReader(filepath.Join(t.TempDir(), "missing"), nil))

	result := callTool(t, NewListCommandsTool(svc).Handle, nil)
	if !isErrorResult(result) {
		t.Fatal("expected error result for missing directory")
	}
	if text := getResultText(result); !strings.HasPrefix(text, "Error listing commands: ") {
		t.Errorf("unexpected error text: %q", text)
	}
}

// --- HistoryTool ---

func TestHistoryTool_Disabled(t *testing.T) {
	svc, _, _ := setupService(t, &stubRunner{})

	result := callTool(t, NewHistoryTool(svc).Handle, nil)
	if !isErrorResult(result) {
		t.Fatal("expected error result without a journal")
	}
	if text := getResultText(result); !strings.Contains(text, "disabled") {
		t.Errorf("unexpected error text: %q", text)
	}
}

func TestHistoryTool_ListsOperations(t *testing.T) {
	j := &memJournal{}
	svc, _, _ := setupService(t, &stubRunner{out: "{}"}, workflow.WithJournal(j))

	callTool(t, NewAnalyzeTool(svc).Handle, nil)
	callTool(t, NewGetStateTool(svc).Handle, nil)

	result := callTool(t, NewHistoryTool(svc).Handle, map[string]interface{}{"limit": float64(10)})
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	var entries []journal.Entry
	if err := json.Unmarshal([]byte(getResultText(result)), &entries); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Tool != "get_state" || entries[0].Outcome != "error" {
		t.Errorf("newest entry = %+v, want failed get_state", entries[0])
	}
	if entries[1].Tool != "analyze_project" || entries[1].Outcome != "ok" {
		t.Errorf("oldest entry = %+v, want ok analyze_project", entries[1])
	}
}

// --- Instrument ---

type recordingObserver struct {
	calls []string
}

func (o *recordingObserver) ObserveTool(tool, outcome string, _ time.Duration) {
	o.calls = append(o.calls, tool+":"+outcome)
}

func TestInstrument(t *testing.T) {
	svc, projectDir, _ := setupService(t, &stubRunner{})
	obs := &recordingObserver{}
	h := Instrument("get_state", obs, NewGetStateTool(svc).Handle)

	callTool(t, h, nil)
	writeStateFile(t, projectDir, sampleState)
	callTool(t, h, nil)

	want := []string{"get_state:error", "get_state:ok"}
	if strings.Join(obs.calls, ",") != strings.Join(want, ",") {
		t.Errorf("observations = %v, want %v", obs.calls, want)
	}
}
