// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools/prompts/resources that depend on
// abstractions. No business logic lives here, only wiring.
package server

import (
	"context"
	"fmt"

	"github.com/HendryAvila/apex-spec/internal/catalog"
	"github.com/HendryAvila/apex-spec/internal/config"
	"github.com/HendryAvila/apex-spec/internal/journal"
	"github.com/HendryAvila/apex-spec/internal/metrics"
	"github.com/HendryAvila/apex-spec/internal/prompts"
	"github.com/HendryAvila/apex-spec/internal/resources"
	"github.com/HendryAvila/apex-spec/internal/state"
	"github.com/HendryAvila/apex-spec/internal/tools"
	"github.com/HendryAvila/apex-spec/internal/validator"
	"github.com/HendryAvila/apex-spec/internal/workflow"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Name is the MCP server name announced to clients.
const Name = "apex-spec"

// Version is set at build time via ldflags.
var Version = "dev"

// Deps are the shared components behind both the MCP server and the
// operator CLI commands.
type Deps struct {
	Service *workflow.Service
	Invoker *validator.Invoker
	Journal *journal.Store // nil when the journal is disabled or failed to open
}

// NewDeps builds the orchestration service from cfg.
//
// The journal is an independent subsystem: if it fails to initialize the
// service keeps working without history. We log a warning and carry on.
// The returned cleanup function is always non-nil and safe to call.
func NewDeps(cfg *config.Config, logger *zap.Logger) (*Deps, func()) {
	if logger == nil {
		logger = zap.NewNop()
	}

	invoker := validator.NewInvoker(validator.Config{
		ScriptsDir:  cfg.ScriptsDir,
		Interpreter: cfg.Interpreter,
		Timeout:     cfg.ValidatorTimeout,
	}, logger)

	opts := []workflow.Option{workflow.WithLogger(logger)}
	cleanup := noop

	var js *journal.Store
	if cfg.Journal.Enabled {
		var err error
		js, err = journal.New(journal.Config{
			DataDir:         cfg.Journal.DataDir,
			MaxDetailLength: cfg.Journal.MaxDetailLength,
		})
		if err != nil {
			logger.Warn("journal disabled", zap.Error(err))
			js = nil
		} else {
			opts = append(opts, workflow.WithJournal(js))
			cleanup = func() {
				if err := js.Close(); err != nil {
					logger.Warn("journal close failed", zap.Error(err))
				}
			}
		}
	}

	svc := workflow.NewService(
		cfg.ProjectDir,
		invoker,
		state.NewFileStore(),
		catalog.NewReader(cfg.CommandsDir, logger),
		opts...,
	)
	return &Deps{Service: svc, Invoker: invoker, Journal: js}, cleanup
}

// New creates and configures the MCP server with all tools, prompts and
// resources registered. When cfg.Metrics.Addr is set, a Prometheus listener
// runs until ctx is done or cleanup is called.
//
// The returned cleanup function closes the journal database and stops the
// metrics listener. It is always non-nil and must be called on shutdown.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*server.MCPServer, func(), error) {
	if cfg == nil {
		return nil, noop, fmt.Errorf("server: config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	deps, closeDeps := NewDeps(cfg, logger)

	m := metrics.New()
	deps.Invoker.SetObserver(m)

	ctx, cancel := context.WithCancel(ctx)
	cleanup := func() {
		cancel()
		closeDeps()
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register tools ---

	svc := deps.Service

	analyzeTool := tools.NewAnalyzeTool(svc)
	s.AddTool(analyzeTool.Definition(), tools.Instrument(workflow.OpAnalyze, m, analyzeTool.Handle))

	prereqsTool := tools.NewCheckPrereqsTool(svc)
	s.AddTool(prereqsTool.Definition(), tools.Instrument(workflow.OpCheckPrereqs, m, prereqsTool.Handle))

	getStateTool := tools.NewGetStateTool(svc)
	s.AddTool(getStateTool.Definition(), tools.Instrument(workflow.OpGetState, m, getStateTool.Handle))

	updateStateTool := tools.NewUpdateStateTool(svc)
	s.AddTool(updateStateTool.Definition(), tools.Instrument(workflow.OpUpdateState, m, updateStateTool.Handle))

	listCommandsTool := tools.NewListCommandsTool(svc)
	s.AddTool(listCommandsTool.Definition(), tools.Instrument(workflow.OpListCommands, m, listCommandsTool.Handle))

	// History is only useful when the journal opened.
	if deps.Journal != nil {
		historyTool := tools.NewHistoryTool(svc)
		s.AddTool(historyTool.Definition(), tools.Instrument(tools.HistoryToolName, m, historyTool.Handle))
	}

	// --- Register prompts ---

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	startPrompt := prompts.NewStartSessionPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(svc)
	s.AddResource(resourceHandler.StateResource(), resourceHandler.HandleState)
	s.AddResource(resourceHandler.CommandsResource(), resourceHandler.HandleCommands)

	logger.Info("server configured",
		zap.String("project_dir", cfg.ProjectDir),
		zap.String("commands_dir", cfg.CommandsDir),
		zap.String("scripts_dir", cfg.ScriptsDir),
		zap.Bool("journal", deps.Journal != nil),
		zap.String("metrics_addr", cfg.Metrics.Addr),
	)

	return s, cleanup, nil
}

func noop() {}

func serverInstructions() string {
	return `You have access to apex-spec, the MCP server of the Apex Spec System.

The project workflow is tracked in .spec_system/state.json: a current phase,
an optional active session, the list of completed sessions, and a status per
phase (not_started, in_progress, completed).

## Tools

- analyze_project: where the project stands and which session comes next.
- check_prereqs: verify environment, tools, files and session dependencies
  before starting work. A failed check still returns its JSON report,
  flagged as an error.
- get_state: the raw state document.
- update_state: merge changes into the state. Only the fields you pass are
  touched. current_session=null clears the active session;
  add_completed_sessions skips IDs that are already recorded.
- list_commands: the available workflow commands.
- get_history: recent operations for a project (when history is enabled).

## Session lifecycle

1. analyze_project to find the next session.
2. check_prereqs with that session's prerequisites. Stop if it fails.
3. update_state with current_session set and the phase marked in_progress.
4. Do the work.
5. update_state with add_completed_sessions=[session] and current_session=null.

Never edit state.json by hand while the server is in use; concurrent writers
can overwrite each other.`
}
