// Package workflow is the orchestration facade behind the MCP tools.
//
// Each operation is independent: it resolves the project directory, does
// its work against fresh reads of the filesystem and returns. The Service
// holds only immutable dependencies, so concurrent calls never share
// mutable state (though concurrent UpdateState calls on one project can
// still race on the file itself).
package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/HendryAvila/apex-spec/internal/catalog"
	"github.com/HendryAvila/apex-spec/internal/journal"
	"github.com/HendryAvila/apex-spec/internal/state"
	"github.com/HendryAvila/apex-spec/internal/validator"
	"go.uber.org/zap"
)

// Operation names, shared with the MCP tool names and the journal.
const (
	OpAnalyze      = "analyze_project"
	OpCheckPrereqs = "check_prereqs"
	OpGetState     = "get_state"
	OpUpdateState  = "update_state"
	OpListCommands = "list_commands"
)

// Flags passed to validators.
const (
	flagJSON    = "--json"
	flagEnv     = "--env"
	flagTools   = "--tools"
	flagFiles   = "--files"
	flagPrereqs = "--prereqs"
)

// ErrJournalDisabled is returned by History when no journal is configured.
var ErrJournalDisabled = errors.New("operation history is disabled")

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Runner runs a named validator. Implemented by *validator.Invoker.
type Runner interface {
	Run(ctx context.Context, name string, args []string, workDir string) (string, error)
}

// CatalogReader lists commands. Implemented by *catalog.Reader.
type CatalogReader interface {
	List() (*catalog.Catalog, error)
}

// Journal records and lists operations. Implemented by *journal.Store.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) (journal.Entry, error)
	Recent(ctx context.Context, projectDir string, limit int) ([]journal.Entry, error)
}

// Service composes the validator invoker, state store and catalog reader.
type Service struct {
	defaultProjectDir string
	runner            Runner
	states            state.Store
	commands          CatalogReader
	journal           Journal
	logger            *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithJournal records every operation in j.
func WithJournal(j Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service. defaultProjectDir is used whenever a call
// does not name a project.
func NewService(defaultProjectDir string, runner Runner, states state.Store, commands CatalogReader, opts ...Option) *Service {
	s := &Service{
		defaultProjectDir: defaultProjectDir,
		runner:            runner,
		states:            states,
		commands:          commands,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("workflow")
	return s
}

// ResolveProjectDir returns dir, or the default when dir is blank.
// Relative paths are resolved against the default project directory.
func (s *Service) ResolveProjectDir(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return s.defaultProjectDir
	}
	if !filepath.IsAbs(dir) && s.defaultProjectDir != "" {
		return filepath.Join(s.defaultProjectDir, dir)
	}
	return filepath.Clean(dir)
}

// --- Validator-backed operations ---

// Analyze runs the analysis validator and returns its JSON verbatim.
func (s *Service) Analyze(ctx context.Context, projectDir string) (string, error) {
	dir := s.ResolveProjectDir(projectDir)
	start := timeNow()
	out, err := s.runner.Run(ctx, validator.AnalyzeProject, []string{flagJSON}, dir)
	s.record(ctx, OpAnalyze, dir, start, err)
	return out, err
}

// PrereqRequest holds check_prereqs inputs. Comma-separated lists are
// passed to the validator unchanged.
type PrereqRequest struct {
	ProjectDir string
	Tools      string
	Files      string
	Prereqs    string
	EnvOnly    bool
}

// Args builds the validator command line: --json always, every other flag
// only when its input was supplied.
func (r PrereqRequest) Args() []string {
	args := []string{flagJSON}
	if r.EnvOnly {
		args = append(args, flagEnv)
	}
	if r.Tools != "" {
		args = append(args, flagTools, r.Tools)
	}
	if r.Files != "" {
		args = append(args, flagFiles, r.Files)
	}
	if r.Prereqs != "" {
		args = append(args, flagPrereqs, r.Prereqs)
	}
	return args
}

// CheckPrereqs runs the prerequisite validator. When the validator exits
// non-zero the returned error is a *validator.ExitError whose Payload holds
// the validator's report.
func (s *Service) CheckPrereqs(ctx context.Context, req PrereqRequest) (string, error) {
	dir := s.ResolveProjectDir(req.ProjectDir)
	start := timeNow()
	out, err := s.runner.Run(ctx, validator.CheckPrereqs, req.Args(), dir)
	s.record(ctx, OpCheckPrereqs, dir, start, err)
	return out, err
}

// --- State operations ---

// GetState returns the state file content as stored (surrounding
// whitespace trimmed). A missing file is an error; it is never created.
func (s *Service) GetState(ctx context.Context, projectDir string) (string, error) {
	dir := s.ResolveProjectDir(projectDir)
	start := timeNow()
	raw, err := s.states.ReadRaw(dir)
	s.record(ctx, OpGetState, dir, start, err)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// UpdateState reads the state document, merges the patch and rewrites it,
// returning the full updated document. Validation and read failures happen
// before anything is written.
func (s *Service) UpdateState(ctx context.Context, projectDir string, patch state.Patch) (string, error) {
	dir := s.ResolveProjectDir(projectDir)
	start := timeNow()
	out, err := s.updateState(dir, patch)
	s.record(ctx, OpUpdateState, dir, start, err)
	return out, err
}

func (s *Service) updateState(dir string, patch state.Patch) (string, error) {
	if err := patch.Validate(); err != nil {
		return "", err
	}

	doc, err := s.states.Read(dir)
	if err != nil {
		return "", err
	}

	merged, err := state.Merge(doc, patch)
	if err != nil {
		return "", err
	}

	data, err := merged.Marshal()
	if err != nil {
		return "", fmt.Errorf("encoding state: %w", err)
	}
	if err := s.states.Write(dir, merged); err != nil {
		return "", err
	}

	s.logger.Info("state updated",
		zap.String("project_dir", dir),
		zap.Bool("empty_patch", patch.IsEmpty()),
		zap.Bool("phase", patch.CurrentPhase != nil),
		zap.Bool("session", patch.SetSession),
		zap.Int("completed_added", len(patch.AddCompletedSessions)),
		zap.Bool("phase_status", patch.PhaseStatus != nil),
	)
	return strings.TrimSpace(string(data)), nil
}

// --- Catalog ---

// ListCommands returns the command catalog.
func (s *Service) ListCommands(ctx context.Context) (*catalog.Catalog, error) {
	start := timeNow()
	c, err := s.commands.List()
	s.record(ctx, OpListCommands, "", start, err)
	return c, err
}

// --- History ---

// History returns recent journal entries for a project. An explicit "*"
// lists entries across all projects.
func (s *Service) History(ctx context.Context, projectDir string, limit int) ([]journal.Entry, error) {
	if s.journal == nil {
		return nil, ErrJournalDisabled
	}
	dir := ""
	if strings.TrimSpace(projectDir) != "*" {
		dir = s.ResolveProjectDir(projectDir)
	}
	return s.journal.Recent(ctx, dir, limit)
}

// record writes a journal entry. Failures are logged, never returned.
func (s *Service) record(ctx context.Context, op, dir string, start time.Time, opErr error) {
	elapsed := timeNow().Sub(start)
	outcome := Outcome(opErr)

	if opErr != nil {
		s.logger.Warn("operation failed",
			zap.String("op", op),
			zap.String("project_dir", dir),
			zap.String("outcome", outcome),
			zap.Error(opErr),
		)
	}

	if s.journal == nil {
		return
	}
	detail := ""
	if opErr != nil {
		detail = opErr.Error()
	}
	if _, err := s.journal.Record(ctx, journal.Entry{
		Tool:       op,
		ProjectDir: dir,
		Outcome:    outcome,
		Detail:     detail,
		DurationMS: elapsed.Milliseconds(),
	}); err != nil {
		s.logger.Warn("journal record failed", zap.String("op", op), zap.Error(err))
	}
}

// Outcome labels an operation result for logs, metrics and the journal.
// Errors that did not come from a validator are labelled "error".
func Outcome(err error) string {
	return validator.Outcome(err)
}
