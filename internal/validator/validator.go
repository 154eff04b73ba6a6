// Package validator runs the external analysis and prerequisite-check
// programs and hands their standard output back as an opaque payload.
//
// A validator is a script under the configured scripts directory, invoked
// through an interpreter (bash by default) as
//
//	<interpreter> <scripts_dir>/<name>.sh <args...>
//
// with the project directory as working directory and SPEC_SYSTEM_DIR
// pointing at the project's state root. The output is not parsed here;
// producing well-formed JSON is the validator's job.
//
// Failures come in three distinct shapes, because callers must be able to
// tell "the validator said no" from "the validator never ran":
//   - *ExitError: the program ran and exited non-zero. Its stdout is kept
//     since check programs report failed prerequisites this way.
//   - *TimeoutError: the program hit the deadline and was killed.
//   - *StartError: the program could not be run at all (or was cancelled).
package validator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Known validators.
const (
	AnalyzeProject = "analyze-project"
	CheckPrereqs   = "check-prereqs"
)

const (
	// DefaultTimeout bounds a single validator run.
	DefaultTimeout = 30 * time.Second
	// DefaultInterpreter runs validator scripts.
	DefaultInterpreter = "bash"
	// DefaultStateDir is the state root relative to the working directory.
	DefaultStateDir = ".spec_system"
	// EnvStateDir is the variable through which validators find the state root.
	EnvStateDir = "SPEC_SYSTEM_DIR"

	scriptExt = ".sh"

	// waitDelay bounds how long Wait blocks on output pipes after the
	// process is killed (grandchildren may still hold them open).
	waitDelay = 2 * time.Second
)

// Outcome labels used in logs, metrics and the journal.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "validator_failed"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// Config controls how validators are located and run.
type Config struct {
	ScriptsDir  string
	Interpreter string
	Timeout     time.Duration
	StateDir    string
}

func (c Config) withDefaults() Config {
	if c.Interpreter == "" {
		c.Interpreter = DefaultInterpreter
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
	return c
}

// Observer receives one call per finished run. Implemented by metrics.
type Observer interface {
	ObserveValidator(name, outcome string, elapsed time.Duration)
}

// Invoker runs validators. It holds no per-run state and is safe for
// concurrent use.
type Invoker struct {
	cfg      Config
	logger   *zap.Logger
	observer Observer
}

// NewInvoker creates an Invoker. A nil logger disables logging.
func NewInvoker(cfg Config, logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{cfg: cfg.withDefaults(), logger: logger.Named("validator")}
}

// SetObserver attaches a run observer. Nil-safe: passing nil detaches it.
func (inv *Invoker) SetObserver(o Observer) {
	inv.observer = o
}

// Timeout returns the effective per-run timeout.
func (inv *Invoker) Timeout() time.Duration {
	return inv.cfg.Timeout
}

// ScriptPath resolves a validator name to its script location.
func (inv *Invoker) ScriptPath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid validator name %q", name)
	}
	return filepath.Join(inv.cfg.ScriptsDir, name+scriptExt), nil
}

// Run executes a validator synchronously and returns its trimmed stdout.
func (inv *Invoker) Run(ctx context.Context, name string, args []string, workDir string) (string, error) {
	start := time.Now()
	out, err := inv.run(ctx, name, args, workDir)
	elapsed := time.Since(start)
	outcome := Outcome(err)

	fields := []zap.Field{
		zap.String("validator", name),
		zap.Strings("args", args),
		zap.String("work_dir", workDir),
		zap.Duration("elapsed", elapsed),
		zap.String("outcome", outcome),
	}
	switch outcome {
	case OutcomeOK:
		inv.logger.Debug("validator finished", fields...)
	case OutcomeFailed:
		inv.logger.Info("validator reported failure", append(fields, zap.Error(err))...)
	default:
		inv.logger.Warn("validator did not complete", append(fields, zap.Error(err))...)
	}

	if inv.observer != nil {
		inv.observer.ObserveValidator(name, outcome, elapsed)
	}
	return out, err
}

func (inv *Invoker) run(ctx context.Context, name string, args []string, workDir string) (string, error) {
	script, err := inv.ScriptPath(name)
	if err != nil {
		return "", &StartError{Validator: name, Err: err}
	}
	if _, err := os.Stat(script); err != nil {
		return "", &StartError{Validator: name, Err: fmt.Errorf("script not available: %w", err)}
	}

	runCtx, cancel := context.WithTimeout(ctx, inv.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, inv.cfg.Interpreter, append([]string{script}, args...)...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), EnvStateDir+"="+filepath.Join(workDir, inv.cfg.StateDir))
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	output := strings.TrimSpace(stdout.String())

	if runErr == nil {
		return output, nil
	}
	if errors.Is(runErr, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		// The script itself succeeded; a leftover child kept stdout open.
		return output, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "", &TimeoutError{Validator: name, Timeout: inv.cfg.Timeout, Output: output}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", &StartError{Validator: name, Err: ctxErr}
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return "", &ExitError{
			Validator: name,
			ExitCode:  exitErr.ExitCode(),
			Output:    output,
			Stderr:    strings.TrimSpace(stderr.String()),
		}
	}
	return "", &StartError{Validator: name, Err: runErr}
}

// Outcome classifies a Run error into one of the Outcome* labels.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	var exitErr *ExitError
	switch {
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	case errors.As(err, &exitErr):
		return OutcomeFailed
	default:
		return OutcomeError
	}
}
