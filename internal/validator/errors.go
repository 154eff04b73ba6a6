package validator

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout matches any *TimeoutError through errors.Is.
var ErrTimeout = errors.New("validator timed out")

// StartError means the validator could not be run at all: the script is
// missing, the interpreter is not installed, or the call was cancelled.
// No output is available.
type StartError struct {
	Validator string
	Err       error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("running validator %q: %v", e.Validator, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// ExitError means the validator ran to completion and exited non-zero.
// Output holds whatever it printed on stdout, which for check programs is
// usually the structured failure report.
type ExitError struct {
	Validator string
	ExitCode  int
	Output    string
	Stderr    string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("validator %q exited with status %d", e.Validator, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Payload returns the captured stdout, or the error message when the
// validator printed nothing.
func (e *ExitError) Payload() string {
	if e.Output != "" {
		return e.Output
	}
	return e.Error()
}

// TimeoutError means the validator exceeded its deadline and was killed.
// Output holds any partial stdout, for diagnostics only.
type TimeoutError struct {
	Validator string
	Timeout   time.Duration
	Output    string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("validator %q timed out after %s", e.Validator, e.Timeout)
}

// Is reports ErrTimeout as a match.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
