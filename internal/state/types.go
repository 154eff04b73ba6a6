// Package state reads, merges and rewrites the workflow state document
// (.spec_system/state.json).
//
// The document is created by an external initializer; this package only
// reads it, applies field-level patches and rewrites it whole. Fields it
// does not know about are carried through untouched, in their original
// order, so a partial update never loses data.
//
// There is no locking: each update is a fresh read-modify-write and two
// concurrent writers can race. Callers that need single-writer semantics
// must serialize updates themselves.
package state

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Well-known top-level keys of the state document.
const (
	KeyCurrentPhase      = "current_phase"
	KeyCurrentSession    = "current_session"
	KeyCompletedSessions = "completed_sessions"
	KeyPhases            = "phases"
	KeyStatus            = "status"
)

// --- Phase status enum ---

// Status is the lifecycle state of a single phase.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// validStatuses is the set of allowed phase statuses.
var validStatuses = map[Status]bool{
	StatusNotStarted: true,
	StatusInProgress: true,
	StatusCompleted:  true,
}

// Statuses lists the allowed phase statuses in lifecycle order.
func Statuses() []string {
	return []string{string(StatusNotStarted), string(StatusInProgress), string(StatusCompleted)}
}

// ValidateStatus returns an error if the status is not recognized.
func ValidateStatus(s Status) error {
	if !validStatuses[s] {
		return fmt.Errorf("invalid phase status %q: must be one of: %s", s, strings.Join(Statuses(), ", "))
	}
	return nil
}

// --- Patch ---

// PhaseStatusUpdate sets the status of one phase record.
type PhaseStatusUpdate struct {
	Phase  string
	Status Status
}

// Patch is a partial update. Nil/empty fields leave the document alone.
//
// CurrentSession is only applied when SetSession is true; a true SetSession
// with a nil CurrentSession clears the session (writes null).
type Patch struct {
	CurrentPhase         *float64
	SetSession           bool
	CurrentSession       *string
	AddCompletedSessions []string
	PhaseStatus          *PhaseStatusUpdate
}

// IsEmpty reports whether applying the patch would be a no-op by construction.
func (p Patch) IsEmpty() bool {
	return p.CurrentPhase == nil &&
		!p.SetSession &&
		len(p.AddCompletedSessions) == 0 &&
		p.PhaseStatus == nil
}

// Validate checks the patch before any I/O happens.
func (p Patch) Validate() error {
	if p.CurrentPhase != nil {
		v := *p.CurrentPhase
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("invalid current_phase: %v", v)
		}
	}
	if p.PhaseStatus != nil {
		if strings.TrimSpace(p.PhaseStatus.Phase) == "" {
			return errors.New("phase_status.phase must not be empty")
		}
		if err := ValidateStatus(p.PhaseStatus.Status); err != nil {
			return err
		}
	}
	return nil
}
