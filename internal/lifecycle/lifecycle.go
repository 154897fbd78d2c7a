// Package lifecycle holds the task status model: one persisted enum, a pure
// presentation mapping for the project board, and the transition function
// that keeps completed_at consistent with the status.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"teamtasks/backend/internal/apperr"
)

// Status is what the database stores.
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Presented is what clients see. NOT_STARTED and FINISHED only exist for
// tasks that belong to a project.
type Presented string

const (
	PresentedActive     Presented = "ACTIVE"
	PresentedNotStarted Presented = "NOT_STARTED"
	PresentedInProgress Presented = "IN_PROGRESS"
	PresentedCompleted  Presented = "COMPLETED"
	PresentedFinished   Presented = "FINISHED"
)

func Present(s Status, hasProject bool) Presented {
	switch s {
	case StatusInProgress:
		return PresentedInProgress
	case StatusCompleted:
		if hasProject {
			return PresentedFinished
		}
		return PresentedCompleted
	default:
		if hasProject {
			return PresentedNotStarted
		}
		return PresentedActive
	}
}

// Persist accepts either vocabulary and returns the stored status.
func Persist(requested string) (Status, error) {
	switch Presented(strings.ToUpper(strings.TrimSpace(requested))) {
	case PresentedActive, PresentedNotStarted:
		return StatusActive, nil
	case PresentedInProgress:
		return StatusInProgress, nil
	case PresentedCompleted, PresentedFinished:
		return StatusCompleted, nil
	default:
		return "", apperr.Invalid("status", fmt.Sprintf("unknown status %q", requested))
	}
}

// BoardOnly reports whether requested is a project-board term, which as a
// filter only matches tasks that have a project.
func BoardOnly(requested string) bool {
	p := Presented(strings.ToUpper(strings.TrimSpace(requested)))
	return p == PresentedNotStarted || p == PresentedFinished
}

// InitialStatus is the stored status of a new task. Project and inbox tasks
// both start ACTIVE; hasProject only changes how Present shows it
// (NOT_STARTED on a board, ACTIVE in the inbox).
func InitialStatus(hasProject bool) Status {
	return StatusActive
}

type State struct {
	Status      Status
	CompletedAt *time.Time
}

// Transition moves prev to next. Entering COMPLETED stamps now, staying in it
// keeps the original stamp and leaving it clears the stamp.
func Transition(prev State, next Status, now time.Time) State {
	if next == StatusCompleted {
		if prev.Status == StatusCompleted && prev.CompletedAt != nil {
			return State{Status: next, CompletedAt: prev.CompletedAt}
		}
		stamp := now
		return State{Status: next, CompletedAt: &stamp}
	}
	return State{Status: next}
}

func Check(s State) error {
	if (s.Status == StatusCompleted) != (s.CompletedAt != nil) {
		return fmt.Errorf("status %s with completed_at set=%t", s.Status, s.CompletedAt != nil)
	}
	return nil
}
