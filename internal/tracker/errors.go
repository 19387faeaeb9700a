package tracker

import (
	"errors"
	"fmt"
)

// ─── Sentinel errors ─────────────────────────────────────────────────────────

// ErrNotFound is returned when an application (or the referenced job) is
// missing or does not belong to the user. Ownership failures are deliberately
// indistinguishable from missing records so ids cannot be probed.
var ErrNotFound = errors.New("application not found")

// ErrJobNotFound is returned at creation when the referenced job posting
// does not exist in the catalog.
var ErrJobNotFound = errors.New("job not found")

// ErrDuplicate is returned when the user already tracks an application for
// the same job posting.
var ErrDuplicate = errors.New("application already exists for this job")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// InvalidTransitionError is returned when a status change is not permitted
// by the state machine.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %s → %s is not allowed", e.From, e.To)
}
