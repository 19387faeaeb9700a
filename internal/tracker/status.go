// Package tracker contains the application lifecycle state machine and the
// analytics computed over a user's applications. It is transport-agnostic:
// used by the HTTP server (httpserver package).
//
// Valid status graph:
//
//	SAVED ──► APPLIED ──► IN_REVIEW ◄──► INTERVIEW_SCHEDULED ──► INTERVIEWED ──► OFFER_RECEIVED ──► ACCEPTED
//	    │         │            │                   │                  │               │                │
//	    └─────────┴────────────┴───────────────────┴──────────────────┴───────────────┴────────────────┴──► REJECTED / WITHDRAWN
//
// REJECTED and WITHDRAWN are terminal states. IN_REVIEW is re-enterable from
// the interview stages (an employer can loop a candidate back for another
// round of review).
package tracker

import "fmt"

// Status values mirror the application_status enum in PostgreSQL.
type Status string

const (
	StatusSaved              Status = "SAVED"
	StatusApplied            Status = "APPLIED"
	StatusInReview           Status = "IN_REVIEW"
	StatusInterviewScheduled Status = "INTERVIEW_SCHEDULED"
	StatusInterviewed        Status = "INTERVIEWED"
	StatusOfferReceived      Status = "OFFER_RECEIVED"
	StatusAccepted           Status = "ACCEPTED"
	StatusRejected           Status = "REJECTED"
	StatusWithdrawn          Status = "WITHDRAWN"
)

// AllStatuses lists every valid status, in lifecycle order.
var AllStatuses = []Status{
	StatusSaved,
	StatusApplied,
	StatusInReview,
	StatusInterviewScheduled,
	StatusInterviewed,
	StatusOfferReceived,
	StatusAccepted,
	StatusRejected,
	StatusWithdrawn,
}

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusSaved:              {StatusApplied, StatusRejected, StatusWithdrawn},
	StatusApplied:            {StatusInReview, StatusInterviewScheduled, StatusRejected, StatusWithdrawn},
	StatusInReview:           {StatusInterviewScheduled, StatusRejected, StatusOfferReceived, StatusWithdrawn},
	StatusInterviewScheduled: {StatusInterviewed, StatusRejected, StatusInReview, StatusWithdrawn},
	StatusInterviewed:        {StatusOfferReceived, StatusRejected, StatusInReview, StatusWithdrawn},
	StatusOfferReceived:      {StatusAccepted, StatusRejected, StatusWithdrawn},
	StatusAccepted:           {StatusWithdrawn},
	// REJECTED and WITHDRAWN are terminal — no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	for _, v := range AllStatuses {
		if st == v {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// ValidateTransition returns nil when moving from → to is permitted by the
// state machine, and an *InvalidTransitionError otherwise. Self-transitions
// are never permitted; same-status note or date edits go through the
// field-only update path instead.
func ValidateTransition(from, to Status) error {
	for _, s := range validTransitions[from] {
		if s == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

// IsTerminal returns true when status has no outgoing transitions.
func IsTerminal(s Status) bool {
	return len(validTransitions[s]) == 0
}
