package session

import (
	"errors"
	"fmt"
)

// RejectKind identifies why a session attempt was rejected or why a
// terminated session ended abnormally. Callers render kind-specific
// messages; a rejection is never a generic failure.
type RejectKind string

const (
	RejectNotAuthenticated      RejectKind = "NOT_AUTHENTICATED"
	RejectNotEligible           RejectKind = "NOT_ELIGIBLE"
	RejectWindowNotOpen         RejectKind = "WINDOW_NOT_OPEN"
	RejectWindowClosed          RejectKind = "WINDOW_CLOSED"
	RejectAlreadyCompleted      RejectKind = "ALREADY_COMPLETED"
	RejectDefinitionFetchFailed RejectKind = "DEFINITION_FETCH_FAILED"
	RejectSubmissionFailed      RejectKind = "SUBMISSION_FAILED"
)

// Rejection is a terminal error for a session attempt. All admitting-phase
// rejections end the attempt before a session exists; RejectSubmissionFailed
// is the only kind raised after one did.
type Rejection struct {
	Kind RejectKind
	Err  error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Kind, r.Err)
	}
	return string(r.Kind)
}

func (r *Rejection) Unwrap() error { return r.Err }

func reject(kind RejectKind, err error) *Rejection {
	return &Rejection{Kind: kind, Err: err}
}

// Operational sentinels for calls against a session that cannot accept them.
var (
	// ErrSessionNotActive is returned for answer/navigate/submit calls once
	// the session left the Active state. The call is a no-op, not a crash.
	ErrSessionNotActive = errors.New("session is not active")

	// ErrUnknownQuestion flags an answer for a question id that is not part
	// of the exam. Valid callers validate ids first; hitting this is a
	// programming error.
	ErrUnknownQuestion = errors.New("question is not part of this exam")
)
