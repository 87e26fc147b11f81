package session

import (
	"errors"
	"time"

	"github.com/hirewise/examroom-backend/internal/model"
)

// Phase is the temporal state of an exam relative to a candidate, derived on
// demand and never stored.
type Phase string

const (
	PhaseUpcoming  Phase = "UPCOMING"
	PhaseAvailable Phase = "AVAILABLE"
	PhaseExpired   Phase = "EXPIRED"
	PhaseCompleted Phase = "COMPLETED"
)

// ErrInvalidWindow reports an exam definition whose admission window is
// inverted (startAt after endAt). This is a configuration error and is never
// coerced into a phase.
var ErrInvalidWindow = errors.New("exam admission window start is after end")

// ResolvePhase computes the exam's phase for a candidate. It is a pure
// function of its inputs: callers may poll it repeatedly without drift.
//
// A completed prior submission wins over any time-based phase; otherwise the
// phase follows the admission window around now. Only PhaseAvailable permits
// entering a session.
func ResolvePhase(elig *model.EligibilityRecord, exam *model.ExamDefinition, now time.Time) (Phase, error) {
	if exam.StartAt.After(exam.EndAt) {
		return "", ErrInvalidWindow
	}

	if elig != nil && elig.Submission != nil && elig.Submission.Status == model.SubmissionStatusCompleted {
		return PhaseCompleted, nil
	}

	switch {
	case now.Before(exam.StartAt):
		return PhaseUpcoming, nil
	case now.After(exam.EndAt):
		return PhaseExpired, nil
	default:
		return PhaseAvailable, nil
	}
}
