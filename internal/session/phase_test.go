package session

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hirewise/examroom-backend/internal/model"
)

func windowExam(start, end time.Time) *model.ExamDefinition {
	return &model.ExamDefinition{
		ID:      uuid.New(),
		Title:   "Window test",
		StartAt: start,
		EndAt:   end,
	}
}

func TestResolvePhaseWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	exam := windowExam(start, end)
	elig := &model.EligibilityRecord{IsEligible: true}

	cases := []struct {
		name string
		now  time.Time
		want Phase
	}{
		{"before start", start.Add(-time.Minute), PhaseUpcoming},
		{"at start", start, PhaseAvailable},
		{"inside window", start.Add(time.Hour), PhaseAvailable},
		{"at end", end, PhaseAvailable},
		{"after end", end.Add(time.Second), PhaseExpired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolvePhase(elig, exam, tc.now)
			if err != nil {
				t.Fatalf("ResolvePhase: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestResolvePhaseCompletedWinsOverWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	exam := windowExam(start, start.Add(time.Hour))
	elig := &model.EligibilityRecord{
		IsEligible: true,
		Submission: &model.SubmissionRecord{Status: model.SubmissionStatusCompleted},
	}

	// Completed takes precedence at every point relative to the window.
	for _, now := range []time.Time{
		start.Add(-time.Hour),
		start.Add(30 * time.Minute),
		start.Add(2 * time.Hour),
	} {
		got, err := ResolvePhase(elig, exam, now)
		if err != nil {
			t.Fatalf("ResolvePhase: %v", err)
		}
		if got != PhaseCompleted {
			t.Errorf("now=%v: got %s, want %s", now, got, PhaseCompleted)
		}
	}
}

func TestResolvePhaseInProgressSubmissionDoesNotComplete(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	exam := windowExam(start, start.Add(time.Hour))
	elig := &model.EligibilityRecord{
		IsEligible: true,
		Submission: &model.SubmissionRecord{Status: model.SubmissionStatusInProgress},
	}

	got, err := ResolvePhase(elig, exam, start.Add(time.Minute))
	if err != nil {
		t.Fatalf("ResolvePhase: %v", err)
	}
	if got != PhaseAvailable {
		t.Errorf("got %s, want %s", got, PhaseAvailable)
	}
}

func TestResolvePhaseInvalidWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	exam := windowExam(start, start.Add(-time.Minute))

	_, err := ResolvePhase(nil, exam, start)
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("got %v, want ErrInvalidWindow", err)
	}
}

func TestResolvePhaseIsPure(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	exam := windowExam(start, start.Add(time.Hour))
	elig := &model.EligibilityRecord{IsEligible: true}
	now := start.Add(10 * time.Minute)

	first, err := ResolvePhase(elig, exam, now)
	if err != nil {
		t.Fatalf("ResolvePhase: %v", err)
	}
	for i := 0; i < 100; i++ {
		got, err := ResolvePhase(elig, exam, now)
		if err != nil {
			t.Fatalf("ResolvePhase: %v", err)
		}
		if got != first {
			t.Fatalf("call %d: got %s, want %s", i, got, first)
		}
	}
}
