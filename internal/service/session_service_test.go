package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hirewise/examroom-backend/internal/model"
	"github.com/hirewise/examroom-backend/internal/session"
)

type staticIdentity struct {
	user *model.User
}

func (s staticIdentity) CurrentUser(context.Context) (*model.User, error) {
	return s.user, nil
}

type staticDirectory struct {
	exam *model.ExamDefinition
	elig *model.EligibilityRecord
}

func (d staticDirectory) FetchExamDefinition(context.Context, uuid.UUID) (*model.ExamDefinition, error) {
	return d.exam, nil
}

func (d staticDirectory) FetchEligibility(context.Context, int, uuid.UUID) (*model.EligibilityRecord, error) {
	return d.elig, nil
}

type staticSink struct {
	err error
}

func (s staticSink) Submit(context.Context, *model.Submission) error {
	return s.err
}

func submittedEngine(t *testing.T, sinkErr error) *session.Engine {
	t.Helper()
	now := time.Now()
	exam := &model.ExamDefinition{
		ID:              uuid.New(),
		Title:           "Terminal events",
		QuestionType:    model.QuestionKindMCQ,
		DurationSeconds: 600,
		StartAt:         now.Add(-time.Hour),
		EndAt:           now.Add(time.Hour),
		Questions: []model.QuestionSpec{
			{ID: uuid.New(), Kind: model.QuestionKindMCQ, Options: []string{"A", "B"}},
		},
	}
	e := session.NewEngine(session.Config{
		Identity:  staticIdentity{user: &model.User{ID: 3, Role: model.RoleCandidate}},
		Directory: staticDirectory{exam: exam, elig: &model.EligibilityRecord{IsEligible: true}},
		Sink:      staticSink{err: sinkErr},
		Log:       zerolog.Nop(),
	})
	if err := e.Admit(context.Background(), exam.ID); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	return e
}

func TestTerminalEventOnCleanSubmit(t *testing.T) {
	e := submittedEngine(t, nil)
	if err := e.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := terminalEventType(e.Rejection()); got != "submitted" {
		t.Errorf("event = %q, want submitted", got)
	}
}

func TestTerminalEventReportsSinkFailure(t *testing.T) {
	e := submittedEngine(t, errors.New("connection refused"))
	if err := e.Submit(context.Background()); err == nil {
		t.Fatal("Submit succeeded with a failing sink")
	}

	// A subscriber must not be told the submission succeeded.
	if got := terminalEventType(e.Rejection()); got != "submit_failed" {
		t.Errorf("event = %q, want submit_failed", got)
	}
}
