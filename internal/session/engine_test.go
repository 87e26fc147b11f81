package session

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hirewise/examroom-backend/internal/model"
	"github.com/rs/zerolog"
)

// ─── Collaborator stubs ─────────────────────────────────────────────

type stubIdentity struct {
	user *model.User
	err  error
}

func (s *stubIdentity) CurrentUser(context.Context) (*model.User, error) {
	return s.user, s.err
}

type stubDirectory struct {
	exam    *model.ExamDefinition
	examErr error
	elig    *model.EligibilityRecord
	eligErr error
}

func (s *stubDirectory) FetchExamDefinition(context.Context, uuid.UUID) (*model.ExamDefinition, error) {
	return s.exam, s.examErr
}

func (s *stubDirectory) FetchEligibility(context.Context, int, uuid.UUID) (*model.EligibilityRecord, error) {
	return s.elig, s.eligErr
}

type recordingSink struct {
	mu      sync.Mutex
	calls   []*model.Submission
	err     error
	release chan struct{} // when set, Submit blocks until closed
}

func (s *recordingSink) Submit(_ context.Context, sub *model.Submission) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sub)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *recordingSink) last() *model.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

type recordingMonitor struct {
	mu     sync.Mutex
	active int
	ended  int
}

func (m *recordingMonitor) SessionActive(uuid.UUID, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active++
}

func (m *recordingMonitor) SessionEnded(uuid.UUID, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended++
}

func (m *recordingMonitor) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.ended
}

// ─── Fixtures ───────────────────────────────────────────────────────

var testCandidate = &model.User{ID: 7, Email: "candidate@example.com", Role: model.RoleCandidate}

func openExam(durationSeconds int, questions ...model.QuestionSpec) *model.ExamDefinition {
	now := time.Now()
	return &model.ExamDefinition{
		ID:              uuid.New(),
		Title:           "General Aptitude",
		QuestionType:    model.QuestionKindMCQ,
		DurationSeconds: durationSeconds,
		StartAt:         now.Add(-time.Hour),
		EndAt:           now.Add(time.Hour),
		Questions:       questions,
	}
}

func eligibleRecord() *model.EligibilityRecord {
	return &model.EligibilityRecord{IsEligible: true}
}

func testEngine(dir *stubDirectory, sink *recordingSink, monitor MonitorHook) *Engine {
	return NewEngine(Config{
		Identity:     &stubIdentity{user: testCandidate},
		Directory:    dir,
		Sink:         sink,
		Monitor:      monitor,
		Log:          zerolog.Nop(),
		TickInterval: testTick,
	})
}

func rejectionKind(t *testing.T, err error) RejectKind {
	t.Helper()
	var rej *Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("got %v, want a *Rejection", err)
	}
	return rej.Kind
}

// ─── Admission ──────────────────────────────────────────────────────

func TestAdmitRejectsMissingUser(t *testing.T) {
	e := NewEngine(Config{
		Identity:  &stubIdentity{},
		Directory: &stubDirectory{},
		Sink:      &recordingSink{},
		Log:       zerolog.Nop(),
	})

	err := e.Admit(context.Background(), uuid.New())
	if kind := rejectionKind(t, err); kind != RejectNotAuthenticated {
		t.Errorf("kind = %s, want %s", kind, RejectNotAuthenticated)
	}
	if e.State() != StateTerminated {
		t.Errorf("state = %s, want %s", e.State(), StateTerminated)
	}
}

func TestAdmitRejectsIneligibleRegardlessOfPhase(t *testing.T) {
	// Even an upcoming window reports NotEligible first.
	exam := openExam(60, mcqSpec(false, "A", "B"))
	exam.StartAt = time.Now().Add(time.Hour)
	exam.EndAt = time.Now().Add(2 * time.Hour)

	dir := &stubDirectory{exam: exam, elig: &model.EligibilityRecord{IsEligible: false}}
	e := testEngine(dir, &recordingSink{}, nil)

	err := e.Admit(context.Background(), exam.ID)
	if kind := rejectionKind(t, err); kind != RejectNotEligible {
		t.Errorf("kind = %s, want %s", kind, RejectNotEligible)
	}
}

func TestAdmitRejectsByPhase(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name       string
		start, end time.Time
		submission *model.SubmissionRecord
		want       RejectKind
	}{
		{"upcoming", now.Add(time.Hour), now.Add(2 * time.Hour), nil, RejectWindowNotOpen},
		{"expired", now.Add(-2 * time.Hour), now.Add(-time.Hour), nil, RejectWindowClosed},
		{
			"completed", now.Add(-time.Hour), now.Add(time.Hour),
			&model.SubmissionRecord{Status: model.SubmissionStatusCompleted},
			RejectAlreadyCompleted,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exam := openExam(60, mcqSpec(false, "A", "B"))
			exam.StartAt, exam.EndAt = tc.start, tc.end
			dir := &stubDirectory{
				exam: exam,
				elig: &model.EligibilityRecord{IsEligible: true, Submission: tc.submission},
			}
			e := testEngine(dir, &recordingSink{}, nil)

			err := e.Admit(context.Background(), exam.ID)
			if kind := rejectionKind(t, err); kind != tc.want {
				t.Errorf("kind = %s, want %s", kind, tc.want)
			}
		})
	}
}

func TestAdmitRejectsInvalidWindow(t *testing.T) {
	exam := openExam(60, mcqSpec(false, "A", "B"))
	exam.StartAt, exam.EndAt = exam.EndAt, exam.StartAt
	dir := &stubDirectory{exam: exam, elig: eligibleRecord()}
	e := testEngine(dir, &recordingSink{}, nil)

	err := e.Admit(context.Background(), exam.ID)
	if kind := rejectionKind(t, err); kind != RejectDefinitionFetchFailed {
		t.Errorf("kind = %s, want %s", kind, RejectDefinitionFetchFailed)
	}
	if !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("rejection does not wrap ErrInvalidWindow: %v", err)
	}
}

func TestAdmitRejectsFetchFailure(t *testing.T) {
	dir := &stubDirectory{examErr: errors.New("connection refused")}
	e := testEngine(dir, &recordingSink{}, nil)

	err := e.Admit(context.Background(), uuid.New())
	if kind := rejectionKind(t, err); kind != RejectDefinitionFetchFailed {
		t.Errorf("kind = %s, want %s", kind, RejectDefinitionFetchFailed)
	}
}

func TestEngineIsSingleUse(t *testing.T) {
	exam := openExam(60, mcqSpec(false, "A", "B"))
	dir := &stubDirectory{exam: exam, elig: eligibleRecord()}
	e := testEngine(dir, &recordingSink{}, nil)
	defer e.Abort()

	if err := e.Admit(context.Background(), exam.ID); err != nil {
		t.Fatalf("first Admit: %v", err)
	}
	if err := e.Admit(context.Background(), exam.ID); !errors.Is(err, ErrEngineUsed) {
		t.Errorf("second Admit = %v, want ErrEngineUsed", err)
	}
}

// ─── Active session operations ──────────────────────────────────────

func TestAnswerAndNavigate(t *testing.T) {
	q1 := mcqSpec(false, "London", "Berlin", "Paris")
	q2 := mcqSpec(false, "Venus", "Mars")
	exam := openExam(600, q1, q2)
	dir := &stubDirectory{exam: exam, elig: eligibleRecord()}
	e := testEngine(dir, &recordingSink{}, nil)
	defer e.Abort()

	if err := e.Admit(context.Background(), exam.ID); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	applied, err := e.Answer(q1.ID, model.AnswerPayload{SelectedOptions: []int{2}})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !reflect.DeepEqual(applied.SelectedOptions, []int{2}) {
		t.Errorf("applied = %v, want [2]", applied.SelectedOptions)
	}

	if _, err := e.Answer(uuid.New(), model.AnswerPayload{}); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("unknown question: got %v, want ErrUnknownQuestion", err)
	}

	idx, err := e.Navigate(DirectionNext)
	if err != nil || idx != 1 {
		t.Fatalf("Navigate(next) = %d, %v; want 1, nil", idx, err)
	}

	st := e.Status()
	if st.CurrentIndex != 1 || !st.IsLast {
		t.Errorf("status index=%d isLast=%v, want 1/true", st.CurrentIndex, st.IsLast)
	}
	if st.Question == nil || st.Question.ID != q2.ID {
		t.Error("status does not show the current question")
	}
	if st.Answer != nil {
		t.Error("status shows an answer for an unanswered question")
	}
}

// ─── Submission paths ───────────────────────────────────────────────

func TestEndToEndAutoSubmitOnExpiry(t *testing.T) {
	q1 := mcqSpec(false, "A", "B")
	exam := openExam(5, q1)
	dir := &stubDirectory{exam: exam, elig: eligibleRecord()}
	sink := &recordingSink{}
	monitor := &recordingMonitor{}
	e := testEngine(dir, sink, monitor)

	if err := e.Admit(context.Background(), exam.ID); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if _, err := e.Answer(q1.ID, model.AnswerPayload{SelectedOptions: []int{1}}); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	// No manual submit: the clock forces the transition.
	waitFor(t, time.Second, func() bool { return e.State() == StateTerminated })

	if n := sink.count(); n != 1 {
		t.Fatalf("sink called %d times, want exactly 1", n)
	}
	sub := sink.last()
	if sub.ExamID != exam.ID || sub.CandidateID != testCandidate.ID {
		t.Error("submission carries wrong identifiers")
	}
	got, ok := sub.Answers[q1.ID]
	if !ok || !reflect.DeepEqual(got.SelectedOptions, []int{1}) {
		t.Errorf("snapshot = %v, want {q1: [1]}", sub.Answers)
	}
	if active, ended := monitor.counts(); active != 1 || ended != 1 {
		t.Errorf("monitor active=%d ended=%d, want 1/1", active, ended)
	}
	if e.Rejection() != nil {
		t.Errorf("clean forced submission left a rejection: %v", e.Rejection())
	}
}

func TestManualAndExpirySubmitAreSingleFlight(t *testing.T) {
	q1 := mcqSpec(false, "A", "B")
	exam := openExam(600, q1)
	dir := &stubDirectory{exam: exam, elig: eligibleRecord()}
	sink := &recordingSink{release: make(chan struct{})}
	e := testEngine(dir, sink, nil)

	if err := e.Admit(context.Background(), exam.ID); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	// Manual submit is in flight (blocked inside the sink) when expiry
	// arrives; the expiry must be ignored.
	done := make(chan error, 1)
	go func() { done <- e.Submit(context.Background()) }()
	waitFor(t, time.Second, func() bool { return e.State() == StateSubmitting })

	e.handleExpiry() // the racing trigger, delivered deterministically
	close(sink.release)

	if err := <-done; err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if n := sink.count(); n != 1 {
		t.Errorf("sink called %d times, want exactly 1", n)
	}
	if e.State() != StateTerminated {
		t.Errorf("state = %s, want %s", e.State(), StateTerminated)
	}
}

func TestTerminatedIsAbsorbing(t *testing.T) {
	q1 := mcqSpec(false, "A", "B")
	exam := openExam(600, q1)
	dir := &stubDirectory{exam: exam, elig: eligibleRecord()}
	sink := &recordingSink{}
	e := testEngine(dir, sink, nil)

	if err := e.Admit(context.Background(), exam.ID); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if err := e.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := e.Answer(q1.ID, model.AnswerPayload{SelectedOptions: []int{0}}); !errors.Is(err, ErrSessionNotActive) {
		t.Errorf("Answer after termination = %v, want ErrSessionNotActive", err)
	}
	if _, err := e.Navigate(DirectionNext); !errors.Is(err, ErrSessionNotActive) {
		t.Errorf("Navigate after termination = %v, want ErrSessionNotActive", err)
	}
	if err := e.Submit(context.Background()); !errors.Is(err, ErrSessionNotActive) {
		t.Errorf("Submit after termination = %v, want ErrSessionNotActive", err)
	}
	if n := sink.count(); n != 1 {
		t.Errorf("sink called %d times, want exactly 1", n)
	}
}

func TestSubmissionFailureIsTerminal(t *testing.T) {
	q1 := mcqSpec(false, "A", "B")
	exam := openExam(600, q1)
	dir := &stubDirectory{exam: exam, elig: eligibleRecord()}
	sink := &recordingSink{err: errors.New("gateway timeout")}
	e := testEngine(dir, sink, nil)

	if err := e.Admit(context.Background(), exam.ID); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	err := e.Submit(context.Background())
	if kind := rejectionKind(t, err); kind != RejectSubmissionFailed {
		t.Errorf("kind = %s, want %s", kind, RejectSubmissionFailed)
	}

	// The failure does not resurrect the session: no retry of the exam.
	if e.State() != StateTerminated {
		t.Errorf("state = %s, want %s", e.State(), StateTerminated)
	}
	if err := e.Submit(context.Background()); !errors.Is(err, ErrSessionNotActive) {
		t.Errorf("retry after failure = %v, want ErrSessionNotActive", err)
	}
}

func TestAbortDiscardsWithoutSubmitting(t *testing.T) {
	q1 := mcqSpec(false, "A", "B")
	exam := openExam(2, q1)
	dir := &stubDirectory{exam: exam, elig: eligibleRecord()}
	sink := &recordingSink{}
	monitor := &recordingMonitor{}
	e := testEngine(dir, sink, monitor)

	if err := e.Admit(context.Background(), exam.ID); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	e.Abort()

	if e.State() != StateTerminated {
		t.Errorf("state = %s, want %s", e.State(), StateTerminated)
	}

	// Wait past the would-be expiry: the stopped clock must not submit.
	time.Sleep(10 * testTick)
	if n := sink.count(); n != 0 {
		t.Errorf("sink called %d times after abort, want 0", n)
	}
	if _, ended := monitor.counts(); ended != 1 {
		t.Errorf("monitor ended=%d, want 1", ended)
	}

	// Abort is idempotent.
	e.Abort()
	if _, ended := monitor.counts(); ended != 1 {
		t.Error("second Abort notified the monitor again")
	}
}
