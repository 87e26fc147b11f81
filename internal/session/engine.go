package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hirewise/examroom-backend/internal/model"
	"github.com/rs/zerolog"
)

// State is the engine's high-level lifecycle state.
type State string

const (
	StateIdle       State = "IDLE"
	StateAdmitting  State = "ADMITTING"
	StateActive     State = "ACTIVE"
	StateSubmitting State = "SUBMITTING"
	StateTerminated State = "TERMINATED"
)

// Direction selects a navigation step.
type Direction string

const (
	DirectionNext     Direction = "next"
	DirectionPrevious Direction = "previous"
)

// ErrEngineUsed is returned when Admit is called on an engine that already
// ran an attempt. Engines are single-use: one engine, one session.
var ErrEngineUsed = errors.New("engine already admitted a session")

// IdentityProvider supplies the current authenticated user. Absence of a
// user rejects admission immediately.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (*model.User, error)
}

// ExamDirectory looks up exam definitions and eligibility. Both calls may
// fail (network, not found); failures surface as admission rejections.
type ExamDirectory interface {
	FetchExamDefinition(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error)
	FetchEligibility(ctx context.Context, candidateID int, examID uuid.UUID) (*model.EligibilityRecord, error)
}

// SubmissionSink receives the final answer snapshot. It is called exactly
// once per terminal session; (exam, candidate) is the dedup key for the
// sink's own idempotency.
type SubmissionSink interface {
	Submit(ctx context.Context, sub *model.Submission) error
}

// MonitorHook receives session lifecycle notifications so a proctoring
// component can attach and detach its monitoring feed. The engine never
// touches the feed itself.
type MonitorHook interface {
	SessionActive(examID uuid.UUID, candidateID int)
	SessionEnded(examID uuid.UUID, candidateID int)
}

type nopMonitor struct{}

func (nopMonitor) SessionActive(uuid.UUID, int) {}
func (nopMonitor) SessionEnded(uuid.UUID, int)  {}

// Config wires an Engine's collaborators. Identity, Directory and Sink are
// required; the rest default sensibly.
type Config struct {
	Identity  IdentityProvider
	Directory ExamDirectory
	Sink      SubmissionSink
	Monitor   MonitorHook
	Log       zerolog.Logger

	// TickInterval is the real-time length of one countdown second.
	// Defaults to time.Second; tests shorten it.
	TickInterval time.Duration

	// Now defaults to time.Now.
	Now func() time.Time

	// OnTick, when set, observes every countdown decrement. Used by the
	// WebSocket transport to push remaining time.
	OnTick func(remaining int)
}

// Engine runs a single candidate's attempt at a single exam:
// Idle → Admitting → Active → Submitting → Terminated. Terminated is
// absorbing; events arriving after it are logged no-ops.
//
// All transitions are serialized by one mutex. The clock's expiry callback
// and caller-driven operations both check the current state under that
// mutex before acting, which yields the at-most-one-transition-out-of-
// Active guarantee: an expiry racing a manual submission loses and is
// ignored.
type Engine struct {
	mu    sync.Mutex
	state State

	identity  IdentityProvider
	directory ExamDirectory
	sink      SubmissionSink
	monitor   MonitorHook
	log       zerolog.Logger

	tickInterval time.Duration
	now          func() time.Time
	onTick       func(int)

	exam      *model.ExamDefinition
	candidate *model.User
	startedAt time.Time
	clock     *Clock
	answers   *AnswerStore
	cursor    *Sequencer

	// rejection records why the attempt ended abnormally; nil for a clean
	// submission.
	rejection *Rejection
}

// NewEngine builds an idle engine. The session starts with Admit.
func NewEngine(cfg Config) *Engine {
	if cfg.Monitor == nil {
		cfg.Monitor = nopMonitor{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		state:        StateIdle,
		identity:     cfg.Identity,
		directory:    cfg.Directory,
		sink:         cfg.Sink,
		monitor:      cfg.Monitor,
		log:          cfg.Log.With().Str("component", "session_engine").Logger(),
		tickInterval: cfg.TickInterval,
		now:          cfg.Now,
		onTick:       cfg.OnTick,
	}
}

// Admit runs the admission check and, on success, starts the session: clock
// running, cursor at question zero, empty answer store. On rejection the
// engine terminates without ever allocating session state, and the returned
// error is a *Rejection carrying the specific kind.
func (e *Engine) Admit(ctx context.Context, examID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateIdle {
		return ErrEngineUsed
	}
	e.state = StateAdmitting

	user, err := e.identity.CurrentUser(ctx)
	if err != nil || user == nil {
		return e.rejectAdmissionLocked(RejectNotAuthenticated, err)
	}

	exam, err := e.directory.FetchExamDefinition(ctx, examID)
	if err != nil {
		return e.rejectAdmissionLocked(RejectDefinitionFetchFailed, err)
	}
	if len(exam.Questions) == 0 {
		return e.rejectAdmissionLocked(RejectDefinitionFetchFailed, errors.New("exam has no questions"))
	}

	elig, err := e.directory.FetchEligibility(ctx, user.ID, examID)
	if err != nil {
		return e.rejectAdmissionLocked(RejectDefinitionFetchFailed, err)
	}

	// Eligibility is checked before phase: an ineligible candidate is
	// rejected as such regardless of the window.
	if !elig.IsEligible {
		return e.rejectAdmissionLocked(RejectNotEligible, nil)
	}

	phase, err := ResolvePhase(elig, exam, e.now())
	if err != nil {
		return e.rejectAdmissionLocked(RejectDefinitionFetchFailed, err)
	}
	switch phase {
	case PhaseUpcoming:
		return e.rejectAdmissionLocked(RejectWindowNotOpen, nil)
	case PhaseExpired:
		return e.rejectAdmissionLocked(RejectWindowClosed, nil)
	case PhaseCompleted:
		return e.rejectAdmissionLocked(RejectAlreadyCompleted, nil)
	}

	e.exam = exam
	e.candidate = user
	e.startedAt = e.now()
	e.answers = NewAnswerStore()
	e.cursor = NewSequencer(len(exam.Questions))
	e.clock = NewClock(exam.DurationSeconds, e.tickInterval, e.onTick, e.handleExpiry)
	e.state = StateActive
	e.clock.Start()

	e.monitor.SessionActive(exam.ID, user.ID)
	e.log.Info().
		Str("exam_id", exam.ID.String()).
		Int("candidate_id", user.ID).
		Int("duration_seconds", exam.DurationSeconds).
		Msg("Session admitted")
	return nil
}

func (e *Engine) rejectAdmissionLocked(kind RejectKind, cause error) error {
	e.state = StateTerminated
	e.rejection = reject(kind, cause)
	e.log.Info().
		Str("kind", string(kind)).
		AnErr("cause", cause).
		Msg("Admission rejected")
	return e.rejection
}

// Answer captures or updates the answer for a question. Only valid while
// Active; afterwards it is a logged no-op returning ErrSessionNotActive.
func (e *Engine) Answer(questionID uuid.UUID, payload model.AnswerPayload) (model.AnswerPayload, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateActive {
		e.log.Debug().Str("state", string(e.state)).Msg("Answer rejected: session not active")
		return model.AnswerPayload{}, ErrSessionNotActive
	}

	spec, ok := e.findQuestion(questionID)
	if !ok {
		return model.AnswerPayload{}, ErrUnknownQuestion
	}
	return e.answers.Apply(spec, payload), nil
}

// Navigate moves the cursor one step, saturating at the boundaries, and
// returns the new index.
func (e *Engine) Navigate(dir Direction) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateActive {
		e.log.Debug().Str("state", string(e.state)).Msg("Navigate rejected: session not active")
		return 0, ErrSessionNotActive
	}

	if dir == DirectionPrevious {
		return e.cursor.Previous(), nil
	}
	return e.cursor.Next(), nil
}

// Submit is the explicit candidate submission. It shares one code path with
// clock expiry, so manual and forced submission behave identically.
func (e *Engine) Submit(ctx context.Context) error {
	return e.submit(ctx, "manual")
}

// handleExpiry is the clock's expiry callback. Running in the clock
// goroutine, it takes the same single-flight path as Submit: if a manual
// submission already left Active, the expiry is ignored.
func (e *Engine) handleExpiry() {
	if err := e.submit(context.Background(), "expired"); err != nil {
		if !errors.Is(err, ErrSessionNotActive) {
			e.log.Error().Err(err).Msg("Forced submission failed")
		}
	}
}

func (e *Engine) submit(ctx context.Context, trigger string) error {
	e.mu.Lock()
	if e.state != StateActive {
		e.log.Debug().
			Str("trigger", trigger).
			Str("state", string(e.state)).
			Msg("Submission trigger ignored")
		e.mu.Unlock()
		return ErrSessionNotActive
	}

	e.state = StateSubmitting
	// Stop is idempotent, so this is safe on the expiry path too.
	e.clock.Stop()

	sub := &model.Submission{
		ExamID:      e.exam.ID,
		CandidateID: e.candidate.ID,
		StartedAt:   e.startedAt,
		SubmittedAt: e.now(),
		Answers:     e.answers.Snapshot(),
	}
	examID, candidateID := e.exam.ID, e.candidate.ID
	e.mu.Unlock()

	err := e.sink.Submit(ctx, sub)

	// Success or failure, the session is torn down: a failed remote
	// submission never reopens the clock or resurrects Active.
	e.mu.Lock()
	e.state = StateTerminated
	if err != nil {
		e.rejection = reject(RejectSubmissionFailed, err)
	}
	rej := e.rejection
	e.mu.Unlock()

	e.monitor.SessionEnded(examID, candidateID)

	if err != nil {
		e.log.Error().
			Err(err).
			Str("trigger", trigger).
			Str("exam_id", examID.String()).
			Int("candidate_id", candidateID).
			Msg("Submission sink failed; session torn down")
		return rej
	}

	e.log.Info().
		Str("trigger", trigger).
		Str("exam_id", examID.String()).
		Int("candidate_id", candidateID).
		Int("answered", len(sub.Answers)).
		Msg("Session submitted")
	return nil
}

// Abort discards the session without submitting: the candidate navigated
// away or the owning connection closed. The clock is stopped and no
// background work survives. Safe to call in any state.
func (e *Engine) Abort() {
	e.mu.Lock()
	if e.state != StateActive {
		e.mu.Unlock()
		return
	}
	e.clock.Stop()
	e.state = StateTerminated
	examID, candidateID := e.exam.ID, e.candidate.ID
	e.mu.Unlock()

	e.monitor.SessionEnded(examID, candidateID)
	e.log.Info().
		Str("exam_id", examID.String()).
		Int("candidate_id", candidateID).
		Msg("Session aborted")
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Rejection returns the terminal rejection, if the attempt ended with one.
func (e *Engine) Rejection() *Rejection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rejection
}

// Exam returns the admitted exam definition, or nil before admission.
func (e *Engine) Exam() *model.ExamDefinition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exam
}

// StartedAt returns the admission timestamp; zero before admission.
func (e *Engine) StartedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startedAt
}

// Status is the engine's UI-facing view.
type Status struct {
	State            State                       `json:"state"`
	RemainingSeconds int                         `json:"remaining_seconds"`
	RemainingDisplay string                      `json:"remaining_display"`
	CurrentIndex     int                         `json:"current_index"`
	TotalQuestions   int                         `json:"total_questions"`
	IsFirst          bool                        `json:"is_first"`
	IsLast           bool                        `json:"is_last"`
	AnsweredCount    int                         `json:"answered_count"`
	Question         *model.QuestionForCandidate `json:"question,omitempty"`
	Answer           *model.AnswerPayload        `json:"answer,omitempty"`
}

// Status reports the observable session state: remaining seconds, cursor
// position, the current question and its answer, if any.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{State: e.state}
	if e.exam == nil || e.cursor == nil {
		return st
	}

	st.RemainingSeconds = e.clock.Remaining()
	st.RemainingDisplay = FormatRemaining(st.RemainingSeconds)
	st.CurrentIndex = e.cursor.Index()
	st.TotalQuestions = e.cursor.Len()
	st.IsFirst = e.cursor.IsFirst()
	st.IsLast = e.cursor.IsLast()
	st.AnsweredCount = e.answers.Len()

	q := e.exam.Questions[st.CurrentIndex].ForCandidate()
	st.Question = &q
	if ans, ok := e.answers.Get(q.ID); ok {
		st.Answer = &ans
	}
	return st
}

func (e *Engine) findQuestion(id uuid.UUID) (model.QuestionSpec, bool) {
	for _, q := range e.exam.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return model.QuestionSpec{}, false
}
