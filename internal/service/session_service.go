package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hirewise/examroom-backend/internal/config"
	"github.com/hirewise/examroom-backend/internal/model"
	"github.com/hirewise/examroom-backend/internal/repository"
	"github.com/hirewise/examroom-backend/internal/session"
)

// Session errors surfaced to handlers.
var (
	ErrNoActiveSession   = errors.New("no active session for this candidate")
	ErrSessionInProgress = errors.New("another session is already in progress")
)

// SessionEvent is pushed to live subscribers (WebSocket connections) as the
// session progresses.
type SessionEvent struct {
	Type             string    `json:"type"` // tick | submitted | submit_failed | aborted
	ExamID           uuid.UUID `json:"exam_id"`
	RemainingSeconds int       `json:"remaining_seconds,omitempty"`
	RemainingDisplay string    `json:"remaining_display,omitempty"`
}

// monitorEvent is published on the exam's Redis Pub/Sub channel for
// proctoring consumers.
type monitorEvent struct {
	Type        string    `json:"type"` // session_active | session_ended
	ExamID      uuid.UUID `json:"exam_id"`
	CandidateID int       `json:"candidate_id"`
	At          time.Time `json:"at"`
}

// LobbyEntry is one exam as seen from the candidate's lobby.
type LobbyEntry struct {
	ExamID          uuid.UUID               `json:"exam_id"`
	Title           string                  `json:"title"`
	QuestionType    model.QuestionKind      `json:"question_type"`
	DurationSeconds int                     `json:"duration_seconds"`
	StartAt         time.Time               `json:"start_at"`
	EndAt           time.Time               `json:"end_at"`
	Phase           session.Phase           `json:"phase"`
	Submission      *model.SubmissionRecord `json:"submission,omitempty"`
}

// liveSession is one candidate's running engine plus its event subscribers.
type liveSession struct {
	engine *session.Engine
	examID uuid.UUID

	mu   sync.Mutex
	subs map[chan SessionEvent]struct{}
}

func (ls *liveSession) subscribe() chan SessionEvent {
	ch := make(chan SessionEvent, 8)
	ls.mu.Lock()
	ls.subs[ch] = struct{}{}
	ls.mu.Unlock()
	return ch
}

func (ls *liveSession) unsubscribe(ch chan SessionEvent) {
	ls.mu.Lock()
	if _, ok := ls.subs[ch]; ok {
		delete(ls.subs, ch)
		close(ch)
	}
	ls.mu.Unlock()
}

// broadcast delivers non-blockingly; a slow subscriber drops events rather
// than stalling the clock goroutine.
func (ls *liveSession) broadcast(ev SessionEvent) {
	ls.mu.Lock()
	for ch := range ls.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	ls.mu.Unlock()
}

func (ls *liveSession) closeSubs() {
	ls.mu.Lock()
	for ch := range ls.subs {
		delete(ls.subs, ch)
		close(ch)
	}
	ls.mu.Unlock()
}

// SessionService owns the registry of live exam sessions and wires each
// engine to its collaborators: exam lookups, the submission queue, and the
// proctoring channel.
type SessionService struct {
	examSvc  *ExamService
	eligRepo *repository.EligibilityRepository
	subRepo  *repository.SubmissionRepository
	rdb      *redis.Client
	log      zerolog.Logger

	mu   sync.Mutex
	live map[int]*liveSession // keyed by candidate ID
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	examSvc *ExamService,
	eligRepo *repository.EligibilityRepository,
	subRepo *repository.SubmissionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		examSvc:  examSvc,
		eligRepo: eligRepo,
		subRepo:  subRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "session_service").Logger(),
		live:     make(map[int]*liveSession),
	}
}

// ─── Engine collaborators ──────────────────────────────────────────────

// fixedIdentity adapts an already-authenticated user to the engine's
// IdentityProvider. Authentication happened at the transport edge; the
// engine just needs the resolved user.
type fixedIdentity struct {
	user *model.User
}

func (f fixedIdentity) CurrentUser(context.Context) (*model.User, error) {
	return f.user, nil
}

// FetchExamDefinition serves the engine cache-first via the exam service.
func (s *SessionService) FetchExamDefinition(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error) {
	return s.examSvc.GetDefinition(ctx, examID)
}

// FetchEligibility serves the engine from the eligibility relation.
func (s *SessionService) FetchEligibility(ctx context.Context, candidateID int, examID uuid.UUID) (*model.EligibilityRecord, error) {
	return s.eligRepo.Get(ctx, examID, candidateID)
}

// Submit queues the finished attempt for the persistence worker. The queue
// is the durability boundary: once LPush succeeds the submission survives a
// process crash.
func (s *SessionService) Submit(ctx context.Context, sub *model.Submission) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	if err := s.rdb.LPush(ctx, config.WorkerKey.PersistSubmissionsQueue(), payload).Err(); err != nil {
		return fmt.Errorf("queue submission: %w", err)
	}
	return nil
}

// SessionActive publishes the session start on the exam's monitor channel.
func (s *SessionService) SessionActive(examID uuid.UUID, candidateID int) {
	s.publishMonitor(monitorEvent{
		Type:        "session_active",
		ExamID:      examID,
		CandidateID: candidateID,
		At:          time.Now(),
	})
}

// SessionEnded publishes the session end, notifies local subscribers, and
// drops the registry entry.
func (s *SessionService) SessionEnded(examID uuid.UUID, candidateID int) {
	s.publishMonitor(monitorEvent{
		Type:        "session_ended",
		ExamID:      examID,
		CandidateID: candidateID,
		At:          time.Now(),
	})

	s.mu.Lock()
	ls, ok := s.live[candidateID]
	if ok {
		delete(s.live, candidateID)
	}
	s.mu.Unlock()

	if ok {
		ls.broadcast(SessionEvent{Type: terminalEventType(ls.engine.Rejection()), ExamID: examID})
		ls.closeSubs()
	}
}

// terminalEventType maps the engine's end state to the subscriber event. A
// session torn down because the sink rejected the snapshot must not be
// reported as submitted.
func terminalEventType(rej *session.Rejection) string {
	if rej != nil && rej.Kind == session.RejectSubmissionFailed {
		return "submit_failed"
	}
	return "submitted"
}

func (s *SessionService) publishMonitor(ev monitorEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	channel := config.CacheKey.ExamMonitorChannel(ev.ExamID.String())
	if err := s.rdb.Publish(context.Background(), channel, payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("channel", channel).Msg("Failed to publish monitor event")
	}
}

// ─── Candidate operations ──────────────────────────────────────────────

// Lobby lists exams with the candidate's phase for each: upcoming, open,
// expired, or already completed.
func (s *SessionService) Lobby(ctx context.Context, candidateID int, page, perPage int) ([]LobbyEntry, error) {
	exams, _, err := s.examSvc.List(ctx, page, perPage)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entries := make([]LobbyEntry, 0, len(exams))
	for i := range exams {
		exam := &exams[i]
		elig, err := s.eligRepo.Get(ctx, exam.ID, candidateID)
		if err != nil {
			return nil, fmt.Errorf("eligibility for exam %s: %w", exam.ID, err)
		}
		if !elig.IsEligible {
			continue // The lobby only shows granted exams.
		}

		phase, err := session.ResolvePhase(elig, exam, now)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Skipping exam with invalid window")
			continue
		}

		entries = append(entries, LobbyEntry{
			ExamID:          exam.ID,
			Title:           exam.Title,
			QuestionType:    exam.QuestionType,
			DurationSeconds: exam.DurationSeconds,
			StartAt:         exam.StartAt,
			EndAt:           exam.EndAt,
			Phase:           phase,
			Submission:      elig.Submission,
		})
	}
	return entries, nil
}

// CompletedSubmission retrieves the candidate's own finished attempt,
// answers included, so a completed exam can be reviewed.
func (s *SessionService) CompletedSubmission(ctx context.Context, candidateID int, examID uuid.UUID) (*model.Submission, error) {
	return s.subRepo.GetWithAnswers(ctx, examID, candidateID)
}

// Enter admits a candidate into an exam and registers the live session.
// Re-entering the exam the candidate is already sitting returns the current
// status instead of a second admission.
func (s *SessionService) Enter(ctx context.Context, user *model.User, examID uuid.UUID) (session.Status, error) {
	s.mu.Lock()
	if existing, ok := s.live[user.ID]; ok {
		defer s.mu.Unlock()
		if existing.examID == examID && existing.engine.State() == session.StateActive {
			return existing.engine.Status(), nil
		}
		return session.Status{}, ErrSessionInProgress
	}

	ls := &liveSession{examID: examID, subs: make(map[chan SessionEvent]struct{})}
	ls.engine = session.NewEngine(session.Config{
		Identity:  fixedIdentity{user: user},
		Directory: s,
		Sink:      s,
		Monitor:   s,
		Log:       s.log,
		OnTick: func(remaining int) {
			ls.broadcast(SessionEvent{
				Type:             "tick",
				ExamID:           examID,
				RemainingSeconds: remaining,
				RemainingDisplay: session.FormatRemaining(remaining),
			})
		},
	})
	// Register before Admit so the expiry path can find and remove it.
	s.live[user.ID] = ls
	s.mu.Unlock()

	if err := ls.engine.Admit(ctx, examID); err != nil {
		s.mu.Lock()
		delete(s.live, user.ID)
		s.mu.Unlock()
		return session.Status{}, err
	}

	// Record the attempt start. Failure is non-fatal: the completed
	// submission upsert carries the same key.
	if err := s.subRepo.MarkInProgress(ctx, examID, user.ID, ls.engine.StartedAt()); err != nil {
		s.log.Warn().
			Err(err).
			Str("exam_id", examID.String()).
			Int("candidate_id", user.ID).
			Msg("Failed to mark attempt in progress")
	}

	return ls.engine.Status(), nil
}

func (s *SessionService) lookup(candidateID int) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.live[candidateID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	return ls, nil
}

// Status returns the candidate's current session view.
func (s *SessionService) Status(candidateID int) (session.Status, error) {
	ls, err := s.lookup(candidateID)
	if err != nil {
		return session.Status{}, err
	}
	return ls.engine.Status(), nil
}

// Answer records an answer for the candidate's active session.
func (s *SessionService) Answer(candidateID int, questionID uuid.UUID, payload model.AnswerPayload) (model.AnswerPayload, error) {
	ls, err := s.lookup(candidateID)
	if err != nil {
		return model.AnswerPayload{}, err
	}
	return ls.engine.Answer(questionID, payload)
}

// Navigate moves the candidate's cursor and returns the new status.
func (s *SessionService) Navigate(candidateID int, dir session.Direction) (session.Status, error) {
	ls, err := s.lookup(candidateID)
	if err != nil {
		return session.Status{}, err
	}
	if _, err := ls.engine.Navigate(dir); err != nil {
		return session.Status{}, err
	}
	return ls.engine.Status(), nil
}

// SubmitSession performs the candidate's explicit submission.
func (s *SessionService) SubmitSession(ctx context.Context, candidateID int) error {
	ls, err := s.lookup(candidateID)
	if err != nil {
		return err
	}
	return ls.engine.Submit(ctx)
}

// Leave abandons the session without submitting. The registry entry is
// removed first so the engine's end hook only publishes the monitor event
// instead of reporting a submission to local subscribers.
func (s *SessionService) Leave(candidateID int) error {
	s.mu.Lock()
	ls, ok := s.live[candidateID]
	if ok {
		delete(s.live, candidateID)
	}
	s.mu.Unlock()
	if !ok {
		return ErrNoActiveSession
	}

	ls.broadcast(SessionEvent{Type: "aborted", ExamID: ls.examID})
	ls.closeSubs()
	ls.engine.Abort()
	return nil
}

// Subscribe attaches a live event channel to the candidate's session.
func (s *SessionService) Subscribe(candidateID int) (chan SessionEvent, error) {
	ls, err := s.lookup(candidateID)
	if err != nil {
		return nil, err
	}
	return ls.subscribe(), nil
}

// Unsubscribe detaches a previously subscribed channel.
func (s *SessionService) Unsubscribe(candidateID int, ch chan SessionEvent) {
	s.mu.Lock()
	ls, ok := s.live[candidateID]
	s.mu.Unlock()
	if ok {
		ls.unsubscribe(ch)
	}
}

// ActiveCount reports how many sessions are currently live. Used by the
// health endpoint and graceful shutdown.
func (s *SessionService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// DrainAll force-submits every live session. Called on graceful shutdown so
// in-flight attempts reach the queue instead of evaporating.
func (s *SessionService) DrainAll(ctx context.Context) {
	s.mu.Lock()
	engines := make([]*session.Engine, 0, len(s.live))
	for _, ls := range s.live {
		engines = append(engines, ls.engine)
	}
	s.mu.Unlock()

	for _, e := range engines {
		if err := e.Submit(ctx); err != nil && !errors.Is(err, session.ErrSessionNotActive) {
			s.log.Error().Err(err).Msg("Failed to drain session on shutdown")
		}
	}
}
