package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hirewise/examroom-backend/internal/config"
	"github.com/hirewise/examroom-backend/internal/model"
	"github.com/hirewise/examroom-backend/internal/repository"
	"github.com/hirewise/examroom-backend/internal/response"
)

// Domain errors.
var (
	ErrNoQuestions    = errors.New("exam has no questions")
	ErrBadQuestion    = errors.New("question fields do not match its kind")
	ErrWindowInverted = errors.New("exam window ends before it starts")
)

// ExamService handles exam authoring, lookup, and Redis payload caching.
type ExamService struct {
	examRepo *repository.ExamRepository
	eligRepo *repository.EligibilityRepository
	subRepo  *repository.SubmissionRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	eligRepo *repository.EligibilityRepository,
	subRepo *repository.SubmissionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo: examRepo,
		eligRepo: eligRepo,
		subRepo:  subRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// Create validates and inserts a new exam with its questions, then warms the
// payload cache so the first candidate hit never touches PostgreSQL.
func (s *ExamService) Create(ctx context.Context, req *model.CreateExamRequest) (*model.ExamDefinition, error) {
	if !req.EndAt.After(req.StartAt) {
		return nil, ErrWindowInverted
	}
	if len(req.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	exam := &model.ExamDefinition{
		Title:           req.Title,
		QuestionType:    req.QuestionType,
		DurationSeconds: req.DurationSeconds,
		StartAt:         req.StartAt,
		EndAt:           req.EndAt,
		Questions:       make([]model.QuestionSpec, len(req.Questions)),
	}

	for i, q := range req.Questions {
		spec, err := buildQuestionSpec(q, i)
		if err != nil {
			return nil, err
		}
		exam.Questions[i] = spec
	}

	if err := s.examRepo.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	if err := s.WarmExamCache(ctx, exam); err != nil {
		// The DB row exists; the cache will heal lazily on first fetch.
		s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Failed to warm cache after create")
	}

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Str("title", exam.Title).
		Int("questions", len(exam.Questions)).
		Msg("Exam created")
	return exam, nil
}

// buildQuestionSpec validates kind-specific fields and assigns order.
func buildQuestionSpec(q model.CreateQuestionRequest, order int) (model.QuestionSpec, error) {
	spec := model.QuestionSpec{
		Kind:     q.Kind,
		Prompt:   q.Prompt,
		OrderNum: order,
	}

	switch q.Kind {
	case model.QuestionKindMCQ:
		if len(q.Options) < 2 {
			return spec, fmt.Errorf("%w: MCQ question %d needs at least 2 options", ErrBadQuestion, order)
		}
		for _, idx := range q.CorrectOptions {
			if idx < 0 || idx >= len(q.Options) {
				return spec, fmt.Errorf("%w: MCQ question %d correct option %d out of range", ErrBadQuestion, order, idx)
			}
		}
		if !q.AllowsMultipleCorrect && len(q.CorrectOptions) > 1 {
			return spec, fmt.Errorf("%w: MCQ question %d is single-select but has %d correct options", ErrBadQuestion, order, len(q.CorrectOptions))
		}
		spec.Options = q.Options
		spec.AllowsMultipleCorrect = q.AllowsMultipleCorrect
		spec.CorrectOptions = q.CorrectOptions
	case model.QuestionKindCoding:
		spec.Language = q.Language
		spec.Template = q.Template
		spec.SampleInput = q.SampleInput
		spec.SampleOutput = q.SampleOutput
	case model.QuestionKindEssay:
		spec.MinWords = q.MinWords
	default:
		return spec, fmt.Errorf("%w: question %d has unknown kind %q", ErrBadQuestion, order, q.Kind)
	}
	return spec, nil
}

// GetByID retrieves an exam with its questions from PostgreSQL.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamDefinition, error) {
	return s.examRepo.GetByID(ctx, id)
}

// GetDefinition retrieves an exam cache-first. On a miss it loads from
// PostgreSQL and re-warms the cache.
func (s *ExamService) GetDefinition(ctx context.Context, id uuid.UUID) (*model.ExamDefinition, error) {
	key := config.CacheKey.ExamPayloadKey(id.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var exam model.ExamDefinition
		if err := json.Unmarshal(data, &exam); err == nil {
			return &exam, nil
		}
		s.log.Warn().Str("exam_id", id.String()).Msg("Corrupt cached payload, falling back to database")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Cache read failed, falling back to database")
	}

	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.WarmExamCache(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to re-warm cache")
	}
	return exam, nil
}

// WarmExamCache writes an exam's full definition into Redis. The payload
// keeps grading data; candidate-facing views are stripped at the portal edge.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.ExamDefinition) error {
	if len(exam.Questions) == 0 {
		return ErrNoQuestions
	}

	payload, err := json.Marshal(exam)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	// Expire with the window: once end_at passes the entry is dead weight.
	ttl := time.Until(exam.EndAt) + 24*time.Hour
	if ttl < time.Hour {
		ttl = time.Hour
	}

	key := config.CacheKey.ExamPayloadKey(exam.ID.String())
	if err := s.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(exam.Questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads every exam whose window has not closed into Redis on
// application startup.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListOpenOrUpcoming(ctx)
	if err != nil {
		return fmt.Errorf("list open exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No open exams to prewarm")
		return nil
	}

	warmed := 0
	for i := range exams {
		full, err := s.examRepo.GetByID(ctx, exams[i].ID)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", exams[i].ID.String()).Msg("Failed to load exam, skipping")
			continue
		}
		if err := s.WarmExamCache(ctx, full); err != nil {
			s.log.Warn().Err(err).Str("exam_id", full.ID.String()).Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

// List retrieves exams without questions, paginated.
func (s *ExamService) List(ctx context.Context, page, perPage int) ([]model.ExamDefinition, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	exams, total, err := s.examRepo.ListPaginated(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if exams == nil {
		exams = []model.ExamDefinition{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return exams, pagination, nil
}

// Delete removes an exam and drops its cached payload.
func (s *ExamService) Delete(ctx context.Context, examID uuid.UUID) error {
	if _, err := s.examRepo.GetByID(ctx, examID); err != nil {
		return err
	}
	if err := s.examRepo.Delete(ctx, examID); err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	if err := s.rdb.Del(ctx, config.CacheKey.ExamPayloadKey(examID.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to drop cached payload")
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam deleted")
	return nil
}

// GrantEligibility marks a candidate eligible (or not) for an exam.
func (s *ExamService) GrantEligibility(ctx context.Context, examID uuid.UUID, candidateID int, isEligible bool) error {
	if _, err := s.examRepo.GetByID(ctx, examID); err != nil {
		return err
	}
	if err := s.eligRepo.Upsert(ctx, examID, candidateID, isEligible); err != nil {
		return fmt.Errorf("upsert eligibility: %w", err)
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("candidate_id", candidateID).
		Bool("is_eligible", isEligible).
		Msg("Eligibility updated")
	return nil
}

// Roster retrieves all eligibility records with submission state for an exam.
func (s *ExamService) Roster(ctx context.Context, examID uuid.UUID) ([]model.EligibilityRecord, error) {
	records, err := s.eligRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.EligibilityRecord{}
	}
	return records, nil
}

// Results retrieves all completed submissions for an exam.
func (s *ExamService) Results(ctx context.Context, examID uuid.UUID) ([]model.Submission, error) {
	subs, err := s.subRepo.ListCompletedByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	return subs, nil
}
