package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hirewise/examroom-backend/internal/config"
	"github.com/hirewise/examroom-backend/internal/model"
	"github.com/hirewise/examroom-backend/internal/repository"
)

// SubmissionWorker consumes persist_submissions_queue and writes completed
// attempts to PostgreSQL. The upsert is idempotent on (exam, candidate), so
// a submission queued twice persists once.
type SubmissionWorker struct {
	subRepo *repository.SubmissionRepository
	rdb     *redis.Client
	log     zerolog.Logger
}

// NewSubmissionWorker creates a new SubmissionWorker.
func NewSubmissionWorker(subRepo *repository.SubmissionRepository, rdb *redis.Client, log zerolog.Logger) *SubmissionWorker {
	return &SubmissionWorker{
		subRepo: subRepo,
		rdb:     rdb,
		log:     log.With().Str("component", "submission_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *SubmissionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SubmissionWorker) processNext(ctx context.Context) {
	queue := config.WorkerKey.PersistSubmissionsQueue()

	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var sub model.Submission
	if err := json.Unmarshal([]byte(result[1]), &sub); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error, dropping item")
		return
	}

	written, err := w.subRepo.SaveCompleted(ctx, &sub)
	if err != nil {
		w.log.Error().Err(err).
			Str("exam_id", sub.ExamID.String()).
			Int("candidate_id", sub.CandidateID).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, queue, result[1])
		time.Sleep(5 * time.Second)
		return
	}
	if !written {
		// Redelivered item for an attempt that already completed.
		w.log.Info().
			Str("exam_id", sub.ExamID.String()).
			Int("candidate_id", sub.CandidateID).
			Msg("Submission already persisted, skipping")
		return
	}

	w.log.Info().
		Str("exam_id", sub.ExamID.String()).
		Int("candidate_id", sub.CandidateID).
		Int("answers", len(sub.Answers)).
		Msg("Submission persisted")
}

// drain processes all remaining items in the queue before shutdown.
func (w *SubmissionWorker) drain(ctx context.Context) {
	queue := config.WorkerKey.PersistSubmissionsQueue()

	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, queue).Result()
		if err != nil {
			break
		}

		var sub model.Submission
		if err := json.Unmarshal([]byte(result), &sub); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if _, err := w.subRepo.SaveCompleted(ctx, &sub); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, queue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining submissions")
	}
}
