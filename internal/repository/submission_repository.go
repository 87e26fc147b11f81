package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hirewise/examroom-backend/internal/model"
)

var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionRepository handles persisted exam attempts.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// MarkInProgress records that a candidate entered an exam. Re-entering after
// a leave or a restart resets the attempt to the new start time; a completed
// row is never touched.
func (r *SubmissionRepository) MarkInProgress(ctx context.Context, examID uuid.UUID, candidateID int, startedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO submissions (exam_id, candidate_id, status, started_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (exam_id, candidate_id)
		 DO UPDATE SET status = EXCLUDED.status,
		               started_at = EXCLUDED.started_at
		 WHERE submissions.status <> $5`,
		examID, candidateID, model.SubmissionStatusInProgress, startedAt,
		model.SubmissionStatusCompleted,
	)
	return err
}

// SaveCompleted persists a finished attempt. (exam_id, candidate_id)
// identifies the attempt and a completed row is never overwritten, so
// replaying a queue item is safe. The returned bool reports whether a row
// was actually written; false means the attempt was already completed.
func (r *SubmissionRepository) SaveCompleted(ctx context.Context, sub *model.Submission) (bool, error) {
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO submissions (exam_id, candidate_id, status, started_at, submitted_at, answers)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (exam_id, candidate_id)
		 DO UPDATE SET status = EXCLUDED.status,
		               started_at = EXCLUDED.started_at,
		               submitted_at = EXCLUDED.submitted_at,
		               answers = EXCLUDED.answers
		 WHERE submissions.status <> $3`,
		sub.ExamID, sub.CandidateID, model.SubmissionStatusCompleted,
		sub.StartedAt, sub.SubmittedAt, answers,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetWithAnswers retrieves a completed submission including its answers.
func (r *SubmissionRepository) GetWithAnswers(ctx context.Context, examID uuid.UUID, candidateID int) (*model.Submission, error) {
	sub := &model.Submission{ExamID: examID, CandidateID: candidateID}
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT started_at, submitted_at, answers
		 FROM submissions
		 WHERE exam_id = $1 AND candidate_id = $2 AND status = $3`,
		examID, candidateID, model.SubmissionStatusCompleted,
	).Scan(&sub.StartedAt, &sub.SubmittedAt, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &sub.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	return sub, nil
}

// ListCompletedByExam retrieves all completed attempts for an exam, answers
// included, for the admin results view.
func (r *SubmissionRepository) ListCompletedByExam(ctx context.Context, examID uuid.UUID) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT candidate_id, started_at, submitted_at, answers
		 FROM submissions
		 WHERE exam_id = $1 AND status = $2
		 ORDER BY submitted_at`,
		examID, model.SubmissionStatusCompleted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		sub := model.Submission{ExamID: examID}
		var raw []byte
		if err := rows.Scan(&sub.CandidateID, &sub.StartedAt, &sub.SubmittedAt, &raw); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &sub.Answers); err != nil {
				return nil, fmt.Errorf("unmarshal answers: %w", err)
			}
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
