package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hirewise/examroom-backend/internal/model"
)

// EligibilityRepository handles the exam↔candidate eligibility relation.
type EligibilityRepository struct {
	pool *pgxpool.Pool
}

// NewEligibilityRepository creates a new EligibilityRepository.
func NewEligibilityRepository(pool *pgxpool.Pool) *EligibilityRepository {
	return &EligibilityRepository{pool: pool}
}

// Get retrieves a candidate's eligibility for an exam, joined with their
// submission record if one exists. An absent row means not eligible, not an
// error.
func (r *EligibilityRepository) Get(ctx context.Context, examID uuid.UUID, candidateID int) (*model.EligibilityRecord, error) {
	rec := &model.EligibilityRecord{ExamID: examID, CandidateID: candidateID}

	var status *model.SubmissionStatus
	var startedAt, submittedAt *time.Time

	err := r.pool.QueryRow(ctx,
		`SELECT e.is_eligible,
		        s.status, s.started_at, s.submitted_at
		 FROM exam_eligibility e
		 LEFT JOIN submissions s ON s.exam_id = e.exam_id AND s.candidate_id = e.candidate_id
		 WHERE e.exam_id = $1 AND e.candidate_id = $2`,
		examID, candidateID,
	).Scan(&rec.IsEligible, &status, &startedAt, &submittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No grant at all: eligible=false, no submission.
			return rec, nil
		}
		return nil, err
	}

	if status != nil {
		rec.Submission = &model.SubmissionRecord{
			ExamID:      examID,
			CandidateID: candidateID,
			Status:      *status,
			StartedAt:   startedAt,
			SubmittedAt: submittedAt,
		}
	}
	return rec, nil
}

// Upsert grants or revokes eligibility for a candidate on an exam.
func (r *EligibilityRepository) Upsert(ctx context.Context, examID uuid.UUID, candidateID int, isEligible bool) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_eligibility (exam_id, candidate_id, is_eligible)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (exam_id, candidate_id)
		 DO UPDATE SET is_eligible = EXCLUDED.is_eligible, updated_at = NOW()`,
		examID, candidateID, isEligible,
	)
	return err
}

// ListByExam retrieves all eligibility records for an exam with submission
// state, for the admin roster view.
func (r *EligibilityRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.EligibilityRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.candidate_id, e.is_eligible,
		        s.status, s.started_at, s.submitted_at
		 FROM exam_eligibility e
		 LEFT JOIN submissions s ON s.exam_id = e.exam_id AND s.candidate_id = e.candidate_id
		 WHERE e.exam_id = $1
		 ORDER BY e.candidate_id`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.EligibilityRecord
	for rows.Next() {
		rec := model.EligibilityRecord{ExamID: examID}
		var status *model.SubmissionStatus
		var startedAt, submittedAt *time.Time
		if err := rows.Scan(&rec.CandidateID, &rec.IsEligible, &status, &startedAt, &submittedAt); err != nil {
			return nil, err
		}
		if status != nil {
			rec.Submission = &model.SubmissionRecord{
				ExamID:      examID,
				CandidateID: rec.CandidateID,
				Status:      *status,
				StartedAt:   startedAt,
				SubmittedAt: submittedAt,
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
