package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hirewise/examroom-backend/internal/model"
)

var ErrExamNotFound = errors.New("exam not found")

// ExamRepository handles exam and question data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam with its questions ordered by position.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamDefinition, error) {
	e := &model.ExamDefinition{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, question_type, duration_seconds, start_at, end_at, created_at
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.QuestionType, &e.DurationSeconds, &e.StartAt, &e.EndAt, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	questions, err := r.questionsByExam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	e.Questions = questions
	return e, nil
}

func (r *ExamRepository) questionsByExam(ctx context.Context, examID uuid.UUID) ([]model.QuestionSpec, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, kind, prompt, order_num,
		        options, allows_multiple_correct, correct_options,
		        language, template, sample_input, sample_output, min_words
		 FROM questions WHERE exam_id = $1
		 ORDER BY order_num`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.QuestionSpec
	for rows.Next() {
		var q model.QuestionSpec
		if err := rows.Scan(&q.ID, &q.Kind, &q.Prompt, &q.OrderNum,
			&q.Options, &q.AllowsMultipleCorrect, &q.CorrectOptions,
			&q.Language, &q.Template, &q.SampleInput, &q.SampleOutput, &q.MinWords); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListPaginated retrieves exams without their questions, newest first.
func (r *ExamRepository) ListPaginated(ctx context.Context, limit, offset int) ([]model.ExamDefinition, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exams`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, title, question_type, duration_seconds, start_at, end_at, created_at
		 FROM exams ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.ExamDefinition
	for rows.Next() {
		var e model.ExamDefinition
		if err := rows.Scan(&e.ID, &e.Title, &e.QuestionType, &e.DurationSeconds,
			&e.StartAt, &e.EndAt, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

// ListOpenOrUpcoming returns exams whose window has not yet closed.
// Used for cache prewarming on application startup.
func (r *ExamRepository) ListOpenOrUpcoming(ctx context.Context) ([]model.ExamDefinition, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, question_type, duration_seconds, start_at, end_at, created_at
		 FROM exams WHERE end_at > NOW() ORDER BY start_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.ExamDefinition
	for rows.Next() {
		var e model.ExamDefinition
		if err := rows.Scan(&e.ID, &e.Title, &e.QuestionType, &e.DurationSeconds,
			&e.StartAt, &e.EndAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// Create inserts an exam and all of its questions in one transaction.
func (r *ExamRepository) Create(ctx context.Context, e *model.ExamDefinition) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO exams (title, question_type, duration_seconds, start_at, end_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.Title, e.QuestionType, e.DurationSeconds, e.StartAt, e.EndAt,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}

	for i := range e.Questions {
		q := &e.Questions[i]
		err = tx.QueryRow(ctx,
			`INSERT INTO questions
			   (exam_id, kind, prompt, order_num,
			    options, allows_multiple_correct, correct_options,
			    language, template, sample_input, sample_output, min_words)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 RETURNING id`,
			e.ID, q.Kind, q.Prompt, q.OrderNum,
			q.Options, q.AllowsMultipleCorrect, q.CorrectOptions,
			q.Language, q.Template, q.SampleInput, q.SampleOutput, q.MinWords,
		).Scan(&q.ID)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}

// Delete removes an exam; questions cascade at the schema level.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	return err
}
