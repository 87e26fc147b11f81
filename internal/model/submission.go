package model

import (
	"time"

	"github.com/google/uuid"
)

// Submission is the immutable snapshot handed to the submission sink when a
// session terminates. (ExamID, CandidateID, StartedAt) is the idempotency
// key: the same attempt submitted twice must not double-count.
type Submission struct {
	ExamID      uuid.UUID                   `json:"exam_id"`
	CandidateID int                         `json:"candidate_id"`
	StartedAt   time.Time                   `json:"started_at"`
	SubmittedAt time.Time                   `json:"submitted_at"`
	Answers     map[uuid.UUID]AnswerPayload `json:"answers"`
}
