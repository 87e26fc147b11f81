package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus enumerates a candidate's progress on an exam.
type SubmissionStatus string

const (
	SubmissionStatusNotStarted SubmissionStatus = "NOT_STARTED"
	SubmissionStatusInProgress SubmissionStatus = "IN_PROGRESS"
	SubmissionStatusCompleted  SubmissionStatus = "COMPLETED"
)

// SubmissionRecord is the stored outcome of a candidate's attempt.
type SubmissionRecord struct {
	ExamID      uuid.UUID        `json:"exam_id"`
	CandidateID int              `json:"candidate_id"`
	Status      SubmissionStatus `json:"status"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
}

// EligibilityRecord relates a candidate to an exam. IsEligible is granted by
// an administrator; Submission is the candidate's prior attempt, if any.
type EligibilityRecord struct {
	ExamID      uuid.UUID         `json:"exam_id"`
	CandidateID int               `json:"candidate_id"`
	IsEligible  bool              `json:"is_eligible"`
	Submission  *SubmissionRecord `json:"submission,omitempty"`
}

// GrantEligibilityRequest is the admin payload for marking a candidate
// eligible (or not) for an exam.
type GrantEligibilityRequest struct {
	CandidateID int   `json:"candidate_id" binding:"required,min=1"`
	IsEligible  *bool `json:"is_eligible" binding:"required"`
}
