package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionKind enumerates the supported question variants.
type QuestionKind string

const (
	QuestionKindMCQ    QuestionKind = "MCQ"
	QuestionKindCoding QuestionKind = "CODING"
	QuestionKindEssay  QuestionKind = "ESSAY"
)

// ExamDefinition is an exam as served to the session engine. It is immutable
// once fetched: the engine never writes back to it.
//
// QuestionType reflects that exams are homogeneous in the authoring UI, but
// nothing downstream relies on it; each QuestionSpec carries its own Kind.
type ExamDefinition struct {
	ID              uuid.UUID      `json:"id"`
	Title           string         `json:"title"`
	QuestionType    QuestionKind   `json:"question_type"`
	DurationSeconds int            `json:"duration_seconds"`
	StartAt         time.Time      `json:"start_at"`
	EndAt           time.Time      `json:"end_at"`
	Questions       []QuestionSpec `json:"questions"`
	CreatedAt       time.Time      `json:"created_at"`
}

// QuestionSpec is a single question. Kind selects which of the optional
// fields are meaningful; the rest stay at their zero values.
type QuestionSpec struct {
	ID       uuid.UUID    `json:"id"`
	Kind     QuestionKind `json:"kind"`
	Prompt   string       `json:"prompt"`
	OrderNum int          `json:"order_num"`

	// MCQ
	Options               []string `json:"options,omitempty"`
	AllowsMultipleCorrect bool     `json:"allows_multiple_correct,omitempty"`
	// CorrectOptions is grading data; the portal strips it by building
	// QuestionForCandidate views before anything reaches an exam taker.
	CorrectOptions []int `json:"correct_options,omitempty"`

	// Coding
	Language     string `json:"language,omitempty"`
	Template     string `json:"template,omitempty"`
	SampleInput  string `json:"sample_input,omitempty"`
	SampleOutput string `json:"sample_output,omitempty"`

	// Essay
	MinWords int `json:"min_words,omitempty"`
}

// QuestionForCandidate is a QuestionSpec with grading data removed, safe to
// send to an exam taker.
type QuestionForCandidate struct {
	ID                    uuid.UUID    `json:"id"`
	Kind                  QuestionKind `json:"kind"`
	Prompt                string       `json:"prompt"`
	OrderNum              int          `json:"order_num"`
	Options               []string     `json:"options,omitempty"`
	AllowsMultipleCorrect bool         `json:"allows_multiple_correct,omitempty"`
	Language              string       `json:"language,omitempty"`
	Template              string       `json:"template,omitempty"`
	SampleInput           string       `json:"sample_input,omitempty"`
	SampleOutput          string       `json:"sample_output,omitempty"`
	MinWords              int          `json:"min_words,omitempty"`
}

// ForCandidate strips grading fields from a QuestionSpec.
func (q QuestionSpec) ForCandidate() QuestionForCandidate {
	return QuestionForCandidate{
		ID:                    q.ID,
		Kind:                  q.Kind,
		Prompt:                q.Prompt,
		OrderNum:              q.OrderNum,
		Options:               q.Options,
		AllowsMultipleCorrect: q.AllowsMultipleCorrect,
		Language:              q.Language,
		Template:              q.Template,
		SampleInput:           q.SampleInput,
		SampleOutput:          q.SampleOutput,
		MinWords:              q.MinWords,
	}
}

// CreateExamRequest is the admin payload for creating an exam with its
// question list in one request.
type CreateExamRequest struct {
	Title           string                  `json:"title" binding:"required,min=3,max=255"`
	QuestionType    QuestionKind            `json:"question_type" binding:"required,oneof=MCQ CODING ESSAY"`
	DurationSeconds int                     `json:"duration_seconds" binding:"required,min=60,max=28800"`
	StartAt         time.Time               `json:"start_at" binding:"required"`
	EndAt           time.Time               `json:"end_at" binding:"required,gtfield=StartAt"`
	Questions       []CreateQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

// CreateQuestionRequest is one question inside CreateExamRequest.
type CreateQuestionRequest struct {
	Kind                  QuestionKind `json:"kind" binding:"required,oneof=MCQ CODING ESSAY"`
	Prompt                string       `json:"prompt" binding:"required,min=1,max=4000"`
	Options               []string     `json:"options" binding:"omitempty,max=10,dive,min=1,max=500"`
	AllowsMultipleCorrect bool         `json:"allows_multiple_correct"`
	CorrectOptions        []int        `json:"correct_options" binding:"omitempty,dive,min=0"`
	Language              string       `json:"language" binding:"omitempty,max=40"`
	Template              string       `json:"template" binding:"omitempty,max=20000"`
	SampleInput           string       `json:"sample_input" binding:"omitempty,max=10000"`
	SampleOutput          string       `json:"sample_output" binding:"omitempty,max=10000"`
	MinWords              int          `json:"min_words" binding:"omitempty,min=0,max=100000"`
}
