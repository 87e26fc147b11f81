package model

import "github.com/google/uuid"

// AnswerPayload is the tagged variant stored per question in a live session.
// Kind decides which field carries the answer:
//
//	MCQ    → SelectedOptions (indices into QuestionSpec.Options)
//	CODING → Code
//	ESSAY  → EssayText, with WordCount derived on write
type AnswerPayload struct {
	Kind            QuestionKind `json:"kind"`
	SelectedOptions []int        `json:"selected_options,omitempty"`
	Code            string       `json:"code,omitempty"`
	EssayText       string       `json:"essay_text,omitempty"`
	WordCount       int          `json:"word_count,omitempty"`
}

// AnswerRequest is the portal payload for capturing an answer.
type AnswerRequest struct {
	QuestionID uuid.UUID     `json:"question_id" binding:"required"`
	Payload    AnswerPayload `json:"payload" binding:"required"`
}

// NavigateRequest moves the session cursor one step.
type NavigateRequest struct {
	Direction string `json:"direction" binding:"required,oneof=next previous"`
}
