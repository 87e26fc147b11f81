package websocket

import (
	"github.com/hirewise/examroom-backend/internal/model"
	"github.com/hirewise/examroom-backend/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionNavigate Action = "navigate"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload carries every client action; unused fields stay empty.
type RequestPayload struct {
	Action     Action              `json:"action"`
	QuestionID string              `json:"question_id,omitempty"`
	Answer     model.AnswerPayload `json:"answer,omitempty"`
	Direction  string              `json:"direction,omitempty"` // next | previous
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState        Event = "state"
	EventTick         Event = "tick"
	EventSubmitted    Event = "submitted"
	EventSubmitFailed Event = "submit_failed"
	EventAborted      Event = "aborted"
	EventError        Event = "error"
	EventPong         Event = "pong"
)

// StateResponse carries the full session view after a state-changing action.
type StateResponse struct {
	Event  Event          `json:"event"`
	Status session.Status `json:"status"`
}

// TickResponse is pushed every countdown second.
type TickResponse struct {
	Event            Event  `json:"event"`
	RemainingSeconds int    `json:"remaining_seconds"`
	RemainingDisplay string `json:"remaining_display"`
}

// SubmittedResponse tells the client the session reached its terminal
// state: submitted, submit_failed, or aborted.
type SubmittedResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
