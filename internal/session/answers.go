package session

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/hirewise/examroom-backend/internal/model"
)

// AnswerStore is the in-memory mapping from question id to the latest answer
// payload for one session. It is the single source of truth for what gets
// submitted; there is no undo history, only the latest value per question.
type AnswerStore struct {
	answers map[uuid.UUID]model.AnswerPayload
}

// NewAnswerStore returns an empty store.
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{answers: make(map[uuid.UUID]model.AnswerPayload)}
}

// Set overwrites any prior payload for the question.
func (s *AnswerStore) Set(questionID uuid.UUID, payload model.AnswerPayload) {
	s.answers[questionID] = payload
}

// Get returns the current payload for the question, if any.
func (s *AnswerStore) Get(questionID uuid.UUID) (model.AnswerPayload, bool) {
	p, ok := s.answers[questionID]
	return p, ok
}

// Len returns the number of answered questions.
func (s *AnswerStore) Len() int { return len(s.answers) }

// Apply normalizes the incoming payload against the question spec, stores
// the result, and returns it. Kind-specific behavior:
//
//   - MCQ, single-select: the incoming selection fully replaces the prior
//     one; the stored set holds at most one index.
//   - MCQ, multi-select: each incoming index toggles membership in the
//     stored set (no duplicates, stored sorted).
//   - CODING: source text replaces the prior value verbatim.
//   - ESSAY: text replaces the prior value; word count is derived here.
func (s *AnswerStore) Apply(spec model.QuestionSpec, in model.AnswerPayload) model.AnswerPayload {
	var out model.AnswerPayload
	out.Kind = spec.Kind

	switch spec.Kind {
	case model.QuestionKindMCQ:
		if spec.AllowsMultipleCorrect {
			current := map[int]bool{}
			if prev, ok := s.answers[spec.ID]; ok {
				for _, idx := range prev.SelectedOptions {
					current[idx] = true
				}
			}
			for _, idx := range in.SelectedOptions {
				if idx < 0 || idx >= len(spec.Options) {
					continue
				}
				if current[idx] {
					delete(current, idx)
				} else {
					current[idx] = true
				}
			}
			selected := make([]int, 0, len(current))
			for idx := range current {
				selected = append(selected, idx)
			}
			sort.Ints(selected)
			out.SelectedOptions = selected
		} else {
			// Exactly one selected index, or none.
			for _, idx := range in.SelectedOptions {
				if idx >= 0 && idx < len(spec.Options) {
					out.SelectedOptions = []int{idx}
					break
				}
			}
		}

	case model.QuestionKindCoding:
		out.Code = in.Code

	case model.QuestionKindEssay:
		out.EssayText = in.EssayText
		out.WordCount = countWords(in.EssayText)
	}

	s.answers[spec.ID] = out
	return out
}

// Snapshot returns an immutable deep copy of all current answers, taken at
// submission time and decoupled from further in-session mutation.
func (s *AnswerStore) Snapshot() map[uuid.UUID]model.AnswerPayload {
	snap := make(map[uuid.UUID]model.AnswerPayload, len(s.answers))
	for id, p := range s.answers {
		cp := p
		if p.SelectedOptions != nil {
			cp.SelectedOptions = append([]int(nil), p.SelectedOptions...)
		}
		snap[id] = cp
	}
	return snap
}

func countWords(text string) int {
	return len(strings.Fields(text))
}
