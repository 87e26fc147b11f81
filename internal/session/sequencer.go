package session

// Sequencer is a cursor over an exam's ordered question list. It holds no
// answer data. Navigation saturates at the boundaries instead of failing:
// repeated Next calls on the last question are a no-op.
type Sequencer struct {
	index  int
	length int
}

// NewSequencer starts a cursor at index 0 over length questions.
func NewSequencer(length int) *Sequencer {
	if length < 1 {
		length = 1
	}
	return &Sequencer{length: length}
}

// Index returns the current position, always within [0, length-1].
func (s *Sequencer) Index() int { return s.index }

// Len returns the number of questions.
func (s *Sequencer) Len() int { return s.length }

// Next advances the cursor, clamped to the last question.
func (s *Sequencer) Next() int {
	if s.index < s.length-1 {
		s.index++
	}
	return s.index
}

// Previous moves the cursor back, clamped to the first question.
func (s *Sequencer) Previous() int {
	if s.index > 0 {
		s.index--
	}
	return s.index
}

// IsFirst reports whether the cursor is on the first question.
func (s *Sequencer) IsFirst() bool { return s.index == 0 }

// IsLast reports whether the cursor is on the last question.
func (s *Sequencer) IsLast() bool { return s.index == s.length-1 }
