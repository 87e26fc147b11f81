package session

import "testing"

func TestSequencerSaturatesAtStart(t *testing.T) {
	s := NewSequencer(3)

	for i := 0; i < 3; i++ {
		s.Previous()
	}
	if got := s.Index(); got != 0 {
		t.Errorf("index = %d after three Previous calls from 0, want 0", got)
	}
	if !s.IsFirst() {
		t.Error("IsFirst() = false at index 0")
	}
}

func TestSequencerSaturatesAtEnd(t *testing.T) {
	s := NewSequencer(3)

	for i := 0; i < 4; i++ {
		s.Next()
	}
	if got := s.Index(); got != 2 {
		t.Errorf("index = %d after four Next calls from 0, want 2", got)
	}
	if !s.IsLast() {
		t.Error("IsLast() = false at the last question")
	}
}

func TestSequencerWalk(t *testing.T) {
	s := NewSequencer(4)

	if got := s.Next(); got != 1 {
		t.Errorf("Next() = %d, want 1", got)
	}
	if got := s.Next(); got != 2 {
		t.Errorf("Next() = %d, want 2", got)
	}
	if got := s.Previous(); got != 1 {
		t.Errorf("Previous() = %d, want 1", got)
	}
	if s.IsFirst() || s.IsLast() {
		t.Error("middle of the sequence reported as a boundary")
	}
}

func TestSingleQuestionIsBothBoundaries(t *testing.T) {
	s := NewSequencer(1)
	if !s.IsFirst() || !s.IsLast() {
		t.Error("a one-question exam is both first and last")
	}
	if got := s.Next(); got != 0 {
		t.Errorf("Next() = %d, want 0", got)
	}
}
