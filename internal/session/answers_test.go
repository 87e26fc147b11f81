package session

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/hirewise/examroom-backend/internal/model"
)

func mcqSpec(multiple bool, options ...string) model.QuestionSpec {
	return model.QuestionSpec{
		ID:                    uuid.New(),
		Kind:                  model.QuestionKindMCQ,
		Options:               options,
		AllowsMultipleCorrect: multiple,
	}
}

func TestAnswerStoreRoundTrip(t *testing.T) {
	store := NewAnswerStore()
	spec := model.QuestionSpec{ID: uuid.New(), Kind: model.QuestionKindCoding}

	first := model.AnswerPayload{Code: "def factorial(n):\n    return 1"}
	store.Apply(spec, first)

	got, ok := store.Get(spec.ID)
	if !ok {
		t.Fatal("Get returned absent after Apply")
	}
	if got.Code != first.Code {
		t.Errorf("got code %q, want %q", got.Code, first.Code)
	}

	// A second set fully replaces the first.
	second := model.AnswerPayload{Code: "def factorial(n):\n    return n * factorial(n-1)"}
	store.Apply(spec, second)

	snap := store.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot has %d entries, want 1", len(snap))
	}
	if snap[spec.ID].Code != second.Code {
		t.Errorf("snapshot shows %q, want the replacement %q", snap[spec.ID].Code, second.Code)
	}
}

func TestSingleSelectReplacesSelection(t *testing.T) {
	store := NewAnswerStore()
	spec := mcqSpec(false, "London", "Berlin", "Paris", "Madrid")

	store.Apply(spec, model.AnswerPayload{SelectedOptions: []int{1}})
	store.Apply(spec, model.AnswerPayload{SelectedOptions: []int{2}})

	got, _ := store.Get(spec.ID)
	if !reflect.DeepEqual(got.SelectedOptions, []int{2}) {
		t.Errorf("got %v, want [2]: single-select must hold exactly one index", got.SelectedOptions)
	}
}

func TestMultiSelectTogglesSelection(t *testing.T) {
	store := NewAnswerStore()
	spec := mcqSpec(true, "A", "B", "C", "D")

	store.Apply(spec, model.AnswerPayload{SelectedOptions: []int{0}})
	store.Apply(spec, model.AnswerPayload{SelectedOptions: []int{2}})
	got, _ := store.Get(spec.ID)
	if !reflect.DeepEqual(got.SelectedOptions, []int{0, 2}) {
		t.Fatalf("got %v, want [0 2]", got.SelectedOptions)
	}

	// Selecting an already-selected index deselects it.
	store.Apply(spec, model.AnswerPayload{SelectedOptions: []int{0}})
	got, _ = store.Get(spec.ID)
	if !reflect.DeepEqual(got.SelectedOptions, []int{2}) {
		t.Fatalf("after toggle: got %v, want [2]", got.SelectedOptions)
	}
}

func TestMCQIgnoresOutOfRangeIndices(t *testing.T) {
	store := NewAnswerStore()
	spec := mcqSpec(true, "A", "B")

	store.Apply(spec, model.AnswerPayload{SelectedOptions: []int{-1, 5, 1}})
	got, _ := store.Get(spec.ID)
	if !reflect.DeepEqual(got.SelectedOptions, []int{1}) {
		t.Errorf("got %v, want [1]", got.SelectedOptions)
	}
}

func TestEssayDerivesWordCount(t *testing.T) {
	store := NewAnswerStore()
	spec := model.QuestionSpec{ID: uuid.New(), Kind: model.QuestionKindEssay, MinWords: 500}

	got := store.Apply(spec, model.AnswerPayload{EssayText: "AI reshapes   modern\nsociety profoundly"})
	if got.WordCount != 5 {
		t.Errorf("word count = %d, want 5", got.WordCount)
	}

	got = store.Apply(spec, model.AnswerPayload{EssayText: ""})
	if got.WordCount != 0 {
		t.Errorf("word count = %d for empty text, want 0", got.WordCount)
	}
}

func TestIncrementalUpdatesKeepLatestValue(t *testing.T) {
	store := NewAnswerStore()
	spec := model.QuestionSpec{ID: uuid.New(), Kind: model.QuestionKindEssay}

	// Keystroke-level updates: each one calls Apply again.
	text := ""
	for _, word := range []string{"The", "quick", "brown", "fox"} {
		if text != "" {
			text += " "
		}
		text += word
		store.Apply(spec, model.AnswerPayload{EssayText: text})
	}

	got, _ := store.Get(spec.ID)
	if got.EssayText != "The quick brown fox" {
		t.Errorf("got %q, want the latest text", got.EssayText)
	}
	if got.WordCount != 4 {
		t.Errorf("word count = %d, want 4", got.WordCount)
	}
}

func TestSnapshotIsDecoupledFromStore(t *testing.T) {
	store := NewAnswerStore()
	spec := mcqSpec(true, "A", "B", "C")
	store.Apply(spec, model.AnswerPayload{SelectedOptions: []int{0, 1}})

	snap := store.Snapshot()

	// Mutations after the snapshot must not show through.
	store.Apply(spec, model.AnswerPayload{SelectedOptions: []int{2}})
	if !reflect.DeepEqual(snap[spec.ID].SelectedOptions, []int{0, 1}) {
		t.Errorf("snapshot changed after store mutation: %v", snap[spec.ID].SelectedOptions)
	}

	// Nor must mutating the snapshot's slice corrupt the store.
	snap[spec.ID].SelectedOptions[0] = 99
	got, _ := store.Get(spec.ID)
	for _, idx := range got.SelectedOptions {
		if idx == 99 {
			t.Error("mutating the snapshot leaked into the store")
		}
	}
}
