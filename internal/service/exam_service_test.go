package service

import (
	"errors"
	"testing"

	"github.com/hirewise/examroom-backend/internal/model"
)

func TestBuildQuestionSpecMCQ(t *testing.T) {
	spec, err := buildQuestionSpec(model.CreateQuestionRequest{
		Kind:           model.QuestionKindMCQ,
		Prompt:         "pick one",
		Options:        []string{"a", "b", "c"},
		CorrectOptions: []int{2},
	}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Kind != model.QuestionKindMCQ || len(spec.Options) != 3 {
		t.Fatalf("unexpected spec: %+v", spec)
	}
	if spec.OrderNum != 0 {
		t.Fatalf("order = %d, want 0", spec.OrderNum)
	}
}

func TestBuildQuestionSpecMCQRejectsTooFewOptions(t *testing.T) {
	_, err := buildQuestionSpec(model.CreateQuestionRequest{
		Kind:    model.QuestionKindMCQ,
		Prompt:  "pick one",
		Options: []string{"only"},
	}, 0)
	if !errors.Is(err, ErrBadQuestion) {
		t.Fatalf("err = %v, want ErrBadQuestion", err)
	}
}

func TestBuildQuestionSpecMCQRejectsOutOfRangeCorrect(t *testing.T) {
	_, err := buildQuestionSpec(model.CreateQuestionRequest{
		Kind:           model.QuestionKindMCQ,
		Prompt:         "pick one",
		Options:        []string{"a", "b"},
		CorrectOptions: []int{5},
	}, 1)
	if !errors.Is(err, ErrBadQuestion) {
		t.Fatalf("err = %v, want ErrBadQuestion", err)
	}
}

func TestBuildQuestionSpecMCQSingleSelectRejectsMultipleCorrect(t *testing.T) {
	_, err := buildQuestionSpec(model.CreateQuestionRequest{
		Kind:           model.QuestionKindMCQ,
		Prompt:         "pick one",
		Options:        []string{"a", "b", "c"},
		CorrectOptions: []int{0, 1},
	}, 0)
	if !errors.Is(err, ErrBadQuestion) {
		t.Fatalf("err = %v, want ErrBadQuestion", err)
	}
}

func TestBuildQuestionSpecCoding(t *testing.T) {
	spec, err := buildQuestionSpec(model.CreateQuestionRequest{
		Kind:     model.QuestionKindCoding,
		Prompt:   "reverse a string",
		Language: "go",
		Template: "func reverse(s string) string {\n}",
	}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Language != "go" || spec.Template == "" {
		t.Fatalf("unexpected spec: %+v", spec)
	}
	// MCQ fields must stay zero for non-MCQ kinds.
	if spec.Options != nil || spec.CorrectOptions != nil {
		t.Fatalf("coding spec carries MCQ fields: %+v", spec)
	}
}

func TestBuildQuestionSpecEssay(t *testing.T) {
	spec, err := buildQuestionSpec(model.CreateQuestionRequest{
		Kind:     model.QuestionKindEssay,
		Prompt:   "describe your approach",
		MinWords: 100,
	}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.MinWords != 100 {
		t.Fatalf("min_words = %d, want 100", spec.MinWords)
	}
}

func TestBuildQuestionSpecUnknownKind(t *testing.T) {
	_, err := buildQuestionSpec(model.CreateQuestionRequest{
		Kind:   model.QuestionKind("TRIVIA"),
		Prompt: "?",
	}, 0)
	if !errors.Is(err, ErrBadQuestion) {
		t.Fatalf("err = %v, want ErrBadQuestion", err)
	}
}
