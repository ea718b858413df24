package agent

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/upanishadai/tutor-server/internal/domain"
	"github.com/upanishadai/tutor-server/internal/prompt"
	"github.com/upanishadai/tutor-server/internal/strategy"
)

type stubProvider struct {
	answer     string
	err        error
	lastPrompt string
}

func (s *stubProvider) Complete(ctx context.Context, p, system string) (string, error) {
	s.lastPrompt = p
	return s.answer, s.err
}

func (s *stubProvider) CompleteStream(ctx context.Context, p string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if s.err != nil {
			yield("", s.err)
			return
		}
		yield(s.answer, nil)
	}
}

func TestExplanationLevelBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		age  int
		want int
	}{
		{6, 1},
		{7, 1},
		{8, 2},
		{10, 2},
		{11, 2},
		{12, 3},
		{14, 3},
	}
	for _, tt := range tests {
		if got := ExplanationLevel(tt.age); got != tt.want {
			t.Errorf("Age %d: expected level %d, got %d", tt.age, tt.want, got)
		}
	}
}

func TestRegistryResolvesKnownSubjects(t *testing.T) {
	t.Parallel()

	r := NewRegistry(&stubProvider{answer: "ok"})

	math, err := r.ForSubject(domain.SubjectMathematics)
	if err != nil {
		t.Fatalf("ForSubject(mathematics) failed: %v", err)
	}
	if math.Name() != "math_teacher" {
		t.Errorf("Expected math_teacher, got %q", math.Name())
	}

	english, err := r.ForSubject(domain.SubjectEnglish)
	if err != nil {
		t.Fatalf("ForSubject(english) failed: %v", err)
	}
	if english.Name() != "english_teacher" {
		t.Errorf("Expected english_teacher, got %q", english.Name())
	}
}

func TestRegistryUnknownSubject(t *testing.T) {
	t.Parallel()

	r := NewRegistry(&stubProvider{})
	_, err := r.ForSubject(domain.Subject("history"))
	if !errors.Is(err, domain.ErrUnsupportedSubject) {
		t.Errorf("Expected ErrUnsupportedSubject, got %v", err)
	}
}

func TestProduceUsesAssembledPrompt(t *testing.T) {
	t.Parallel()

	p := &stubProvider{answer: "here is how fractions work"}
	r := NewRegistry(p)
	math, _ := r.ForSubject(domain.SubjectMathematics)

	actx := Context{
		Strategy: strategy.Select(strategy.Signals{Confusion: 0.9}),
		Persona:  prompt.PersonaForStrategy(strategy.KindExamples),
		Profile:  domain.StudentProfile{Age: 9},
	}
	got, err := math.Produce(t.Context(), "how do fractions work?", actx)
	if err != nil {
		t.Fatalf("Produce failed: %v", err)
	}
	if got != "here is how fractions work" {
		t.Errorf("Unexpected response: %q", got)
	}
	if !strings.Contains(p.lastPrompt, "mathematics teacher") {
		t.Error("Prompt should carry the math instructions")
	}
	if !strings.Contains(p.lastPrompt, "how do fractions work?") {
		t.Error("Prompt should carry the student question")
	}
	if !strings.Contains(p.lastPrompt, "concrete examples") {
		t.Error("Prompt should carry the selected strategy block")
	}
}

func TestProduceWrapsProviderError(t *testing.T) {
	t.Parallel()

	backend := errors.New("backend down")
	r := NewRegistry(&stubProvider{err: backend})
	english, _ := r.ForSubject(domain.SubjectEnglish)

	_, err := english.Produce(t.Context(), "what is a verb?", Context{})
	if !errors.Is(err, backend) {
		t.Errorf("Expected wrapped backend error, got %v", err)
	}
}

func TestResourcesAreCopied(t *testing.T) {
	t.Parallel()

	r := NewRegistry(&stubProvider{})
	math, _ := r.ForSubject(domain.SubjectMathematics)

	res := math.Resources()
	if len(res) == 0 {
		t.Fatal("Expected supplementary resources")
	}
	res[0].Title = "mutated"
	if math.Resources()[0].Title == "mutated" {
		t.Error("Resources should return a copy, not the backing slice")
	}
}
