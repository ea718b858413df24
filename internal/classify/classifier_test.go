package classify

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/upanishadai/tutor-server/internal/domain"
)

// stubProvider returns a fixed answer or error for every completion.
type stubProvider struct {
	answer string
	err    error
}

func (s *stubProvider) Complete(ctx context.Context, prompt, system string) (string, error) {
	return s.answer, s.err
}

func (s *stubProvider) CompleteStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if s.err != nil {
			yield("", s.err)
			return
		}
		yield(s.answer, nil)
	}
}

func TestClassifyNormalizesAnswer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		answer string
		want   domain.Subject
	}{
		{"exact math", "mathematics", domain.SubjectMathematics},
		{"verbose math", "The subject is Mathematics.", domain.SubjectMathematics},
		{"exact english", "english", domain.SubjectEnglish},
		{"uppercase english", "ENGLISH", domain.SubjectEnglish},
		{"ambiguous", "science", domain.DefaultSubject},
		{"empty", "", domain.DefaultSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := New(&stubProvider{answer: tt.answer})
			got := c.Classify(t.Context(), "some homework question")
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestClassifyProviderFailureFallsBack(t *testing.T) {
	t.Parallel()

	c := New(&stubProvider{err: errors.New("backend unreachable")})
	got := c.Classify(t.Context(), "what is a verb?")
	if got != domain.DefaultSubject {
		t.Errorf("Expected default subject on provider failure, got %q", got)
	}
}
