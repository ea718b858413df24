// Package classify determines the subject of a homework question when
// the caller does not supply one.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/upanishadai/tutor-server/internal/domain"
	"github.com/upanishadai/tutor-server/internal/provider"
)

const classifyPromptTemplate = `Classify the following homework question as either "mathematics" or "english":

%s

Respond with just one word: either "mathematics" or "english".`

// Classifier maps free-text input to a subject using a closed-set
// completion prompt.
type Classifier struct {
	provider provider.CompletionProvider
	fallback domain.Subject
}

// New creates a classifier backed by the given completion provider.
func New(p provider.CompletionProvider) *Classifier {
	return &Classifier{
		provider: p,
		fallback: domain.DefaultSubject,
	}
}

// Classify returns the subject for the given text. A provider failure
// or an ambiguous answer never propagates: the default subject is
// returned and the condition is logged.
func (c *Classifier) Classify(ctx context.Context, text string) domain.Subject {
	prompt := fmt.Sprintf(classifyPromptTemplate, text)

	answer, err := c.provider.Complete(ctx, prompt, "")
	if err != nil {
		slog.Warn("subject classification failed, using default",
			"error", err,
			"default", c.fallback,
		)
		return c.fallback
	}

	return c.normalize(answer)
}

// normalize resolves the model's textual answer by case-insensitive
// substring match against the known subject keywords.
func (c *Classifier) normalize(answer string) domain.Subject {
	answer = strings.ToLower(strings.TrimSpace(answer))
	switch {
	case strings.Contains(answer, "math"):
		return domain.SubjectMathematics
	case strings.Contains(answer, "english"):
		return domain.SubjectEnglish
	default:
		slog.Debug("ambiguous classification answer, using default",
			"answer", answer,
			"default", c.fallback,
		)
		return c.fallback
	}
}
