// Package provider wraps the external text-completion backend behind a
// narrow interface consumed by the conversation pipeline.
package provider

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// ErrEmptyCompletion indicates the backend returned no usable text.
var ErrEmptyCompletion = errors.New("empty completion")

// Error wraps any transport, auth, or rate-limit failure from the
// completion backend.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err originated from the completion
// backend (as opposed to a local pipeline error).
func IsProviderError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}

// CompletionProvider is the external text-generation collaborator.
//
// CompleteStream yields text fragments as they arrive. The sequence is
// finite and not restartable; once an error is yielded no further
// fragments follow.
type CompletionProvider interface {
	Complete(ctx context.Context, prompt, system string) (string, error)
	CompleteStream(ctx context.Context, prompt string) iter.Seq2[string, error]
}
