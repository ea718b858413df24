// Package agent implements the subject-specific teaching agents.
//
// Each agent pairs a subject with role instructions and supplementary
// resources. Agents are a closed set resolved through the Registry; the
// conversation pipeline only depends on the Agent interface.
package agent

import (
	"context"
	"fmt"

	"github.com/upanishadai/tutor-server/internal/domain"
	"github.com/upanishadai/tutor-server/internal/prompt"
	"github.com/upanishadai/tutor-server/internal/provider"
	"github.com/upanishadai/tutor-server/internal/strategy"
)

// Context carries the per-request inputs an agent needs to build its
// prompt.
type Context struct {
	Strategy strategy.Output
	History  []domain.Message
	Persona  prompt.Persona
	Profile  domain.StudentProfile
}

// Agent produces a teaching response for one subject.
type Agent interface {
	// Name identifies the agent in responses and telemetry.
	Name() string

	// Subject is the subject this agent teaches.
	Subject() domain.Subject

	// BuildPrompt assembles the completion prompt for the input.
	BuildPrompt(input string, actx Context) string

	// Produce generates a complete response atomically.
	Produce(ctx context.Context, input string, actx Context) (string, error)

	// Resources lists supplementary learning resources for the subject.
	Resources() []domain.Resource
}

// Registry resolves subjects to their teaching agents.
type Registry struct {
	agents map[domain.Subject]Agent
}

// NewRegistry creates a registry with the full closed set of agents.
func NewRegistry(p provider.CompletionProvider) *Registry {
	r := &Registry{agents: make(map[domain.Subject]Agent)}
	r.register(newMathAgent(p))
	r.register(newEnglishAgent(p))
	return r
}

func (r *Registry) register(a Agent) {
	r.agents[a.Subject()] = a
}

// ForSubject returns the agent for the given subject.
func (r *Registry) ForSubject(subject domain.Subject) (Agent, error) {
	a, ok := r.agents[subject]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedSubject, subject)
	}
	return a, nil
}

// baseAgent provides the shared prompt/produce behavior.
type baseAgent struct {
	name         string
	subject      domain.Subject
	instructions string
	resources    []domain.Resource
	provider     provider.CompletionProvider
}

func (a *baseAgent) Name() string            { return a.name }
func (a *baseAgent) Subject() domain.Subject { return a.subject }

func (a *baseAgent) Resources() []domain.Resource {
	out := make([]domain.Resource, len(a.resources))
	copy(out, a.resources)
	return out
}

func (a *baseAgent) BuildPrompt(input string, actx Context) string {
	return prompt.Assemble(prompt.Input{
		Instructions: a.instructions,
		Question:     input,
		Strategy:     actx.Strategy,
		History:      actx.History,
		Persona:      actx.Persona,
		Profile:      actx.Profile,
	})
}

func (a *baseAgent) Produce(ctx context.Context, input string, actx Context) (string, error) {
	text, err := a.provider.Complete(ctx, a.BuildPrompt(input, actx), "")
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", a.name, err)
	}
	return text, nil
}

// ExplanationLevel derives the explanation depth from student age:
// under 8 gets level 1, 8 to 11 gets level 2, 12 and up gets level 3.
func ExplanationLevel(age int) int {
	switch {
	case age < 8:
		return 1
	case age < 12:
		return 2
	default:
		return 3
	}
}
