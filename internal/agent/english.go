package agent

import (
	"github.com/upanishadai/tutor-server/internal/domain"
	"github.com/upanishadai/tutor-server/internal/provider"
)

const englishInstructions = `You are an encouraging English language arts teacher helping a student
with homework. Identify whether the question is about reading
comprehension, writing, grammar, or vocabulary, and coach the student
through it. Model good usage and invite the student to try themselves.`

func newEnglishAgent(p provider.CompletionProvider) Agent {
	return &baseAgent{
		name:         "english_teacher",
		subject:      domain.SubjectEnglish,
		instructions: englishInstructions,
		provider:     p,
		resources: []domain.Resource{
			{Title: "Reading comprehension exercises", Kind: "practice"},
			{Title: "Writing prompts for this topic", Kind: "writing"},
		},
	}
}
