package agent

import (
	"github.com/upanishadai/tutor-server/internal/domain"
	"github.com/upanishadai/tutor-server/internal/provider"
)

const mathInstructions = `You are a patient mathematics teacher helping a student with homework.
Analyze the problem to identify its type and the concepts involved, then
explain the solution step by step in a way that is clear and educational.
Never just give the final answer; show how to reach it.`

func newMathAgent(p provider.CompletionProvider) Agent {
	return &baseAgent{
		name:         "math_teacher",
		subject:      domain.SubjectMathematics,
		instructions: mathInstructions,
		provider:     p,
		resources: []domain.Resource{
			{Title: "Step-by-step practice problems", Kind: "practice"},
			{Title: "Visual explanation of the concept", Kind: "visual"},
		},
	}
}
