// Package strategy selects a response-construction strategy for each
// inbound student message.
//
// Selection is a pure decision table over three signals: the session's
// confusion score, a complexity estimate for the input, and the
// student's learning stage. Same inputs always produce the same
// strategy; only the downstream generated content is non-deterministic.
package strategy

import (
	"strings"

	"github.com/upanishadai/tutor-server/internal/domain"
)

// Named thresholds for the decision table.
const (
	ConfusionHighThreshold  = 0.7
	ComplexityHighThreshold = 0.8

	// complexityWordScale is the word count at which an input is
	// considered maximally complex by the length heuristic.
	complexityWordScale = 80
)

// Kind tags a response-construction strategy.
type Kind string

const (
	KindScaffolding Kind = "scaffolding"
	KindSocratic    Kind = "socratic"
	KindExamples    Kind = "examples"
)

// Stage describes the student's learning stage.
type Stage string

const (
	StageBeginner     Stage = "beginner"
	StageIntermediate Stage = "intermediate"
	StageAdvanced     Stage = "advanced"
)

// Signals are the inputs to strategy selection.
type Signals struct {
	Confusion  float64
	Complexity float64
	Stage      Stage
}

// ScaffoldingPlan breaks the problem into ordered steps.
type ScaffoldingPlan struct {
	Steps       []string
	CurrentStep int
}

// SocraticPlan guides the student through ordered questions.
type SocraticPlan struct {
	Questions []string
}

// ExamplePlan teaches through concrete examples and analogies.
type ExamplePlan struct {
	Examples  []string
	Analogies []string
}

// Output is the tagged strategy variant handed to the prompt assembler.
// Exactly one plan field is non-nil, matching Kind.
type Output struct {
	Kind        Kind
	Scaffolding *ScaffoldingPlan
	Socratic    *SocraticPlan
	Examples    *ExamplePlan
}

// SignalsFor derives selection signals from the session profile and the
// inbound input text.
func SignalsFor(profile domain.StudentProfile, input string) Signals {
	return Signals{
		Confusion:  profile.ConfusionOrDefault(),
		Complexity: EstimateComplexity(input),
		Stage:      StageForLevel(profile.Level),
	}
}

// EstimateComplexity maps input length to [0, 1] using a simple word
// count heuristic.
func EstimateComplexity(input string) float64 {
	words := len(strings.Fields(input))
	c := float64(words) / complexityWordScale
	if c > 1 {
		return 1
	}
	return c
}

// StageForLevel maps a numeric proficiency level to a learning stage.
// Level 0 (unset) defaults to beginner.
func StageForLevel(level int) Stage {
	switch {
	case level >= 3:
		return StageAdvanced
	case level == 2:
		return StageIntermediate
	default:
		return StageBeginner
	}
}

// Select applies the decision table. Tie-break order: high confusion
// wins, then high complexity, then the socratic default.
func Select(sig Signals) Output {
	switch {
	case sig.Confusion > ConfusionHighThreshold:
		return Output{Kind: KindExamples, Examples: examplePlan(sig)}
	case sig.Complexity > ComplexityHighThreshold:
		return Output{Kind: KindScaffolding, Scaffolding: scaffoldingPlan(sig)}
	default:
		return Output{Kind: KindSocratic, Socratic: socraticPlan(sig)}
	}
}

func scaffoldingPlan(sig Signals) *ScaffoldingPlan {
	plan := &ScaffoldingPlan{
		Steps: []string{
			"Restate the problem in your own words",
			"Identify what is known and what is being asked",
			"Work through one small piece at a time",
			"Check the result against the original question",
		},
		CurrentStep: 1,
	}
	if sig.Stage != StageBeginner {
		plan.CurrentStep = 2
	}
	return plan
}

func socraticPlan(sig Signals) *SocraticPlan {
	questions := []string{
		"What do you already know about this topic?",
		"What part of the problem feels unclear?",
		"What would happen if you tried the simplest case first?",
	}
	if sig.Stage == StageAdvanced {
		questions = append(questions, "Can you explain why your approach works in general?")
	}
	return &SocraticPlan{Questions: questions}
}

func examplePlan(sig Signals) *ExamplePlan {
	return &ExamplePlan{
		Examples: []string{
			"A fully worked example of a similar, slightly simpler problem",
			"The same idea applied to everyday objects",
		},
		Analogies: []string{
			"Compare the concept to something the student already understands",
		},
	}
}
