package prompt

import (
	"fmt"

	"github.com/upanishadai/tutor-server/internal/strategy"
)

// Persona describes the teacher's tone and style applied to every
// assembled prompt.
type Persona struct {
	Type             string
	Tone             string
	QuestionStyle    string
	FeedbackApproach string
	ExplanationDepth string
}

var personas = map[string]Persona{
	"supportive": {
		Type:             "supportive",
		Tone:             "warm and encouraging",
		QuestionStyle:    "guiding",
		FeedbackApproach: "positive reinforcement",
		ExplanationDepth: "thorough with examples",
	},
	"socratic": {
		Type:             "socratic",
		Tone:             "thoughtful and inquisitive",
		QuestionStyle:    "probing",
		FeedbackApproach: "reflection-inducing",
		ExplanationDepth: "gradually revealed through questions",
	},
	"pragmatic": {
		Type:             "pragmatic",
		Tone:             "clear and direct",
		QuestionStyle:    "straightforward",
		FeedbackApproach: "direct with actionable steps",
		ExplanationDepth: "concise and targeted",
	},
}

// PersonaByType returns the named persona, falling back to supportive.
func PersonaByType(name string) Persona {
	if p, ok := personas[name]; ok {
		return p
	}
	return personas["supportive"]
}

// PersonaForStrategy picks the persona matching the selected strategy:
// socratic questioning gets the socratic persona, scaffolding gets the
// pragmatic step-by-step persona, everything else stays supportive.
func PersonaForStrategy(kind strategy.Kind) Persona {
	switch kind {
	case strategy.KindSocratic:
		return personas["socratic"]
	case strategy.KindScaffolding:
		return personas["pragmatic"]
	default:
		return personas["supportive"]
	}
}

// Directives renders the persona as prompt instructions.
func (p Persona) Directives() string {
	return fmt.Sprintf(
		"Respond as a %s teacher. Ask %s questions. Provide feedback using %s. Give explanations that are %s.",
		p.Tone, p.QuestionStyle, p.FeedbackApproach, p.ExplanationDepth,
	)
}
