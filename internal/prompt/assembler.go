// Package prompt composes the final completion prompt from subject
// instructions, the selected strategy, recent history, and a persona.
package prompt

import (
	"fmt"
	"strings"

	"github.com/upanishadai/tutor-server/internal/domain"
	"github.com/upanishadai/tutor-server/internal/strategy"
)

// HistoryWindow is the number of prior conversation entries included
// in an assembled prompt.
const HistoryWindow = 3

// Input carries everything the assembler composes into a prompt.
type Input struct {
	Instructions string
	Question     string
	Strategy     strategy.Output
	History      []domain.Message
	Persona      Persona
	Profile      domain.StudentProfile
}

// Assemble builds the prompt text. Composition order is fixed:
// instruction preamble, strategy block, recent history, student
// question, persona directives last. No side effects.
func Assemble(in Input) string {
	var b strings.Builder

	b.WriteString(in.Instructions)
	b.WriteString("\n\n")

	if in.Profile.Age > 0 {
		fmt.Fprintf(&b, "The student is %d years old", in.Profile.Age)
		if in.Profile.LearningStyle != "" {
			fmt.Fprintf(&b, " and prefers a %s learning style", in.Profile.LearningStyle)
		}
		b.WriteString(".\n\n")
	}

	writeStrategyBlock(&b, in.Strategy)

	if len(in.History) > 0 {
		b.WriteString("Recent conversation:\n")
		history := in.History
		if len(history) > HistoryWindow {
			history = history[len(history)-HistoryWindow:]
		}
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", msg.Sender, msg.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Student question:\n%s\n\n", in.Question)

	b.WriteString(in.Persona.Directives())

	return b.String()
}

func writeStrategyBlock(b *strings.Builder, out strategy.Output) {
	switch out.Kind {
	case strategy.KindScaffolding:
		if out.Scaffolding == nil {
			return
		}
		b.WriteString("Teach by scaffolding. Break the problem into these steps:\n")
		for i, step := range out.Scaffolding.Steps {
			fmt.Fprintf(b, "%d. %s\n", i+1, step)
		}
		fmt.Fprintf(b, "Focus on step %d now.\n\n", out.Scaffolding.CurrentStep)

	case strategy.KindSocratic:
		if out.Socratic == nil {
			return
		}
		b.WriteString("Teach by socratic questioning. Guide the student with questions such as:\n")
		for _, q := range out.Socratic.Questions {
			fmt.Fprintf(b, "- %s\n", q)
		}
		b.WriteString("\n")

	case strategy.KindExamples:
		if out.Examples == nil {
			return
		}
		b.WriteString("Teach through concrete examples. Use:\n")
		for _, ex := range out.Examples.Examples {
			fmt.Fprintf(b, "- %s\n", ex)
		}
		for _, an := range out.Examples.Analogies {
			fmt.Fprintf(b, "- Analogy: %s\n", an)
		}
		b.WriteString("\n")
	}
}
