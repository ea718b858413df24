package strategy

import (
	"strings"
	"testing"

	"github.com/upanishadai/tutor-server/internal/domain"
)

func TestSelectDecisionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		confusion  float64
		complexity float64
		want       Kind
	}{
		{"high confusion wins", 0.9, 0.2, KindExamples},
		{"high complexity", 0.3, 0.9, KindScaffolding},
		{"default socratic", 0.3, 0.3, KindSocratic},
		{"confusion beats complexity", 0.9, 0.9, KindExamples},
		{"confusion exactly at threshold is not high", 0.7, 0.3, KindSocratic},
		{"complexity exactly at threshold is not high", 0.3, 0.8, KindSocratic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := Select(Signals{Confusion: tt.confusion, Complexity: tt.complexity, Stage: StageBeginner})
			if out.Kind != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, out.Kind)
			}
		})
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	t.Parallel()

	sig := Signals{Confusion: 0.5, Complexity: 0.5, Stage: StageIntermediate}
	first := Select(sig)
	for i := 0; i < 10; i++ {
		if got := Select(sig); got.Kind != first.Kind {
			t.Fatalf("Selection changed between calls: %q vs %q", first.Kind, got.Kind)
		}
	}
}

func TestSelectPopulatesMatchingPlan(t *testing.T) {
	t.Parallel()

	examples := Select(Signals{Confusion: 0.9})
	if examples.Examples == nil || examples.Scaffolding != nil || examples.Socratic != nil {
		t.Errorf("Examples output should carry only an example plan: %+v", examples)
	}

	scaffolding := Select(Signals{Confusion: 0.1, Complexity: 0.9})
	if scaffolding.Scaffolding == nil || len(scaffolding.Scaffolding.Steps) == 0 {
		t.Errorf("Scaffolding output should carry ordered steps: %+v", scaffolding)
	}

	socratic := Select(Signals{Confusion: 0.1, Complexity: 0.1})
	if socratic.Socratic == nil || len(socratic.Socratic.Questions) == 0 {
		t.Errorf("Socratic output should carry questions: %+v", socratic)
	}
}

func TestEstimateComplexityBounds(t *testing.T) {
	t.Parallel()

	if got := EstimateComplexity(""); got != 0 {
		t.Errorf("Empty input should have zero complexity, got %v", got)
	}

	long := strings.Repeat("word ", 500)
	if got := EstimateComplexity(long); got != 1 {
		t.Errorf("Very long input should cap at 1, got %v", got)
	}

	short := EstimateComplexity("what is two plus two")
	if short <= 0 || short >= 1 {
		t.Errorf("Short input should be strictly between 0 and 1, got %v", short)
	}
}

func TestSignalsForDefaults(t *testing.T) {
	t.Parallel()

	sig := SignalsFor(domain.StudentProfile{}, "short question")
	if sig.Confusion != domain.DefaultConfusion {
		t.Errorf("Expected default confusion %v, got %v", domain.DefaultConfusion, sig.Confusion)
	}
	if sig.Stage != StageBeginner {
		t.Errorf("Expected beginner stage for unset level, got %q", sig.Stage)
	}
}

func TestStageForLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level int
		want  Stage
	}{
		{0, StageBeginner},
		{1, StageBeginner},
		{2, StageIntermediate},
		{3, StageAdvanced},
		{7, StageAdvanced},
	}
	for _, tt := range tests {
		if got := StageForLevel(tt.level); got != tt.want {
			t.Errorf("Level %d: expected %q, got %q", tt.level, tt.want, got)
		}
	}
}
