package datatypes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWinnerFromScores(t *testing.T) {
	tests := []struct {
		name   string
		scoreA float64
		scoreB float64
		want   Winner
	}{
		{"a wins", 7.3, 4.0, WinnerA},
		{"b wins", 2.0, 2.3, WinnerB},
		{"exact tie", 5.0, 5.0, WinnerTie},
		{"zero tie", 0, 0, WinnerTie},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WinnerFromScores(tt.scoreA, tt.scoreB)
			assert.Equal(t, tt.want, got)

			// Exactly one of the three outcomes holds.
			switch {
			case tt.scoreA > tt.scoreB:
				assert.Equal(t, WinnerA, got)
			case tt.scoreB > tt.scoreA:
				assert.Equal(t, WinnerB, got)
			default:
				assert.Equal(t, WinnerTie, got)
			}
		})
	}
}

func TestRunStatusTransitions(t *testing.T) {
	assert.True(t, RunStatusDraft.CanTransition(RunStatusRunning))
	assert.True(t, RunStatusRunning.CanTransition(RunStatusCompleted))

	// No skipping and no regression.
	assert.False(t, RunStatusDraft.CanTransition(RunStatusCompleted))
	assert.False(t, RunStatusRunning.CanTransition(RunStatusDraft))
	assert.False(t, RunStatusCompleted.CanTransition(RunStatusRunning))
	assert.False(t, RunStatusCompleted.CanTransition(RunStatusDraft))
}

func TestPromptVariantRender(t *testing.T) {
	variant := PromptVariant{Content: "Summarize {{doc}} for {{audience}} in {{doc}} style"}
	got := variant.Render(map[string]string{
		"doc":      "the report",
		"audience": "executives",
	})
	assert.Equal(t, "Summarize the report for executives in the report style", got)
}

func TestPromptVariantRenderUnknownPlaceholder(t *testing.T) {
	variant := PromptVariant{Content: "Hello {{name}}, welcome to {{place}}"}
	got := variant.Render(map[string]string{"name": "Ada"})
	// Unbound placeholders stay in the template.
	assert.Equal(t, "Hello Ada, welcome to {{place}}", got)
}

func TestCreateTestRequestValidate(t *testing.T) {
	valid := CreateTestRequest{
		Name:     "tone test",
		VariantA: PromptVariant{Content: "a: {{input}}", Model: "m"},
		VariantB: PromptVariant{Content: "b: {{input}}", Model: "m"},
	}
	assert.NoError(t, valid.Validate())

	noName := valid
	noName.Name = ""
	assert.Error(t, noName.Validate())

	noModel := valid
	noModel.VariantB.Model = ""
	assert.Error(t, noModel.Validate())

	hotTemp := valid
	hotTemp.VariantA.Temperature = 3.5
	assert.Error(t, hotTemp.Validate())

	oversized := valid
	oversized.VariantA.Content = strings.Repeat("x", MaxInputBytes+1)
	assert.Error(t, oversized.Validate())
}

func TestCreateTestRequestEnsureDefaults(t *testing.T) {
	req := CreateTestRequest{}
	req.EnsureDefaults()
	assert.NotEmpty(t, req.RequestID)

	fixed := CreateTestRequest{RequestID: "11111111-2222-4333-8444-555555555555"}
	fixed.EnsureDefaults()
	assert.Equal(t, "11111111-2222-4333-8444-555555555555", fixed.RequestID)
}

func TestRunTestRequestValidate(t *testing.T) {
	valid := RunTestRequest{Inputs: []string{"one", "two"}}
	assert.NoError(t, valid.Validate())

	empty := RunTestRequest{}
	assert.Error(t, empty.Validate())

	blankInput := RunTestRequest{Inputs: []string{"ok", ""}}
	assert.Error(t, blankInput.Validate())

	tooMany := RunTestRequest{Inputs: make([]string, MaxInputsPerRun+1)}
	for i := range tooMany.Inputs {
		tooMany.Inputs[i] = "x"
	}
	assert.Error(t, tooMany.Validate())

	oversized := RunTestRequest{Inputs: []string{strings.Repeat("y", MaxInputBytes+1)}}
	assert.Error(t, oversized.Validate())

	badOverride := RunTestRequest{Inputs: []string{"ok"}}
	temp := float32(9)
	badOverride.Overrides = &GenerationOverrides{Temperature: &temp}
	assert.Error(t, badOverride.Validate())
}
