// Package datatypes provides data structures for the Promptrix service.
//
// This file contains the A/B test domain entities. For HTTP request and
// response types, see requests.go.
package datatypes

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Winner identifies which prompt variant won a pairwise comparison.
type Winner string

const (
	WinnerA   Winner = "A"
	WinnerB   Winner = "B"
	WinnerTie Winner = "TIE"
)

// WinnerFromScores decides the winner from the two heuristic scores.
// The decision is total and deterministic: A wins strictly higher
// scores, B likewise, equal scores are a tie. No external tie-break.
func WinnerFromScores(scoreA, scoreB float64) Winner {
	switch {
	case scoreA > scoreB:
		return WinnerA
	case scoreB > scoreA:
		return WinnerB
	default:
		return WinnerTie
	}
}

// RunStatus is the lifecycle state of a test run.
//
// DRAFT → RUNNING when the first input starts processing,
// RUNNING → COMPLETED when every queued input has either a
// PairwiseResult or a recorded generation failure. A run never
// regresses to DRAFT.
type RunStatus string

const (
	RunStatusDraft     RunStatus = "DRAFT"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
)

// CanTransition reports whether moving to next is a legal status change.
func (s RunStatus) CanTransition(next RunStatus) bool {
	switch s {
	case RunStatusDraft:
		return next == RunStatusRunning
	case RunStatusRunning:
		return next == RunStatusCompleted
	default:
		return false
	}
}

// PromptVariant is one of the two prompts under comparison. It is
// immutable for the duration of a test run.
type PromptVariant struct {
	// Content is the prompt template. Occurrences of {{name}} are
	// replaced with variable bindings before generation.
	Content     string  `json:"content" validate:"required,maxbytes"`
	Model       string  `json:"model" validate:"required"`
	Temperature float32 `json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `json:"max_tokens" validate:"gte=0,lte=65536"`
}

// Render substitutes {{name}} placeholders in the variant's template.
// Unknown placeholders are left in place; substitution is plain string
// replacement, not a template language.
func (v PromptVariant) Render(vars map[string]string) string {
	rendered := v.Content
	for name, value := range vars {
		rendered = strings.ReplaceAll(rendered, "{{"+name+"}}", value)
	}
	return rendered
}

// ABTest is a named comparison between two prompt variants.
type ABTest struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	VariantA  PromptVariant `json:"variant_a"`
	VariantB  PromptVariant `json:"variant_b"`
	Status    RunStatus     `json:"status"`
	CreatedBy string        `json:"created_by,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// PairwiseResult is the immutable outcome of running both variants on
// a single test input. Results are append-only: they are never edited
// or deleted by the evaluation core.
type PairwiseResult struct {
	ID        string    `json:"id"`
	TestID    string    `json:"test_id"`
	Input     string    `json:"input"`
	OutputA   string    `json:"output_a"`
	OutputB   string    `json:"output_b"`
	ScoreA    float64   `json:"score_a"`
	ScoreB    float64   `json:"score_b"`
	Winner    Winner    `json:"winner"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TestAggregate is the derived statistics view over all PairwiseResults
// of one test. It is recomputed on demand and never persisted.
//
// ConfidenceLevel is a plain majority-margin percentage
// (max(aWins,bWins)/totalTests*100), not a statistical significance
// test; consumers must not read it as a p-value.
//
// JSON field names follow the public statistics object shape.
type TestAggregate struct {
	TotalTests      int     `json:"totalTests"`
	AWins           int     `json:"aWins"`
	BWins           int     `json:"bWins"`
	Ties            int     `json:"ties"`
	AWinRate        float64 `json:"aWinRate"`
	BWinRate        float64 `json:"bWinRate"`
	TieRate         float64 `json:"tieRate"`
	AvgRatingA      float64 `json:"avgRatingA"`
	AvgRatingB      float64 `json:"avgRatingB"`
	OverallWinner   Winner  `json:"overallWinner"`
	ConfidenceLevel float64 `json:"confidenceLevel"`
}

// generateUUID returns a new UUID v4 string.
func generateUUID() string {
	return uuid.NewString()
}
