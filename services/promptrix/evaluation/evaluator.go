// Package evaluation implements the A/B test evaluation core: running
// one test input through both prompt variants, scoring the two outputs,
// deciding a winner, and aggregating stored results into statistics.
//
// The evaluator depends on a generation collaborator (services/llm) and
// a persistence collaborator (ResultStore); both are injected so the
// core stays unit-testable with fakes.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/fatinm1/promptrix/services/llm"
	"github.com/fatinm1/promptrix/services/promptrix/datatypes"
	"github.com/fatinm1/promptrix/services/promptrix/observability"
	"github.com/fatinm1/promptrix/services/promptrix/scoring"
)

var tracer = otel.Tracer("promptrix.evaluation")

// ErrGenerationFailed marks a failed generation call for one variant.
// Callers match it with errors.Is; the per-variant detail travels in
// GenerationError.
var ErrGenerationFailed = errors.New("generation failed")

// GenerationError reports which variant's generation call failed and
// why. A failed input never produces scores or a partial result record.
type GenerationError struct {
	Variant string // "A" or "B"
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("variant %s generation failed: %v", e.Variant, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailed }

// ResultStore is the persistence collaborator for PairwiseResults. The
// collection is append-only; results are never edited or deleted here.
// AppendResult must be safe for concurrent use.
type ResultStore interface {
	AppendResult(ctx context.Context, result datatypes.PairwiseResult) error
	ListResults(ctx context.Context, testID string) ([]datatypes.PairwiseResult, error)
}

// Evaluator runs single test inputs through both variants of a test.
type Evaluator struct {
	client llm.LLMClient
	scorer *scoring.HeuristicScorer
	store  ResultStore
}

func NewEvaluator(client llm.LLMClient, store ResultStore) *Evaluator {
	return &Evaluator{
		client: client,
		scorer: scoring.NewHeuristicScorer(),
		store:  store,
	}
}

// EvaluateInput renders both variant templates, generates both outputs
// concurrently, scores them against the raw input, and appends exactly
// one PairwiseResult to the store.
//
// On a generation failure for either variant it returns a
// GenerationError and records nothing: no fabricated score, no partial
// result.
func (e *Evaluator) EvaluateInput(ctx context.Context, test datatypes.ABTest, input string, vars map[string]string, overrides *datatypes.GenerationOverrides) (datatypes.PairwiseResult, error) {
	ctx, span := tracer.Start(ctx, "Evaluator.EvaluateInput")
	defer span.End()
	span.SetAttributes(attribute.String("test.id", test.ID))
	start := time.Now()

	promptA := renderPrompt(test.VariantA, input, vars)
	promptB := renderPrompt(test.VariantB, input, vars)

	var outputA, outputB string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := e.client.Generate(gctx, promptA, paramsFor(test.VariantA, overrides))
		if err != nil {
			return &GenerationError{Variant: "A", Err: err}
		}
		outputA = out
		return nil
	})
	g.Go(func() error {
		out, err := e.client.Generate(gctx, promptB, paramsFor(test.VariantB, overrides))
		if err != nil {
			return &GenerationError{Variant: "B", Err: err}
		}
		outputB = out
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var genErr *GenerationError
		if errors.As(err, &genErr) && observability.DefaultMetrics != nil {
			observability.DefaultMetrics.GenerationFailuresTotal.WithLabelValues(genErr.Variant).Inc()
		}
		return datatypes.PairwiseResult{}, err
	}

	scoreA := e.scorer.Score(outputA, input)
	scoreB := e.scorer.Score(outputB, input)

	result := datatypes.PairwiseResult{
		ID:        uuid.NewString(),
		TestID:    test.ID,
		Input:     input,
		OutputA:   outputA,
		OutputB:   outputB,
		ScoreA:    scoreA,
		ScoreB:    scoreB,
		Winner:    datatypes.WinnerFromScores(scoreA, scoreB),
		CreatedBy: test.CreatedBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.AppendResult(ctx, result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return datatypes.PairwiseResult{}, fmt.Errorf("failed to append result for test %s: %w", test.ID, err)
	}

	if m := observability.DefaultMetrics; m != nil {
		m.EvaluationDurationSeconds.Observe(time.Since(start).Seconds())
		m.VariantScore.WithLabelValues("A").Observe(scoreA)
		m.VariantScore.WithLabelValues("B").Observe(scoreB)
		m.InputsEvaluatedTotal.WithLabelValues(string(result.Winner)).Inc()
	}

	slog.Debug("Evaluated test input",
		"test_id", test.ID,
		"score_a", scoreA,
		"score_b", scoreB,
		"winner", result.Winner)
	return result, nil
}

// renderPrompt substitutes variable bindings into the variant template.
// The test input is available as {{input}}; templates that do not use
// the placeholder get the input appended after the rendered template.
func renderPrompt(v datatypes.PromptVariant, input string, vars map[string]string) string {
	bindings := make(map[string]string, len(vars)+1)
	for name, value := range vars {
		bindings[name] = value
	}
	if _, ok := bindings["input"]; !ok {
		bindings["input"] = input
	}
	rendered := v.Render(bindings)
	if !strings.Contains(v.Content, "{{input}}") {
		rendered = rendered + "\n\n" + input
	}
	return rendered
}

// paramsFor builds generation parameters for one variant, applying any
// uniform run-level overrides on top of the variant's own settings.
func paramsFor(v datatypes.PromptVariant, overrides *datatypes.GenerationOverrides) llm.GenerationParams {
	params := llm.GenerationParams{Model: v.Model}
	temperature := v.Temperature
	params.Temperature = &temperature
	if v.MaxTokens > 0 {
		maxTokens := v.MaxTokens
		params.MaxTokens = &maxTokens
	}
	if overrides != nil {
		if overrides.Model != "" {
			params.Model = overrides.Model
		}
		if overrides.Temperature != nil {
			params.Temperature = overrides.Temperature
		}
		if overrides.MaxTokens != nil {
			params.MaxTokens = overrides.MaxTokens
		}
	}
	return params
}
