package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fatinm1/promptrix/services/promptrix/datatypes"
	"github.com/fatinm1/promptrix/services/promptrix/observability"
)

// DefaultRunConcurrency bounds how many test inputs are evaluated at
// once within a single run. Each input already fans out into two
// generation calls, so the provider sees up to twice this many
// in-flight requests.
const DefaultRunConcurrency = 4

// TestStore is the persistence collaborator for test definitions.
type TestStore interface {
	GetTest(ctx context.Context, id string) (datatypes.ABTest, error)
	UpdateStatus(ctx context.Context, id string, status datatypes.RunStatus) error
}

// RunSummary is the outcome of one run: the results produced by this
// run, the per-input failures, the final run status, and the aggregate
// over every stored result of the test.
type RunSummary struct {
	Results  []datatypes.PairwiseResult
	Failures []datatypes.InputFailure
	Status   datatypes.RunStatus
	Stats    datatypes.TestAggregate
}

// Runner executes whole test runs: many inputs, bounded concurrency,
// skip-and-continue on per-input failures.
type Runner struct {
	evaluator   *Evaluator
	tests       TestStore
	results     ResultStore
	concurrency int
}

func NewRunner(evaluator *Evaluator, tests TestStore, results ResultStore, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = DefaultRunConcurrency
	}
	return &Runner{
		evaluator:   evaluator,
		tests:       tests,
		results:     results,
		concurrency: concurrency,
	}
}

// Run evaluates every input in the request against the named test.
//
// A failed input is recorded in the failure list and never aborts the
// remaining inputs. Cancelling ctx stops issuing new evaluations, but
// results already recorded are kept and still show up in the summary.
// The run transitions DRAFT to RUNNING before the first evaluation and
// RUNNING to COMPLETED once every input has either a result or a
// recorded failure; a completed test never regresses.
func (r *Runner) Run(ctx context.Context, testID string, req datatypes.RunTestRequest) (*RunSummary, error) {
	ctx, span := tracer.Start(ctx, "Runner.Run")
	defer span.End()

	test, err := r.tests.GetTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test %s: %w", testID, err)
	}

	if m := observability.DefaultMetrics; m != nil {
		m.ActiveRuns.Inc()
		defer m.ActiveRuns.Dec()
	}

	if test.Status.CanTransition(datatypes.RunStatusRunning) {
		if err := r.tests.UpdateStatus(ctx, test.ID, datatypes.RunStatusRunning); err != nil {
			return nil, fmt.Errorf("failed to mark test %s running: %w", test.ID, err)
		}
		test.Status = datatypes.RunStatusRunning
	}

	var (
		mu       sync.Mutex
		results  []datatypes.PairwiseResult
		failures []datatypes.InputFailure
	)

	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for _, input := range req.Inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				mu.Lock()
				failures = append(failures, datatypes.InputFailure{Input: input, Error: err.Error()})
				mu.Unlock()
				return nil
			}
			result, err := r.evaluator.EvaluateInput(ctx, test, input, req.Variables, req.Overrides)
			if err != nil {
				var genErr *GenerationError
				variant := ""
				if errors.As(err, &genErr) {
					variant = genErr.Variant
				}
				slog.Warn("Test input evaluation failed",
					"test_id", test.ID,
					"variant", variant,
					"error", err)
				mu.Lock()
				failures = append(failures, datatypes.InputFailure{Input: input, Variant: variant, Error: err.Error()})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; failures travel in the failure list.
	_ = g.Wait()

	// Status and aggregation survive a cancelled run context so that
	// already-recorded results are never discarded.
	tail := context.WithoutCancel(ctx)

	status := test.Status
	if status.CanTransition(datatypes.RunStatusCompleted) {
		if err := r.tests.UpdateStatus(tail, test.ID, datatypes.RunStatusCompleted); err != nil {
			slog.Error("Failed to mark test completed", "test_id", test.ID, "error", err)
		} else {
			status = datatypes.RunStatusCompleted
		}
	}

	stored, err := r.results.ListResults(tail, test.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results for test %s: %w", test.ID, err)
	}

	if m := observability.DefaultMetrics; m != nil {
		m.RunsTotal.WithLabelValues(string(status)).Inc()
	}

	slog.Info("Test run finished",
		"test_id", test.ID,
		"inputs", len(req.Inputs),
		"succeeded", len(results),
		"failed", len(failures),
		"status", status)
	return &RunSummary{
		Results:  results,
		Failures: failures,
		Status:   status,
		Stats:    Aggregate(stored),
	}, nil
}
