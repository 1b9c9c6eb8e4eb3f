package evaluation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatinm1/promptrix/services/llm"
	"github.com/fatinm1/promptrix/services/promptrix/datatypes"
)

// memTestStore is an in-memory TestStore recording status transitions.
type memTestStore struct {
	mu          sync.Mutex
	tests       map[string]datatypes.ABTest
	transitions []datatypes.RunStatus
}

func newMemTestStore(tests ...datatypes.ABTest) *memTestStore {
	store := &memTestStore{tests: make(map[string]datatypes.ABTest)}
	for _, test := range tests {
		store.tests[test.ID] = test
	}
	return store
}

func (m *memTestStore) GetTest(_ context.Context, id string) (datatypes.ABTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	test, ok := m.tests[id]
	if !ok {
		return datatypes.ABTest{}, fmt.Errorf("test %s not found", id)
	}
	return test, nil
}

func (m *memTestStore) UpdateStatus(_ context.Context, id string, status datatypes.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	test, ok := m.tests[id]
	if !ok {
		return fmt.Errorf("test %s not found", id)
	}
	test.Status = status
	m.tests[id] = test
	m.transitions = append(m.transitions, status)
	return nil
}

func newTestRunner(client llm.LLMClient, tests *memTestStore, results *memResultStore, concurrency int) *Runner {
	return NewRunner(NewEvaluator(client, results), tests, results, concurrency)
}

func TestRunSkipAndContinue(t *testing.T) {
	client := &stubClient{
		generate: func(prompt string, _ llm.GenerationParams) (string, error) {
			// Variant B fails for the poisoned input only.
			if strings.Contains(prompt, "poison") && strings.HasPrefix(prompt, "Answer in detail") {
				return "", fmt.Errorf("provider timeout")
			}
			return "A perfectly reasonable answer.", nil
		},
	}
	tests := newMemTestStore(sampleTest())
	results := newMemResultStore()
	runner := newTestRunner(client, tests, results, 2)

	summary, err := runner.Run(context.Background(), "test-1", datatypes.RunTestRequest{
		Inputs: []string{"good question", "poison question"},
	})
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, "good question", summary.Results[0].Input)

	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "poison question", summary.Failures[0].Input)
	assert.Equal(t, "B", summary.Failures[0].Variant)
	assert.Contains(t, summary.Failures[0].Error, "provider timeout")

	// The failure is reported separately, never folded into scores.
	assert.Equal(t, 1, summary.Stats.TotalTests)
	assert.Equal(t, datatypes.RunStatusCompleted, summary.Status)
	assert.Equal(t, []datatypes.RunStatus{datatypes.RunStatusRunning, datatypes.RunStatusCompleted}, tests.transitions)
}

func TestRunUnknownTest(t *testing.T) {
	client := &stubClient{
		generate: func(string, llm.GenerationParams) (string, error) { return "ok", nil },
	}
	runner := newTestRunner(client, newMemTestStore(), newMemResultStore(), 1)

	_, err := runner.Run(context.Background(), "missing", datatypes.RunTestRequest{Inputs: []string{"x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestRunAggregatesAcrossRuns(t *testing.T) {
	client := &stubClient{
		generate: func(prompt string, _ llm.GenerationParams) (string, error) {
			if strings.HasPrefix(prompt, "Answer briefly") {
				return "Short answer with the key detail included.", nil
			}
			return "ok", nil
		},
	}
	tests := newMemTestStore(sampleTest())
	results := newMemResultStore()
	runner := newTestRunner(client, tests, results, 1)

	first, err := runner.Run(context.Background(), "test-1", datatypes.RunTestRequest{Inputs: []string{"one"}})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Stats.TotalTests)

	// A second run folds in the stored results of the first.
	second, err := runner.Run(context.Background(), "test-1", datatypes.RunTestRequest{Inputs: []string{"two", "three"}})
	require.NoError(t, err)
	assert.Equal(t, 3, second.Stats.TotalTests)
	assert.Len(t, second.Results, 2)

	// A completed test never regresses out of COMPLETED.
	assert.Equal(t, datatypes.RunStatusCompleted, second.Status)
	assert.Equal(t, []datatypes.RunStatus{datatypes.RunStatusRunning, datatypes.RunStatusCompleted}, tests.transitions)
}

func TestRunCancelKeepsRecordedResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	client := &stubClient{
		generate: func(prompt string, _ llm.GenerationParams) (string, error) {
			// Simulate the operator cancelling mid-run: the first
			// input's calls still return, later inputs never start.
			if strings.Contains(prompt, "first") {
				cancel()
			}
			return "still a complete answer.", nil
		},
	}
	tests := newMemTestStore(sampleTest())
	results := newMemResultStore()
	runner := newTestRunner(client, tests, results, 1)

	summary, err := runner.Run(ctx, "test-1", datatypes.RunTestRequest{
		Inputs: []string{"first", "second"},
	})
	require.NoError(t, err)

	// The recorded result survives cancellation; the skipped input is
	// surfaced as a failure.
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "first", summary.Results[0].Input)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "second", summary.Failures[0].Input)
	assert.Equal(t, 1, summary.Stats.TotalTests)
}
