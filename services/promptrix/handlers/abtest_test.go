package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatinm1/promptrix/services/llm"
	"github.com/fatinm1/promptrix/services/promptrix/datatypes"
	"github.com/fatinm1/promptrix/services/promptrix/evaluation"
	"github.com/fatinm1/promptrix/services/promptrix/middleware"
	"github.com/fatinm1/promptrix/services/promptrix/storage"
)

// fakeLLM answers deterministically so scores are reproducible. Variant
// A prompts get a longer, better-structured answer than variant B.
type fakeLLM struct {
	generate func(prompt string, params llm.GenerationParams) (string, error)
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, params llm.GenerationParams) (string, error) {
	return f.generate(prompt, params)
}

func defaultFakeLLM() *fakeLLM {
	return &fakeLLM{
		generate: func(prompt string, _ llm.GenerationParams) (string, error) {
			if strings.Contains(prompt, "formal") {
				return "Certainly. Here is a complete, carefully considered answer to your question.", nil
			}
			return "ok", nil
		},
	}
}

func newTestRouter(t *testing.T, client llm.LLMClient) (*gin.Engine, *storage.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	evaluator := evaluation.NewEvaluator(client, store)
	runner := evaluation.NewRunner(evaluator, store, store, 2)

	router := gin.New()
	router.GET("/health", HandleHealth())
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(middleware.NopAuthProvider{}))
	v1.POST("/tests", HandleCreateTest(store))
	v1.GET("/tests/:testId", HandleGetTest(store))
	v1.POST("/tests/:testId/run", HandleRunTest(runner))
	v1.GET("/tests/:testId/results", HandleGetResults(store))
	v1.GET("/tests/:testId/stats", HandleGetStats(store))
	return router, store
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func createTest(t *testing.T, router *gin.Engine) datatypes.ABTest {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/v1/tests", datatypes.CreateTestRequest{
		Name: "tone comparison",
		VariantA: datatypes.PromptVariant{
			Content: "Reply in a formal tone: {{input}}",
			Model:   "gpt-4o-mini",
		},
		VariantB: datatypes.PromptVariant{
			Content: "Reply in a casual tone: {{input}}",
			Model:   "gpt-4o-mini",
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp datatypes.CreateTestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Test.ID)
	return resp.Test
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, defaultFakeLLM())
	w := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateAndGetTest(t *testing.T) {
	router, _ := newTestRouter(t, defaultFakeLLM())
	test := createTest(t, router)

	assert.Equal(t, datatypes.RunStatusDraft, test.Status)
	assert.Equal(t, "local-user", test.CreatedBy)

	w := doJSON(t, router, http.MethodGet, "/v1/tests/"+test.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got datatypes.ABTest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, test.ID, got.ID)
	assert.Equal(t, "tone comparison", got.Name)
}

func TestCreateTestValidation(t *testing.T) {
	router, _ := newTestRouter(t, defaultFakeLLM())

	tests := []struct {
		name string
		body datatypes.CreateTestRequest
	}{
		{"missing name", datatypes.CreateTestRequest{
			VariantA: datatypes.PromptVariant{Content: "a", Model: "m"},
			VariantB: datatypes.PromptVariant{Content: "b", Model: "m"},
		}},
		{"missing variant content", datatypes.CreateTestRequest{
			Name:     "x",
			VariantA: datatypes.PromptVariant{Model: "m"},
			VariantB: datatypes.PromptVariant{Content: "b", Model: "m"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/v1/tests", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGetTestNotFound(t *testing.T) {
	router, _ := newTestRouter(t, defaultFakeLLM())
	w := doJSON(t, router, http.MethodGet, "/v1/tests/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunTestEndToEnd(t *testing.T) {
	router, _ := newTestRouter(t, defaultFakeLLM())
	test := createTest(t, router)

	w := doJSON(t, router, http.MethodPost, "/v1/tests/"+test.ID+"/run", datatypes.RunTestRequest{
		Inputs: []string{"How do I reset my password?", "Where is my order?"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp datatypes.RunTestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, datatypes.RunStatusCompleted, resp.Status)
	assert.Len(t, resp.Results, 2)
	assert.Empty(t, resp.Failures)
	assert.Equal(t, 2, resp.Stats.TotalTests)

	// A's canned answer is longer and better formed, so it wins both.
	assert.Equal(t, datatypes.WinnerA, resp.Stats.OverallWinner)
	assert.Equal(t, 2, resp.Stats.AWins)

	w = doJSON(t, router, http.MethodGet, "/v1/tests/"+test.ID+"/results", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var results datatypes.ResultsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	assert.Len(t, results.Results, 2)

	w = doJSON(t, router, http.MethodGet, "/v1/tests/"+test.ID+"/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The statistics object uses its published field names.
	body := w.Body.String()
	for _, field := range []string{"totalTests", "aWins", "bWins", "ties", "aWinRate", "bWinRate", "tieRate", "avgRatingA", "avgRatingB", "overallWinner", "confidenceLevel"} {
		assert.Contains(t, body, `"`+field+`"`)
	}
}

func TestRunTestSkipAndContinue(t *testing.T) {
	client := &fakeLLM{
		generate: func(prompt string, _ llm.GenerationParams) (string, error) {
			if strings.Contains(prompt, "poison") && strings.Contains(prompt, "casual") {
				return "", fmt.Errorf("provider timeout")
			}
			return "A fine answer.", nil
		},
	}
	router, _ := newTestRouter(t, client)
	test := createTest(t, router)

	w := doJSON(t, router, http.MethodPost, "/v1/tests/"+test.ID+"/run", datatypes.RunTestRequest{
		Inputs: []string{"good input", "poison input"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp datatypes.RunTestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Results, 1)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, "poison input", resp.Failures[0].Input)
	assert.Equal(t, "B", resp.Failures[0].Variant)
	assert.Equal(t, 1, resp.Stats.TotalTests)
	assert.Equal(t, datatypes.RunStatusCompleted, resp.Status)
}

func TestRunTestValidation(t *testing.T) {
	router, _ := newTestRouter(t, defaultFakeLLM())
	test := createTest(t, router)

	// No inputs at all.
	w := doJSON(t, router, http.MethodPost, "/v1/tests/"+test.ID+"/run", datatypes.RunTestRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// An empty input string inside the list.
	w = doJSON(t, router, http.MethodPost, "/v1/tests/"+test.ID+"/run", datatypes.RunTestRequest{
		Inputs: []string{"fine", ""},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunTestUnknownTest(t *testing.T) {
	router, _ := newTestRouter(t, defaultFakeLLM())
	w := doJSON(t, router, http.MethodPost, "/v1/tests/unknown/run", datatypes.RunTestRequest{
		Inputs: []string{"hello"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStatsEmptyTest(t *testing.T) {
	router, _ := newTestRouter(t, defaultFakeLLM())
	test := createTest(t, router)

	w := doJSON(t, router, http.MethodGet, "/v1/tests/"+test.ID+"/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Stats.TotalTests)
	assert.Equal(t, datatypes.WinnerTie, resp.Stats.OverallWinner)
	assert.Zero(t, resp.Stats.ConfidenceLevel)
}
