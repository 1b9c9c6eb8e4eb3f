// Package datatypes provides data structures for the Promptrix service.
//
// This file contains the typed HTTP request and response bodies for the
// A/B test endpoints. Request bodies are validated at the edge with
// go-playground/validator so the evaluation core only ever sees
// well-formed input.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxInputBytes is the maximum size of a single test input or
	// prompt template. Prevents memory exhaustion with large payloads;
	// byte length, not rune count.
	MaxInputBytes = 32 * 1024 // 32KB

	// MaxInputsPerRun is the maximum number of test inputs in one run
	// request.
	MaxInputsPerRun = 100
)

// abtestValidate is the validator instance for A/B test datatypes.
// Initialized in init() with custom validators.
var abtestValidate *validator.Validate

func init() {
	abtestValidate = validator.New()
	_ = abtestValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxInputBytes on string fields.
func validateMaxBytes(fl validator.FieldLevel) bool {
	content := fl.Field().String()
	return len(content) <= MaxInputBytes
}

// =============================================================================
// Request Types
// =============================================================================

// CreateTestRequest is the body for POST /v1/tests.
type CreateTestRequest struct {
	RequestID string        `json:"request_id" validate:"omitempty,uuid4"`
	Name      string        `json:"name" validate:"required,max=200"`
	VariantA  PromptVariant `json:"variant_a" validate:"required"`
	VariantB  PromptVariant `json:"variant_b" validate:"required"`
}

// Validate validates the request using validator tags, including the
// nested variant structs.
func (r *CreateTestRequest) Validate() error {
	if err := abtestValidate.Struct(r); err != nil {
		return err
	}
	if err := abtestValidate.Struct(r.VariantA); err != nil {
		return err
	}
	return abtestValidate.Struct(r.VariantB)
}

// EnsureDefaults populates the request ID when the client omitted it.
func (r *CreateTestRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = generateUUID()
	}
}

// GenerationOverrides optionally replaces per-variant parameters with a
// uniform configuration for the whole run.
type GenerationOverrides struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `json:"max_tokens,omitempty" validate:"omitempty,gte=1,lte=65536"`
}

// RunTestRequest is the body for POST /v1/tests/:testId/run.
//
// Inputs are the operator-supplied probe strings; each is run through
// both variants. Variables are substituted into {{name}} placeholders
// in both prompt templates before generation.
type RunTestRequest struct {
	RequestID string               `json:"request_id" validate:"omitempty,uuid4"`
	Inputs    []string             `json:"inputs" validate:"required,min=1,max=100,dive,required,maxbytes"`
	Variables map[string]string    `json:"variables,omitempty"`
	Overrides *GenerationOverrides `json:"overrides,omitempty"`
}

// Validate validates the request fields.
func (r *RunTestRequest) Validate() error {
	if err := abtestValidate.Struct(r); err != nil {
		return err
	}
	if r.Overrides != nil {
		return abtestValidate.Struct(r.Overrides)
	}
	return nil
}

// EnsureDefaults populates the request ID when the client omitted it.
func (r *RunTestRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = generateUUID()
	}
}

// =============================================================================
// Response Types
// =============================================================================

// CreateTestResponse is returned by POST /v1/tests.
type CreateTestResponse struct {
	RequestID string    `json:"request_id"`
	Test      ABTest    `json:"test"`
	Timestamp time.Time `json:"timestamp"`
}

// InputFailure reports a generation failure for one test input. Failed
// inputs never carry scores; they are surfaced alongside the results
// that did succeed.
type InputFailure struct {
	Input   string `json:"input"`
	Variant string `json:"variant"` // "A" or "B": which generation call failed
	Error   string `json:"error"`
}

// RunTestResponse is returned by POST /v1/tests/:testId/run. Results
// holds one PairwiseResult per succeeded input, Failures one entry per
// failed input, and Stats the aggregate over every stored result of
// the test (including results from earlier runs).
type RunTestResponse struct {
	RequestID string           `json:"request_id"`
	TestID    string           `json:"test_id"`
	Status    RunStatus        `json:"status"`
	Results   []PairwiseResult `json:"results"`
	Failures  []InputFailure   `json:"failures,omitempty"`
	Stats     TestAggregate    `json:"stats"`
	Timestamp time.Time        `json:"timestamp"`
}

// ResultsResponse is returned by GET /v1/tests/:testId/results.
type ResultsResponse struct {
	TestID  string           `json:"test_id"`
	Results []PairwiseResult `json:"results"`
}

// StatsResponse is returned by GET /v1/tests/:testId/stats.
type StatsResponse struct {
	TestID string        `json:"test_id"`
	Stats  TestAggregate `json:"stats"`
}
