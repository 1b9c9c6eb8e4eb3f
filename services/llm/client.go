package llm

import "context"

type GenerationParams struct {
	// Model overrides the client's default model when non-empty.
	// Prompt variants may each name their own model.
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
// Variant evaluation calls Generate once per prompt variant.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}
