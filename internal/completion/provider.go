// Package completion abstracts the LLM completion API behind a small
// capability so the diagnosis lifecycle never depends on a concrete vendor.
// The provider is selected by configuration at startup, not by inheritance.
package completion

import "context"

// Provider generates text from a system prompt and a user prompt. Any
// network, quota, or model failure is returned as an error; callers wrap it
// with the provider error code before it reaches the API surface.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}
