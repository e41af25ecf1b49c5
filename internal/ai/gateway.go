// Package ai provides a provider-agnostic gateway for generative text with fallback routing.
package ai

import (
	"context"
	"encoding/json"
)

// TaskType labels a request in logs.
type TaskType string

const TaskVocabulary TaskType = "vocabulary"

// Message represents a chat message. Role is "system", "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`

	// ResponseMIMEType asks the provider for a specific output encoding, e.g. "application/json".
	ResponseMIMEType string `json:"response_mime_type,omitempty"`
	// ResponseSchema constrains structured output. Providers that cannot honor it ignore it.
	ResponseSchema json.RawMessage `json:"response_schema,omitempty"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Completer is the narrow capability consumers need.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Provider is a Completer the router can probe.
type Provider interface {
	Completer
	HealthCheck(ctx context.Context) error
}
