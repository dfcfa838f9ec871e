// Package llm defines the model-provider contract and the priority-ordered,
// quota-aware fallback chain that routes a single completion request across
// heterogeneous backends.
package llm

import (
	"context"
	"time"

	"github.com/maestrokit/maestro/types"
)

// ProviderType identifies the transport used to reach a backend.
type ProviderType string

const (
	ProviderTypeAPI         ProviderType = "api"         // hosted commercial API
	ProviderTypeLocal       ProviderType = "local"       // locally hosted inference server
	ProviderTypeHuggingFace ProviderType = "huggingface" // free inference API
)

// ProviderConfig describes one entry in the fallback chain.
// Priority is ascending: lower values are tried first. Entries with equal
// priority keep their list order.
type ProviderConfig struct {
	Name        string        `yaml:"name" json:"name"`
	Priority    int           `yaml:"priority" json:"priority"`
	Type        ProviderType  `yaml:"type" json:"type"`
	Model       string        `yaml:"model" json:"model"`
	Endpoint    string        `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	APIKey      string        `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	CostPerMTok float64       `yaml:"cost_per_mtok" json:"cost_per_mtok"` // USD per million tokens, 0 for free/local
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// ChatRequest is a single completion request.
type ChatRequest struct {
	Model       string             `json:"model,omitempty"`
	Messages    []types.Message    `json:"messages"`
	Temperature float32            `json:"temperature,omitempty"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
	Tools       []types.ToolSchema `json:"tools,omitempty"`
}

// Usage carries token counters reported by a provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatResponse is the uniform completion result across backends.
// FallbackUsed is true when the serving provider's priority is not the
// minimum in the chain.
type ChatResponse struct {
	Content      string           `json:"content"`
	ToolCalls    []types.ToolCall `json:"tool_calls,omitempty"`
	FinishReason string           `json:"finish_reason,omitempty"`
	Provider     string           `json:"provider"`
	Model        string           `json:"model"`
	Usage        Usage            `json:"usage"`
	Cost         float64          `json:"cost"`
	FallbackUsed bool             `json:"fallback_used"`
}

// Provider is the uniform contract every backend transport implements.
type Provider interface {
	// Chat issues one completion request and returns the full response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name returns the provider's unique identifier.
	Name() string
}

// HasToolCalls reports whether the response requests any tool invocations.
func (r *ChatResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// IsStopFinish reports whether the finish reason signals a normal end of turn.
func (r *ChatResponse) IsStopFinish() bool {
	switch r.FinishReason {
	case "stop", "end_turn", "stop_sequence":
		return true
	}
	return false
}
