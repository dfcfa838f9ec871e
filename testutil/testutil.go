// Package testutil provides scripted provider fakes used across package
// tests.
package testutil

import (
	"context"
	"sync"

	"github.com/maestrokit/maestro/llm"
	"github.com/maestrokit/maestro/types"
)

// ScriptedProvider replies with a fixed queue of responses. When the queue
// runs dry it repeats the last response, so loop-style callers terminate
// deterministically.
type ScriptedProvider struct {
	ProviderName string
	Responses    []*llm.ChatResponse
	Err          error // returned on every call when set

	mu       sync.Mutex
	calls    int
	requests []*llm.ChatRequest
}

// NewScriptedProvider builds a provider that plays back responses in order.
func NewScriptedProvider(name string, responses ...*llm.ChatResponse) *ScriptedProvider {
	return &ScriptedProvider{ProviderName: name, Responses: responses}
}

// TextProvider returns a provider that always answers with content.
func TextProvider(name, content string) *ScriptedProvider {
	return NewScriptedProvider(name, &llm.ChatResponse{
		Content:      content,
		FinishReason: "stop",
		Provider:     name,
		Usage:        llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})
}

// ErrProvider returns a provider that always fails with err.
func ErrProvider(name string, err error) *ScriptedProvider {
	return &ScriptedProvider{ProviderName: name, Err: err}
}

func (p *ScriptedProvider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	p.calls++
	if p.Err != nil {
		return nil, p.Err
	}
	if len(p.Responses) == 0 {
		return &llm.ChatResponse{Content: "", FinishReason: "stop", Provider: p.ProviderName}, nil
	}
	idx := p.calls - 1
	if idx >= len(p.Responses) {
		idx = len(p.Responses) - 1
	}
	resp := *p.Responses[idx]
	if resp.Provider == "" {
		resp.Provider = p.ProviderName
	}
	return &resp, nil
}

func (p *ScriptedProvider) Name() string { return p.ProviderName }

// Calls reports how many times Chat was invoked.
func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Requests returns the requests observed so far.
func (p *ScriptedProvider) Requests() []*llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*llm.ChatRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// ToolCallResponse builds an assistant response asking for one tool call.
func ToolCallResponse(name, args string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ToolCalls: []types.ToolCall{
			{ID: "call_1", Name: name, Arguments: []byte(args)},
		},
		FinishReason: "tool_calls",
		Usage:        llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

