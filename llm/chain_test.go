package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestrokit/maestro/types"
)

// stubProvider is a minimal scripted Provider for chain tests.
type stubProvider struct {
	name string
	resp *ChatResponse
	err  error

	mu    sync.Mutex
	calls int
}

func (s *stubProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	resp := *s.resp
	return &resp, nil
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// denyQuota blocks named providers.
type denyQuota struct {
	blocked map[string]string

	mu      sync.Mutex
	tracked []UsageRecord
}

func (q *denyQuota) CheckQuota(_ context.Context, _, provider string) (QuotaDecision, error) {
	if reason, ok := q.blocked[provider]; ok {
		return QuotaDecision{Allowed: false, Reason: reason}, nil
	}
	return QuotaDecision{Allowed: true}, nil
}

func (q *denyQuota) TrackUsage(_ context.Context, _ string, rec UsageRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracked = append(q.tracked, rec)
	return nil
}

func okResponse(content string) *ChatResponse {
	return &ChatResponse{
		Content:      content,
		FinishReason: "stop",
		Usage:        Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func testRequest() *ChatRequest {
	return &ChatRequest{Messages: []types.Message{types.NewUserMessage("hello")}}
}

func TestFallbackChainFirstProviderWins(t *testing.T) {
	primary := &stubProvider{name: "openai", resp: okResponse("hi")}
	secondary := &stubProvider{name: "ollama", resp: okResponse("backup")}

	chain, err := NewFallbackChainWithProviders(
		[]ProviderConfig{
			{Name: "openai", Priority: 1, Type: ProviderTypeAPI, CostPerMTok: 2.5},
			{Name: "ollama", Priority: 2, Type: ProviderTypeLocal},
		},
		[]Provider{primary, secondary},
		nil, nil,
	)
	require.NoError(t, err)

	resp, err := chain.Complete(context.Background(), "user-1", testRequest())
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)
	assert.False(t, resp.FallbackUsed)
	assert.InDelta(t, 15.0/1_000_000*2.5, resp.Cost, 1e-12)
	assert.Equal(t, 0, secondary.callCount())
}

func TestFallbackChainQuotaBlockSkipsWithoutNetworkCall(t *testing.T) {
	primary := &stubProvider{name: "openai", resp: okResponse("hi")}
	secondary := &stubProvider{name: "ollama", resp: okResponse("backup")}
	quota := &denyQuota{blocked: map[string]string{"openai": "daily limit reached"}}

	chain, err := NewFallbackChainWithProviders(
		[]ProviderConfig{
			{Name: "openai", Priority: 1, Type: ProviderTypeAPI},
			{Name: "ollama", Priority: 2, Type: ProviderTypeLocal},
		},
		[]Provider{primary, secondary},
		quota, nil,
	)
	require.NoError(t, err)

	resp, err := chain.Complete(context.Background(), "user-1", testRequest())
	require.NoError(t, err)
	assert.Equal(t, "backup", resp.Content)
	assert.True(t, resp.FallbackUsed)

	// The quota-blocked provider was never dialed.
	assert.Equal(t, 0, primary.callCount())
	assert.Equal(t, 1, secondary.callCount())

	// Usage was tracked against the serving provider.
	require.Len(t, quota.tracked, 1)
	assert.Equal(t, "ollama", quota.tracked[0].Provider)
}

func TestFallbackChainQuotaGateOnlyForAPIType(t *testing.T) {
	local := &stubProvider{name: "ollama", resp: okResponse("hi")}
	// The tracker blocks everything, but local providers bypass the gate.
	quota := &denyQuota{blocked: map[string]string{"ollama": "blocked"}}

	chain, err := NewFallbackChainWithProviders(
		[]ProviderConfig{{Name: "ollama", Priority: 1, Type: ProviderTypeLocal}},
		[]Provider{local},
		quota, nil,
	)
	require.NoError(t, err)

	resp, err := chain.Complete(context.Background(), "user-1", testRequest())
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)
	assert.Equal(t, 1, local.callCount())
}

func TestFallbackChainExhaustionNamesEveryProvider(t *testing.T) {
	first := &stubProvider{name: "openai", err: errors.New("503 overloaded")}
	second := &stubProvider{name: "anthropic", err: errors.New("timeout")}
	quota := &denyQuota{blocked: map[string]string{"openai": ""}}

	chain, err := NewFallbackChainWithProviders(
		[]ProviderConfig{
			{Name: "openai", Priority: 1, Type: ProviderTypeAPI},
			{Name: "anthropic", Priority: 2, Type: ProviderTypeAPI},
		},
		[]Provider{first, second},
		quota, nil,
	)
	require.NoError(t, err)

	_, err = chain.Complete(context.Background(), "user-1", testRequest())
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 2)
	assert.Equal(t, "openai", exhausted.Attempts[0].Provider)
	assert.Equal(t, "quota exceeded", exhausted.Attempts[0].Reason)
	assert.Equal(t, "anthropic", exhausted.Attempts[1].Provider)
	assert.Contains(t, err.Error(), "all providers failed")
	assert.Contains(t, err.Error(), "anthropic: timeout")
}

func TestFallbackChainOrdersByAscendingPriority(t *testing.T) {
	low := &stubProvider{name: "cheap", resp: okResponse("cheap")}
	high := &stubProvider{name: "premium", resp: okResponse("premium")}

	// Declared out of order; priority 1 must still be tried first.
	chain, err := NewFallbackChainWithProviders(
		[]ProviderConfig{
			{Name: "cheap", Priority: 5, Type: ProviderTypeLocal},
			{Name: "premium", Priority: 1, Type: ProviderTypeLocal},
		},
		[]Provider{low, high},
		nil, nil,
	)
	require.NoError(t, err)

	configs := chain.Providers()
	assert.Equal(t, "premium", configs[0].Name)
	assert.Equal(t, "cheap", configs[1].Name)

	resp, err := chain.Complete(context.Background(), "user-1", testRequest())
	require.NoError(t, err)
	assert.Equal(t, "premium", resp.Content)
	assert.False(t, resp.FallbackUsed)
}

func TestFallbackChainBackfillsUsage(t *testing.T) {
	// Backend reports no usage; the chain estimates from message content.
	bare := &stubProvider{name: "hf", resp: &ChatResponse{Content: "short answer", FinishReason: "stop"}}

	chain, err := NewFallbackChainWithProviders(
		[]ProviderConfig{{Name: "hf", Priority: 1, Type: ProviderTypeHuggingFace}},
		[]Provider{bare},
		nil, nil,
	)
	require.NoError(t, err)

	resp, err := chain.Complete(context.Background(), "user-1", testRequest())
	require.NoError(t, err)
	assert.Positive(t, resp.Usage.TotalTokens)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
}

func TestEstimateCost(t *testing.T) {
	chain, err := NewFallbackChainWithProviders(
		[]ProviderConfig{{Name: "openai", Priority: 1, Type: ProviderTypeAPI, CostPerMTok: 10}},
		[]Provider{&stubProvider{name: "openai", resp: okResponse("x")}},
		nil, nil,
	)
	require.NoError(t, err)

	assert.InDelta(t, 0.01, chain.EstimateCost("openai", 1000), 1e-9)
	assert.Zero(t, chain.EstimateCost("unknown", 1000))
}

func TestGetRecommendedProvider(t *testing.T) {
	quota := &denyQuota{blocked: map[string]string{"openai": "spent"}}
	chain, err := NewFallbackChainWithProviders(
		[]ProviderConfig{
			{Name: "openai", Priority: 1, Type: ProviderTypeAPI},
			{Name: "ollama", Priority: 2, Type: ProviderTypeLocal},
		},
		[]Provider{
			&stubProvider{name: "openai", resp: okResponse("a")},
			&stubProvider{name: "ollama", resp: okResponse("b")},
		},
		quota, nil,
	)
	require.NoError(t, err)

	cfg, err := chain.GetRecommendedProvider(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Name)
}

func TestSelectModelForTask(t *testing.T) {
	chain, err := NewFallbackChainWithProviders(
		[]ProviderConfig{
			{Name: "openai", Priority: 1, Type: ProviderTypeAPI, Model: "gpt-4o"},
			{Name: "coder", Priority: 2, Type: ProviderTypeLocal, Model: "qwen2.5-coder"},
		},
		[]Provider{
			&stubProvider{name: "openai", resp: okResponse("a")},
			&stubProvider{name: "coder", resp: okResponse("b")},
		},
		nil, nil,
	)
	require.NoError(t, err)

	// Code tasks prefer the matching local model over the cheaper-priority API.
	cfg, err := chain.SelectModelForTask(context.Background(), "user-1", "code")
	require.NoError(t, err)
	assert.Equal(t, "coder", cfg.Name)

	// Unknown task types fall back to priority order.
	cfg, err = chain.SelectModelForTask(context.Background(), "user-1", "poetry")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Name)
}

func TestBoundChainImplementsProvider(t *testing.T) {
	chain, err := NewFallbackChainWithProviders(
		[]ProviderConfig{{Name: "ollama", Priority: 1, Type: ProviderTypeLocal}},
		[]Provider{&stubProvider{name: "ollama", resp: okResponse("bound")}},
		nil, nil,
	)
	require.NoError(t, err)

	var p Provider = chain.Bind("user-1")
	assert.Equal(t, "fallback_chain", p.Name())

	resp, err := p.Chat(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "bound", resp.Content)
}

func TestNewFallbackChainValidation(t *testing.T) {
	_, err := NewFallbackChain(nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidConfig, types.GetErrorCode(err))

	_, err = NewFallbackChain([]ProviderConfig{{Name: "x", Type: "ftp"}}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidConfig, types.GetErrorCode(err))
}
