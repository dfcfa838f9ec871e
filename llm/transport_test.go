package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestrokit/maestro/types"
)

func TestAPIProviderChat(t *testing.T) {
	var gotAuth string
	var gotBody openaiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-4o-mini",
			"choices": [{"message": {"role": "assistant", "content": "Hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 3, "total_tokens": 12}
		}`))
	}))
	defer server.Close()

	p := NewAPIProvider(ProviderConfig{
		Name: "openai", Model: "gpt-4o-mini",
		Endpoint: server.URL + "/v1", APIKey: "sk-test",
	}, nil)

	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages:    []types.Message{types.NewUserMessage("hi")},
		Temperature: 0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody.Model)
	assert.Equal(t, "Hello there", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
	assert.True(t, resp.IsStopFinish())
}

func TestAPIProviderToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body openaiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Tools, 1)
		assert.Equal(t, "get_weather", body.Tools[0].Function.Name)

		w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{"id": "call_1", "type": "function",
						"function": {"name": "get_weather", "arguments": "{\"city\":\"Oslo\"}"}}]
				},
				"finish_reason": "tool_calls"
			}]
		}`))
	}))
	defer server.Close()

	p := NewAPIProvider(ProviderConfig{Name: "openai", Endpoint: server.URL}, nil)

	params, _ := json.Marshal(types.NewObjectSchema().AddProperty("city", types.NewStringSchema()))
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []types.Message{types.NewUserMessage("weather in Oslo")},
		Tools:    []types.ToolSchema{{Name: "get_weather", Parameters: params}},
	})
	require.NoError(t, err)

	require.True(t, resp.HasToolCalls())
	assert.Equal(t, "get_weather", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"city":"Oslo"}`, string(resp.ToolCalls[0].Arguments))
	assert.False(t, resp.IsStopFinish())
}

func TestAPIProviderErrorMapping(t *testing.T) {
	tests := []struct {
		status    int
		wantCode  types.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, types.ErrUnauthorized, false},
		{http.StatusTooManyRequests, types.ErrRateLimited, true},
		{http.StatusNotFound, types.ErrModelNotFound, false},
		{http.StatusInternalServerError, types.ErrUpstreamError, true},
		{http.StatusBadRequest, types.ErrInvalidRequest, false},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error": {"message": "nope"}}`))
		}))

		p := NewAPIProvider(ProviderConfig{Name: "openai", Endpoint: server.URL}, nil)
		_, err := p.Chat(context.Background(), &ChatRequest{Messages: []types.Message{types.NewUserMessage("hi")}})
		server.Close()

		require.Error(t, err, "status %d", tt.status)
		assert.Equal(t, tt.wantCode, types.GetErrorCode(err))
		assert.Equal(t, tt.retryable, types.IsRetryable(err))
	}
}

func TestLocalProviderChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var body ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.False(t, body.Stream)
		// Tool-role messages fold into user turns.
		for _, m := range body.Messages {
			assert.NotEqual(t, "tool", m.Role)
		}

		w.Write([]byte(`{
			"model": "llama3.2",
			"message": {"role": "assistant", "content": "local answer"},
			"done": true,
			"done_reason": "stop",
			"prompt_eval_count": 20,
			"eval_count": 8
		}`))
	}))
	defer server.Close()

	p := NewLocalProvider(ProviderConfig{Name: "ollama", Model: "llama3.2", Endpoint: server.URL}, nil)

	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []types.Message{
			types.NewUserMessage("hi"),
			types.NewToolMessage("call_1", "get_weather", `{"temp":12}`),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "local answer", resp.Content)
	assert.Equal(t, 28, resp.Usage.TotalTokens)
	assert.True(t, resp.IsStopFinish())
}

func TestLocalProviderHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/version" {
			w.Write([]byte(`{"version": "0.5.0"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p := NewLocalProvider(ProviderConfig{Name: "ollama", Endpoint: server.URL}, nil)
	assert.True(t, p.Healthy(context.Background()))

	server.Close()
	assert.False(t, p.Healthy(context.Background()))
}

func TestHFProviderChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/mistralai/Mistral-7B-Instruct-v0.3", r.URL.Path)

		var body hfRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body.Inputs, "User: hi")
		assert.Contains(t, body.Inputs, "Assistant:")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"generated_text": "free-tier answer"}]`))
	}))
	defer server.Close()

	p := NewHFProvider(ProviderConfig{
		Name: "hf", Model: "mistralai/Mistral-7B-Instruct-v0.3", Endpoint: server.URL,
	}, nil)

	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "free-tier answer", resp.Content)
	// Usage is estimated locally since the API reports none.
	assert.Positive(t, resp.Usage.TotalTokens)
}

func TestHFProviderColdModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": "Model mistralai/Mistral-7B-Instruct-v0.3 is currently loading"}`))
	}))
	defer server.Close()

	p := NewHFProvider(ProviderConfig{Name: "hf", Model: "m", Endpoint: server.URL}, nil)
	_, err := p.Chat(context.Background(), &ChatRequest{Messages: []types.Message{types.NewUserMessage("hi")}})

	require.Error(t, err)
	assert.Equal(t, types.ErrModelOverloaded, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}
