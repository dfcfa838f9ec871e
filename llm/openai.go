package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/maestrokit/maestro/types"
)

// APIProvider speaks the OpenAI-compatible chat-completions wire format used
// by most hosted commercial APIs. Authentication is a Bearer token.
type APIProvider struct {
	cfg    ProviderConfig
	client *http.Client
	logger *zap.Logger
}

// NewAPIProvider creates a provider for an OpenAI-compatible endpoint.
func NewAPIProvider(cfg ProviderConfig, logger *zap.Logger) *APIProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.openai.com/v1"
	}
	return &APIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(zap.String("provider", cfg.Name)),
	}
}

func (p *APIProvider) Name() string { return p.cfg.Name }

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	Name       string           `json:"name,omitempty"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float32         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Tools       []openaiTool    `json:"tools,omitempty"`
}

type openaiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Chat issues a chat-completions request.
func (p *APIProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body := openaiRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, t := range req.Tools {
		var ot openaiTool
		ot.Type = "function"
		ot.Function.Name = t.Name
		ot.Function.Description = t.Description
		ot.Function.Parameters = t.Parameters
		body.Tools = append(body.Tools, ot)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to encode request").WithCause(err).WithProvider(p.cfg.Name)
	}

	endpoint := strings.TrimRight(p.cfg.Endpoint, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to build request").WithCause(err).WithProvider(p.cfg.Name)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "request failed").WithCause(err).WithProvider(p.cfg.Name).WithRetryable(true)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to read response").WithCause(err).WithProvider(p.cfg.Name)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(p.cfg.Name, resp.StatusCode, data)
	}

	var parsed openaiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to decode response").WithCause(err).WithProvider(p.cfg.Name)
	}
	if parsed.Error != nil {
		return nil, types.NewError(types.ErrUpstreamError, parsed.Error.Message).WithProvider(p.cfg.Name)
	}
	if len(parsed.Choices) == 0 {
		return nil, types.NewError(types.ErrEmptyResponse, "response contained no choices").WithProvider(p.cfg.Name)
	}

	choice := parsed.Choices[0]
	out := &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Provider:     p.cfg.Name,
		Model:        parsed.Model,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

func toOpenAIMessages(messages []types.Message) []openaiMessage {
	out := make([]openaiMessage, 0, len(messages))
	for _, m := range messages {
		om := openaiMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			var otc openaiToolCall
			otc.ID = tc.ID
			otc.Type = "function"
			otc.Function.Name = tc.Name
			otc.Function.Arguments = string(tc.Arguments)
			om.ToolCalls = append(om.ToolCalls, otc)
		}
		out = append(out, om)
	}
	return out
}

func mapHTTPError(provider string, status int, body []byte) *types.Error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.NewError(types.ErrUnauthorized, fmt.Sprintf("status=%d: %s", status, msg)).WithProvider(provider)
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, fmt.Sprintf("status=%d: %s", status, msg)).WithProvider(provider).WithRetryable(true)
	case status == http.StatusNotFound:
		return types.NewError(types.ErrModelNotFound, fmt.Sprintf("status=%d: %s", status, msg)).WithProvider(provider)
	case status >= 500:
		return types.NewError(types.ErrUpstreamError, fmt.Sprintf("status=%d: %s", status, msg)).WithProvider(provider).WithRetryable(true)
	default:
		return types.NewError(types.ErrInvalidRequest, fmt.Sprintf("status=%d: %s", status, msg)).WithProvider(provider)
	}
}
