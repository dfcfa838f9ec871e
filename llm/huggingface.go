package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/maestrokit/maestro/types"
)

// HFProvider fronts the HuggingFace serverless inference API. It is a
// text-in/text-out free tier: no native tool calling, usage counters are
// estimated locally. The chain never quota-gates it.
type HFProvider struct {
	cfg    ProviderConfig
	client *resty.Client
	logger *zap.Logger
}

// NewHFProvider creates a provider for the HuggingFace inference API.
func NewHFProvider(cfg ProviderConfig, logger *zap.Logger) *HFProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api-inference.huggingface.co/models"
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Endpoint, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &HFProvider{
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("provider", cfg.Name)),
	}
}

func (p *HFProvider) Name() string { return p.cfg.Name }

type hfRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		Temperature  float32 `json:"temperature,omitempty"`
		MaxNewTokens int     `json:"max_new_tokens,omitempty"`
		ReturnFull   bool    `json:"return_full_text"`
	} `json:"parameters"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

type hfError struct {
	Error string `json:"error"`
}

// Chat flattens the conversation into a single prompt and calls the
// model's inference endpoint.
func (p *HFProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	prompt := flattenConversation(req.Messages)
	body := hfRequest{Inputs: prompt}
	body.Parameters.Temperature = req.Temperature
	body.Parameters.MaxNewTokens = req.MaxTokens
	body.Parameters.ReturnFull = false

	var generations []hfGeneration
	var apiErr hfError
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&generations).
		SetError(&apiErr).
		Post("/" + model)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "request failed").WithCause(err).WithProvider(p.cfg.Name).WithRetryable(true)
	}

	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.Status()
		}
		// 503 means the model is cold-loading on the free tier.
		if resp.StatusCode() == 503 {
			return nil, types.NewError(types.ErrModelOverloaded, msg).WithProvider(p.cfg.Name).WithRetryable(true)
		}
		return nil, mapHTTPError(p.cfg.Name, resp.StatusCode(), resp.Body())
	}
	if len(generations) == 0 {
		return nil, types.NewError(types.ErrEmptyResponse, "no generations returned").WithProvider(p.cfg.Name)
	}

	content := generations[0].GeneratedText
	promptTokens := CountText(prompt)
	completionTokens := CountText(content)
	return &ChatResponse{
		Content:      content,
		FinishReason: "stop",
		Provider:     p.cfg.Name,
		Model:        model,
		Usage: Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

// flattenConversation renders chat messages as a plain prompt for
// text-generation endpoints.
func flattenConversation(messages []types.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem:
			sb.WriteString(m.Content)
			sb.WriteString("\n\n")
		case types.RoleUser, types.RoleTool:
			fmt.Fprintf(&sb, "User: %s\n", m.Content)
		case types.RoleAssistant:
			fmt.Fprintf(&sb, "Assistant: %s\n", m.Content)
		}
	}
	sb.WriteString("Assistant:")
	return sb.String()
}
