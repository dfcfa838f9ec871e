package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/maestrokit/maestro/types"
)

// LocalProvider speaks the Ollama /api/chat wire format used by locally
// hosted inference servers. Local backends carry no per-token cost and are
// never quota-gated by the chain.
type LocalProvider struct {
	cfg    ProviderConfig
	client *http.Client
	logger *zap.Logger
}

// NewLocalProvider creates a provider for a local inference endpoint.
func NewLocalProvider(cfg ProviderConfig, logger *zap.Logger) *LocalProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		// Local models on CPU can be slow to first token.
		timeout = 120 * time.Second
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:11434"
	}
	return &LocalProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(zap.String("provider", cfg.Name)),
	}
}

func (p *LocalProvider) Name() string { return p.cfg.Name }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  struct {
		Temperature float32 `json:"temperature,omitempty"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options"`
}

type ollamaResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`

	DoneReason      string `json:"done_reason,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Chat issues a non-streaming chat request against the local server.
// Tool schemas are ignored: most local models lack native function calling,
// so agents running over a local backend answer from plain completions.
func (p *LocalProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body := ollamaRequest{
		Model:    model,
		Messages: make([]ollamaMessage, 0, len(req.Messages)),
		Stream:   false,
	}
	body.Options.Temperature = req.Temperature
	body.Options.NumPredict = req.MaxTokens
	for _, m := range req.Messages {
		role := string(m.Role)
		if m.Role == types.RoleTool {
			// Ollama has no tool role; fold results into a user turn.
			role = "user"
		}
		body.Messages = append(body.Messages, ollamaMessage{Role: role, Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to encode request").WithCause(err).WithProvider(p.cfg.Name)
	}

	endpoint := strings.TrimRight(p.cfg.Endpoint, "/") + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to build request").WithCause(err).WithProvider(p.cfg.Name)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrProviderUnavailable, "local server unreachable").WithCause(err).WithProvider(p.cfg.Name).WithRetryable(true)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to read response").WithCause(err).WithProvider(p.cfg.Name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(p.cfg.Name, resp.StatusCode, data)
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to decode response").WithCause(err).WithProvider(p.cfg.Name)
	}
	if parsed.Error != "" {
		return nil, types.NewError(types.ErrUpstreamError, parsed.Error).WithProvider(p.cfg.Name)
	}

	finish := "stop"
	if parsed.DoneReason != "" {
		finish = parsed.DoneReason
	}
	return &ChatResponse{
		Content:      parsed.Message.Content,
		FinishReason: finish,
		Provider:     p.cfg.Name,
		Model:        parsed.Model,
		Usage: Usage{
			PromptTokens:     parsed.PromptEvalCount,
			CompletionTokens: parsed.EvalCount,
			TotalTokens:      parsed.PromptEvalCount + parsed.EvalCount,
		},
	}, nil
}

// Healthy reports whether the local server answers its version endpoint.
func (p *LocalProvider) Healthy(ctx context.Context) bool {
	endpoint := strings.TrimRight(p.cfg.Endpoint, "/") + "/api/version"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
