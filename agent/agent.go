// Package agent binds one model provider, the tool registry, and bounded
// conversation state into an agent that runs a tool-calling loop to produce
// a final text answer.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maestrokit/maestro/llm"
	"github.com/maestrokit/maestro/tools"
	"github.com/maestrokit/maestro/types"
)

// DefaultMaxIterations bounds the tool-calling loop when the caller does
// not override it.
const DefaultMaxIterations = 5

// historyLimit is the number of retained conversation turns. One turn is a
// user message plus the assistant reply.
const historyLimit = 10

// Config configures an Agent.
type Config struct {
	ID            string  `yaml:"id" json:"id"`
	Name          string  `yaml:"name" json:"name"`
	SystemPrompt  string  `yaml:"system_prompt" json:"system_prompt"`
	Model         string  `yaml:"model,omitempty" json:"model,omitempty"`
	Temperature   float32 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens     int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	MaxIterations int     `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
}

// ChatOptions tune a single Chat call.
type ChatOptions struct {
	MaxIterations int // 0 = agent default
}

// Agent runs a bounded tool-calling loop against its bound provider.
// The conversation history is owned exclusively by the agent instance and
// trimmed to the most recent turns.
type Agent struct {
	cfg      Config
	provider llm.Provider
	registry *tools.Registry
	executor *tools.Executor
	logger   *zap.Logger

	mu      sync.Mutex
	history []types.Message
}

// New creates an agent. The registry may be nil for tool-less agents.
func New(cfg Config, provider llm.Provider, registry *tools.Registry, logger *zap.Logger) (*Agent, error) {
	if provider == nil {
		return nil, types.NewError(types.ErrProviderNotSet, "agent requires a provider")
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Agent{
		cfg:      cfg,
		provider: provider,
		registry: registry,
		logger:   logger.With(zap.String("component", "agent"), zap.String("agent_id", cfg.ID)),
	}
	if registry != nil {
		a.executor = tools.NewExecutor(registry, logger)
	}
	return a, nil
}

// ID returns the agent's identifier.
func (a *Agent) ID() string { return a.cfg.ID }

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.cfg.Name }

// Chat appends the user message to history and runs the tool-calling loop:
// up to MaxIterations provider calls with tools attached, then one final
// call with tools omitted if the loop never produced a plain text answer.
// The method always terminates within MaxIterations+1 provider calls and
// never returns an empty dangling tool-call state.
func (a *Agent) Chat(ctx context.Context, userMessage string, opts ChatOptions) (string, error) {
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = a.cfg.MaxIterations
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.history = append(a.history, types.NewUserMessage(userMessage))
	a.trimHistoryLocked()

	var schemas []types.ToolSchema
	if a.registry != nil {
		schemas = a.registry.List()
	}

	start := time.Now()
	for iteration := 0; iteration < maxIterations; iteration++ {
		resp, err := a.complete(ctx, schemas)
		if err != nil {
			return "", fmt.Errorf("agent %s: completion failed: %w", a.cfg.ID, err)
		}

		if !resp.HasToolCalls() {
			a.history = append(a.history, types.NewAssistantMessage(resp.Content))
			a.logger.Debug("chat completed",
				zap.Int("iterations", iteration+1),
				zap.Duration("duration", time.Since(start)),
			)
			return resp.Content, nil
		}

		a.history = append(a.history, types.NewAssistantMessage(resp.Content).WithToolCalls(resp.ToolCalls))
		a.runToolCallsLocked(ctx, resp.ToolCalls)

		if resp.IsStopFinish() {
			break
		}
	}

	// Loop exhausted or stopped while still requesting tools: force a final
	// textual answer with tools omitted.
	resp, err := a.complete(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("agent %s: final completion failed: %w", a.cfg.ID, err)
	}
	a.history = append(a.history, types.NewAssistantMessage(resp.Content))
	a.logger.Debug("chat completed after forced final turn",
		zap.Duration("duration", time.Since(start)),
	)
	return resp.Content, nil
}

// Execute performs a named orchestration action with the given input. The
// action and input are rendered into a prompt and run through Chat; the
// result is wrapped under an "output" key so plan variable references like
// {{step.output}} resolve against it.
func (a *Agent) Execute(ctx context.Context, action string, input map[string]any) (any, error) {
	rendered, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("agent %s: input not serializable: %w", a.cfg.ID, err)
	}

	prompt := fmt.Sprintf("Perform the action %q with the following input:\n%s", action, rendered)
	output, err := a.Chat(ctx, prompt, ChatOptions{})
	if err != nil {
		return nil, err
	}
	return map[string]any{"output": output, "action": action}, nil
}

// History returns a copy of the agent's conversation history.
func (a *Agent) History() []types.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]types.Message, len(a.history))
	copy(out, a.history)
	return out
}

// Reset clears the conversation history.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

func (a *Agent) complete(ctx context.Context, schemas []types.ToolSchema) (*llm.ChatResponse, error) {
	messages := make([]types.Message, 0, len(a.history)+1)
	if a.cfg.SystemPrompt != "" {
		messages = append(messages, types.NewSystemMessage(a.cfg.SystemPrompt))
	}
	messages = append(messages, a.history...)

	return a.provider.Chat(ctx, &llm.ChatRequest{
		Model:       a.cfg.Model,
		Messages:    messages,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		Tools:       schemas,
	})
}

// runToolCallsLocked executes all requested tool calls concurrently and
// appends a synthetic user turn summarizing the results as JSON. Individual
// tool failures become error entries in the summary, never loop aborts.
func (a *Agent) runToolCallsLocked(ctx context.Context, calls []types.ToolCall) {
	var results []types.ToolResult
	if a.executor != nil {
		results = a.executor.Execute(ctx, calls)
	} else {
		results = make([]types.ToolResult, len(calls))
		for i, c := range calls {
			results[i] = types.ToolResult{ToolCallID: c.ID, Name: c.Name, Error: "no tool registry configured"}
		}
	}

	type summaryEntry struct {
		Name   string          `json:"name"`
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error,omitempty"`
	}
	summary := make([]summaryEntry, 0, len(results))
	for _, r := range results {
		summary = append(summary, summaryEntry{Name: r.Name, Result: r.Result, Error: r.Error})
	}

	encoded, err := json.Marshal(summary)
	if err != nil {
		encoded = []byte(`[{"error":"failed to encode tool results"}]`)
	}
	a.history = append(a.history, types.NewUserMessage("Tool results:\n"+string(encoded)))
}

// trimHistoryLocked drops the oldest messages beyond the retained turn
// window. Two messages approximate one turn.
func (a *Agent) trimHistoryLocked() {
	limit := historyLimit * 2
	if len(a.history) > limit {
		a.history = a.history[len(a.history)-limit:]
	}
}
