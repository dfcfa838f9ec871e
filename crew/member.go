package crew

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/maestrokit/maestro/llm"
	"github.com/maestrokit/maestro/types"
)

// memberHistoryLimit bounds each member's retained conversation turns.
const memberHistoryLimit = 10

// member is one crew agent instance. Its conversation history is owned
// exclusively by this member and never shared across agents.
type member struct {
	cfg      AgentConfig
	provider llm.Provider

	mu      sync.Mutex
	history []types.Message
}

func newMember(cfg AgentConfig, provider llm.Provider) *member {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 3
	}
	return &member{cfg: cfg, provider: provider}
}

// executeTask runs one task to completion and returns the raw output plus
// token usage. Errors surface to the topology, which records them as failed
// TaskResults.
func (m *member) executeTask(ctx context.Context, task TaskConfig, shared map[string]any) (string, int, error) {
	prompt := m.buildTaskPrompt(task, shared)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, types.NewUserMessage(prompt))
	m.trimHistoryLocked()

	messages := make([]types.Message, 0, len(m.history)+1)
	messages = append(messages, types.NewSystemMessage(m.systemPrompt()))
	messages = append(messages, m.history...)

	resp, err := m.provider.Chat(ctx, &llm.ChatRequest{
		Model:       m.cfg.Model,
		Messages:    messages,
		Temperature: m.cfg.Temperature,
		MaxTokens:   m.cfg.MaxTokens,
	})
	if err != nil {
		return "", 0, fmt.Errorf("agent %s: %w", m.cfg.ID, err)
	}

	m.history = append(m.history, types.NewAssistantMessage(resp.Content))
	return resp.Content, resp.Usage.TotalTokens, nil
}

// systemPrompt renders the member's persona.
func (m *member) systemPrompt() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s.", m.cfg.Role)
	if m.cfg.Goal != "" {
		fmt.Fprintf(&sb, " Your goal: %s.", m.cfg.Goal)
	}
	if m.cfg.Backstory != "" {
		fmt.Fprintf(&sb, "\n\nBackstory: %s", m.cfg.Backstory)
	}
	return sb.String()
}

// buildTaskPrompt renders the task description, expected output, and any
// accumulated shared context from earlier tasks.
func (m *member) buildTaskPrompt(task TaskConfig, shared map[string]any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\n", task.Description)
	if task.ExpectedOutput != "" {
		fmt.Fprintf(&sb, "Expected output: %s\n", task.ExpectedOutput)
	}
	if task.Context != nil && len(task.Context.SharedData) > 0 {
		sb.WriteString("\nTask data:\n")
		writeSorted(&sb, task.Context.SharedData)
	}
	if len(shared) > 0 {
		sb.WriteString("\nResults from earlier tasks:\n")
		writeSorted(&sb, shared)
	}
	return sb.String()
}

// writeSorted renders a map with deterministic key order so prompts are
// reproducible in tests.
func writeSorted(sb *strings.Builder, data map[string]any) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(sb, "- %s: %v\n", k, data[k])
	}
}

func (m *member) trimHistoryLocked() {
	limit := memberHistoryLimit * 2
	if len(m.history) > limit {
		m.history = m.history[len(m.history)-limit:]
	}
}

// failedResult builds a failed TaskResult for an execution error.
func failedResult(task TaskConfig, agentID string, start time.Time, err error) TaskResult {
	end := time.Now()
	return TaskResult{
		TaskID:    task.ID,
		AgentID:   agentID,
		Status:    StatusFailed,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Error:     err.Error(),
	}
}

// completedResult builds a completed TaskResult.
func completedResult(task TaskConfig, agentID, output string, tokens int, start time.Time) TaskResult {
	end := time.Now()
	return TaskResult{
		TaskID:     task.ID,
		AgentID:    agentID,
		Output:     output,
		Status:     StatusCompleted,
		StartTime:  start,
		EndTime:    end,
		Duration:   end.Sub(start),
		TokensUsed: tokens,
	}
}
