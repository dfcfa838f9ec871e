// Package crew executes explicitly authored multi-agent task sets under one
// of four collaboration topologies: sequential, parallel, hierarchical, or
// consensus.
package crew

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maestrokit/maestro/llm"
	"github.com/maestrokit/maestro/types"
)

// Process selects the crew execution topology.
type Process string

const (
	ProcessSequential   Process = "sequential"
	ProcessParallel     Process = "parallel"
	ProcessHierarchical Process = "hierarchical"
	ProcessConsensus    Process = "consensus"
)

// AgentConfig describes one crew agent: its persona, model tuning, and
// delegation rights.
type AgentConfig struct {
	ID              string   `yaml:"id" json:"id"`
	Role            string   `yaml:"role" json:"role"`
	Goal            string   `yaml:"goal" json:"goal"`
	Backstory       string   `yaml:"backstory,omitempty" json:"backstory,omitempty"`
	Provider        string   `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model           string   `yaml:"model,omitempty" json:"model,omitempty"`
	Temperature     float32  `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens       int      `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	MaxIterations   int      `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
	Tools           []string `yaml:"tools,omitempty" json:"tools,omitempty"`
	AllowDelegation bool     `yaml:"allow_delegation,omitempty" json:"allow_delegation,omitempty"`
}

// TaskContext carries optional execution context for a task.
type TaskContext struct {
	Dependencies []string       `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	SharedData   map[string]any `yaml:"shared_data,omitempty" json:"shared_data,omitempty"`
	Deadline     *time.Time     `yaml:"deadline,omitempty" json:"deadline,omitempty"`
	Priority     int            `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// TaskCallback fires after a task's result is recorded.
type TaskCallback func(result TaskResult)

// TaskConfig describes one crew task. Agent defaults to the first
// registered agent when absent.
type TaskConfig struct {
	ID             string       `yaml:"id" json:"id"`
	Description    string       `yaml:"description" json:"description"`
	ExpectedOutput string       `yaml:"expected_output" json:"expected_output"`
	Agent          string       `yaml:"agent,omitempty" json:"agent,omitempty"`
	Context        *TaskContext `yaml:"context,omitempty" json:"context,omitempty"`
	Async          bool         `yaml:"async,omitempty" json:"async,omitempty"`
	Callback       TaskCallback `yaml:"-" json:"-"`
}

// Config describes a crew. Validation happens in New: at least one agent
// and one task, and a hierarchical crew must name a configured manager.
type Config struct {
	ID         string        `yaml:"id" json:"id"`
	Name       string        `yaml:"name" json:"name"`
	Agents     []AgentConfig `yaml:"agents" json:"agents"`
	Tasks      []TaskConfig  `yaml:"tasks" json:"tasks"`
	Process    Process       `yaml:"process" json:"process"`
	ManagerID  string        `yaml:"manager_id,omitempty" json:"manager_id,omitempty"`
	MaxRetries int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// TaskStatus is the terminal state of a task execution.
type TaskStatus string

const (
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

// TaskResult is the immutable outcome of one task execution.
type TaskResult struct {
	TaskID     string        `json:"task_id"`
	AgentID    string        `json:"agent_id"`
	Output     string        `json:"output,omitempty"`
	Status     TaskStatus    `json:"status"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Duration   time.Duration `json:"duration"`
	TokensUsed int           `json:"tokens_used,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// CrewResult aggregates a kickoff's outcome.
type CrewResult struct {
	CrewID      string                `json:"crew_id"`
	Success     bool                  `json:"success"`
	Error       string                `json:"error,omitempty"`
	TaskResults map[string]TaskResult `json:"task_results"`
	StartTime   time.Time             `json:"start_time"`
	EndTime     time.Time             `json:"end_time"`
	Duration    time.Duration         `json:"duration"`
}

// Crew is a validated, executable crew instance.
type Crew struct {
	cfg     Config
	members map[string]*member
	order   []string // agent ids in configuration order
	logger  *zap.Logger

	mu      sync.Mutex
	results map[string]TaskResult
}

// New validates the config and builds the crew. All agents run over the
// given provider; per-agent model and tuning come from their AgentConfig.
// Configuration errors are fatal here, never at kickoff time.
func New(cfg Config, provider llm.Provider, logger *zap.Logger) (*Crew, error) {
	if provider == nil {
		return nil, types.NewError(types.ErrProviderNotSet, "crew requires a provider")
	}
	if len(cfg.Agents) == 0 {
		return nil, types.NewError(types.ErrInvalidConfig, "crew requires at least one agent")
	}
	if len(cfg.Tasks) == 0 {
		return nil, types.NewError(types.ErrInvalidConfig, "crew requires at least one task")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Process == "" {
		cfg.Process = ProcessSequential
	}

	members := make(map[string]*member, len(cfg.Agents))
	order := make([]string, 0, len(cfg.Agents))
	for i := range cfg.Agents {
		ac := cfg.Agents[i]
		if ac.ID == "" {
			return nil, types.NewError(types.ErrInvalidConfig, fmt.Sprintf("agent at index %d has no id", i))
		}
		if _, dup := members[ac.ID]; dup {
			return nil, types.NewError(types.ErrInvalidConfig, fmt.Sprintf("duplicate agent id %q", ac.ID))
		}
		members[ac.ID] = newMember(ac, provider)
		order = append(order, ac.ID)
	}

	if cfg.Process == ProcessHierarchical {
		if cfg.ManagerID == "" {
			return nil, types.NewError(types.ErrInvalidConfig, "hierarchical crew requires manager_id")
		}
		if _, ok := members[cfg.ManagerID]; !ok {
			return nil, types.NewError(types.ErrInvalidConfig, fmt.Sprintf("manager_id %q does not reference a configured agent", cfg.ManagerID))
		}
	}

	for i, task := range cfg.Tasks {
		if task.ID == "" {
			cfg.Tasks[i].ID = fmt.Sprintf("task_%d", i+1)
		}
		if task.Agent != "" {
			if _, ok := members[task.Agent]; !ok {
				return nil, types.NewError(types.ErrInvalidConfig, fmt.Sprintf("task %q references unknown agent %q", cfg.Tasks[i].ID, task.Agent))
			}
		}
	}

	return &Crew{
		cfg:     cfg,
		members: members,
		order:   order,
		logger: logger.With(
			zap.String("component", "crew"),
			zap.String("crew", cfg.Name),
		),
		results: make(map[string]TaskResult),
	}, nil
}

// Kickoff executes all tasks under the configured topology. A failing
// individual task is recorded as a failed TaskResult and execution proceeds;
// only a topology-level failure flips Success to false.
func (c *Crew) Kickoff(ctx context.Context) *CrewResult {
	start := time.Now()
	result := &CrewResult{
		CrewID:    c.cfg.ID,
		Success:   true,
		StartTime: start,
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	c.logger.Info("crew kickoff",
		zap.String("process", string(c.cfg.Process)),
		zap.Int("agents", len(c.members)),
		zap.Int("tasks", len(c.cfg.Tasks)),
	)

	err := func() (topoErr error) {
		defer func() {
			if r := recover(); r != nil {
				topoErr = fmt.Errorf("topology panicked: %v", r)
			}
		}()
		switch c.cfg.Process {
		case ProcessSequential:
			return c.runSequential(ctx)
		case ProcessParallel:
			return c.runParallel(ctx)
		case ProcessHierarchical:
			return c.runHierarchical(ctx)
		case ProcessConsensus:
			return c.runConsensus(ctx)
		default:
			return types.NewError(types.ErrInvalidConfig, fmt.Sprintf("unknown process %q", c.cfg.Process))
		}
	}()
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		c.logger.Error("crew execution failed", zap.Error(err))
	}

	result.TaskResults = c.GetResults()
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)
	c.logger.Info("crew kickoff finished",
		zap.Bool("success", result.Success),
		zap.Duration("duration", result.Duration),
	)
	return result
}

// GetResults returns a copy of the accumulated per-task results.
func (c *Crew) GetResults() map[string]TaskResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]TaskResult, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}
	return out
}

// GetConfig returns the crew's configuration.
func (c *Crew) GetConfig() Config {
	return c.cfg
}

// record stores a result and fires the task's callback, in every topology.
func (c *Crew) record(task TaskConfig, result TaskResult) {
	c.mu.Lock()
	c.results[result.TaskID] = result
	c.mu.Unlock()

	if task.Callback != nil {
		task.Callback(result)
	}
}

// memberFor resolves a task's agent, defaulting to the first registered one.
func (c *Crew) memberFor(task TaskConfig) *member {
	if task.Agent != "" {
		return c.members[task.Agent]
	}
	return c.members[c.order[0]]
}
