package orchestrate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/maestrokit/maestro/internal/metrics"
)

// StepAgent abstracts the agents a plan dispatches to. The agent package's
// Agent satisfies it; hosts may bridge their own implementations.
type StepAgent interface {
	Execute(ctx context.Context, action string, input map[string]any) (any, error)
}

// HumanInputFunc is awaited for steps that require human input. Its return
// value becomes the step's result; no agent is invoked for such steps.
// It may suspend indefinitely; callers wanting bounded waiting wrap it.
type HumanInputFunc func(ctx context.Context, step WorkflowStep) (any, error)

// StepCompleteFunc fires after every step, including human-input and error
// outcomes.
type StepCompleteFunc func(step WorkflowStep, result any)

// ExecuteOptions carries the optional per-execution callbacks.
type ExecuteOptions struct {
	OnHumanInputRequired HumanInputFunc
	OnStepComplete       StepCompleteFunc
}

// Executor runs orchestration plans strictly sequentially, resolving
// variable references between steps.
type Executor struct {
	agents map[string]StepAgent
	logger *zap.Logger
}

// NewExecutor creates a plan executor over the given agent set.
func NewExecutor(agents map[string]StepAgent, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		agents: agents,
		logger: logger.With(zap.String("component", "plan_executor")),
	}
}

// ExecutePlan runs the plan's steps in list order. Steps never run
// concurrently or out of order. A step error is recorded as that step's
// result and execution continues; the returned map always holds exactly one
// entry per step id. The results map is owned exclusively by this call.
func (e *Executor) ExecutePlan(ctx context.Context, plan *OrchestrationPlan, opts ExecuteOptions) map[string]any {
	results := make(map[string]any, len(plan.Steps))

	for _, step := range plan.Steps {
		var result any

		switch {
		case step.RequiresHumanInput && opts.OnHumanInputRequired != nil:
			value, err := opts.OnHumanInputRequired(ctx, step)
			if err != nil {
				result = map[string]any{"error": err.Error()}
				metrics.PlanSteps.WithLabelValues("error").Inc()
			} else {
				result = value
				metrics.PlanSteps.WithLabelValues("human_input").Inc()
			}
			e.logger.Info("human input step resolved",
				zap.String("task_id", plan.TaskID),
				zap.String("step", step.ID),
			)
		default:
			result = e.runStep(ctx, plan.TaskID, step, results)
		}

		results[step.ID] = result
		if opts.OnStepComplete != nil {
			opts.OnStepComplete(step, result)
		}
	}

	return results
}

func (e *Executor) runStep(ctx context.Context, taskID string, step WorkflowStep, results map[string]any) any {
	input := resolveInput(step.Input, results)

	agent, ok := e.agents[step.AgentID]
	if !ok {
		e.logger.Warn("step references unknown agent",
			zap.String("task_id", taskID),
			zap.String("step", step.ID),
			zap.String("agent_id", step.AgentID),
		)
		metrics.PlanSteps.WithLabelValues("error").Inc()
		return map[string]any{"error": fmt.Sprintf("agent %s not found", step.AgentID)}
	}

	out, err := agent.Execute(ctx, step.Action, input)
	if err != nil {
		e.logger.Warn("step failed, continuing",
			zap.String("task_id", taskID),
			zap.String("step", step.ID),
			zap.Error(err),
		)
		metrics.PlanSteps.WithLabelValues("error").Inc()
		return map[string]any{"error": err.Error()}
	}

	metrics.PlanSteps.WithLabelValues("ok").Inc()
	return out
}

var varPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// resolveInput substitutes every {{path}} token in the step's input with a
// dotted lookup into the accumulated results. A string that is exactly one
// token takes the looked-up value with its type intact; tokens embedded in
// longer strings are stringified in place. An unresolvable path leaves the
// literal token unchanged — a documented no-op, not an error.
func resolveInput(input map[string]any, results map[string]any) map[string]any {
	resolved := make(map[string]any, len(input))
	for key, value := range input {
		resolved[key] = resolveValue(value, results)
	}
	return resolved
}

func resolveValue(value any, results map[string]any) any {
	switch v := value.(type) {
	case string:
		return resolveString(v, results)
	case map[string]any:
		return resolveInput(v, results)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = resolveValue(item, results)
		}
		return out
	default:
		return value
	}
}

func resolveString(s string, results map[string]any) any {
	// A whole-string token keeps the referenced value's type.
	if m := varPattern.FindStringSubmatch(s); m != nil && m[0] == s {
		if value, ok := lookupPath(results, m[1]); ok {
			return value
		}
		return s
	}

	return varPattern.ReplaceAllStringFunc(s, func(token string) string {
		path := token[2 : len(token)-2]
		if value, ok := lookupPath(results, path); ok {
			return fmt.Sprintf("%v", value)
		}
		return token
	})
}

// lookupPath walks a dotted path (stepId.field.subfield) through the
// results map.
func lookupPath(results map[string]any, path string) (any, bool) {
	parts := strings.Split(strings.TrimSpace(path), ".")
	var current any = results
	for _, part := range parts {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
