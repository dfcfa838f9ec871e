package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maestrokit/maestro/internal/metrics"
	"github.com/maestrokit/maestro/types"
)

// Executor runs the tool calls requested in a single LLM turn.
type Executor struct {
	registry *Registry
	logger   *zap.Logger
}

// NewExecutor creates a tool executor backed by the given registry.
func NewExecutor(registry *Registry, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		registry: registry,
		logger:   logger.With(zap.String("component", "tool_executor")),
	}
}

// Execute runs all tool calls concurrently and returns one result per call,
// in request order. Each call fails independently; a failing tool yields a
// result with Error set and a nil Result instead of aborting the turn.
func (e *Executor) Execute(ctx context.Context, calls []types.ToolCall) []types.ToolResult {
	results := make([]types.ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c types.ToolCall) {
			defer wg.Done()
			results[idx] = e.ExecuteOne(ctx, c)
		}(i, call)
	}
	wg.Wait()

	return results
}

// ExecuteOne runs a single tool call.
func (e *Executor) ExecuteOne(ctx context.Context, call types.ToolCall) types.ToolResult {
	start := time.Now()
	result := types.ToolResult{
		ToolCallID: call.ID,
		Name:       call.Name,
	}

	fn, meta, err := e.registry.Get(call.Name)
	if err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		metrics.ToolExecutions.WithLabelValues(call.Name, "not_found").Inc()
		e.logger.Warn("tool not found", zap.String("name", call.Name))
		return result
	}

	if err := e.registry.allow(call.Name); err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		metrics.ToolExecutions.WithLabelValues(call.Name, "rate_limited").Inc()
		return result
	}

	if len(call.Arguments) > 0 {
		var decoded any
		if err := json.Unmarshal(call.Arguments, &decoded); err != nil {
			result.Error = fmt.Sprintf("invalid arguments: %v", err)
			result.Duration = time.Since(start)
			metrics.ToolExecutions.WithLabelValues(call.Name, "invalid_args").Inc()
			return result
		}
		if meta.ParamSchema != nil {
			if err := meta.ParamSchema.Validate(decoded); err != nil {
				result.Error = fmt.Sprintf("validation failed: %v", err)
				result.Duration = time.Since(start)
				metrics.ToolExecutions.WithLabelValues(call.Name, "validation_failed").Inc()
				return result
			}
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, meta.Timeout)
	defer cancel()

	out, err := fn(execCtx, call.Arguments)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		metrics.ToolExecutions.WithLabelValues(call.Name, "error").Inc()
		e.logger.Warn("tool execution failed",
			zap.String("name", call.Name),
			zap.Duration("duration", result.Duration),
			zap.Error(err),
		)
		return result
	}

	result.Result = out
	metrics.ToolExecutions.WithLabelValues(call.Name, "ok").Inc()
	return result
}
