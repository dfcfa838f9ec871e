package crew

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maestrokit/maestro/types"
)

// runSequential executes tasks in list order. Each completed task's output
// joins a growing shared context passed into every later task's prompt.
func (c *Crew) runSequential(ctx context.Context) error {
	shared := make(map[string]any)

	for _, task := range c.cfg.Tasks {
		result := c.runTask(ctx, task, shared)
		c.record(task, result)
		if result.Status == StatusCompleted {
			shared[task.ID] = result.Output
		}
	}
	return nil
}

// runParallel launches all tasks concurrently. No task sees another's
// output; all must settle before the topology returns.
func (c *Crew) runParallel(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, task := range c.cfg.Tasks {
		task := task
		g.Go(func() error {
			result := c.runTask(gctx, task, nil)
			c.record(task, result)
			// Task failures are recorded, never propagated.
			return nil
		})
	}
	return g.Wait()
}

// planningResultID keys the manager's planning artifact in the results map.
const planningResultID = "planning"

// runHierarchical asks the manager for a free-text plan covering all task
// descriptions, records it as a planning TaskResult, then runs the
// sequential algorithm. The manager's plan is advisory: tasks keep their
// configured assignments rather than being reassigned from the plan text.
func (c *Crew) runHierarchical(ctx context.Context) error {
	manager, ok := c.members[c.cfg.ManagerID]
	if !ok {
		return types.NewError(types.ErrAgentNotFound, fmt.Sprintf("manager %q not found", c.cfg.ManagerID))
	}

	var sb strings.Builder
	sb.WriteString("Create an execution plan for the following tasks. For each task, note the order it should run in and what to watch out for.\n\n")
	for i, task := range c.cfg.Tasks {
		fmt.Fprintf(&sb, "%d. %s (expected: %s)\n", i+1, task.Description, task.ExpectedOutput)
	}

	planTask := TaskConfig{ID: planningResultID, Description: sb.String()}
	start := time.Now()
	planText, tokens, err := manager.executeTask(ctx, planTask, nil)
	if err != nil {
		c.logger.Warn("manager planning failed, proceeding without plan", zap.Error(err))
		c.record(planTask, failedResult(planTask, manager.cfg.ID, start, err))
	} else {
		c.record(planTask, completedResult(planTask, manager.cfg.ID, planText, tokens, start))
	}

	return c.runSequential(ctx)
}

// runConsensus has every registered agent independently execute each task.
// The selected result is the completed one with the longest output; strict
// comparison means the first-seen result wins ties. Length is a crude proxy
// for thoroughness, not a semantic judgment.
func (c *Crew) runConsensus(ctx context.Context) error {
	for _, task := range c.cfg.Tasks {
		candidates := make([]TaskResult, len(c.order))

		g, gctx := errgroup.WithContext(ctx)
		for i, agentID := range c.order {
			i, agentID := i, agentID
			m := c.members[agentID]
			g.Go(func() error {
				start := time.Now()
				output, tokens, err := m.executeTask(gctx, task, nil)
				if err != nil {
					candidates[i] = failedResult(task, agentID, start, err)
				} else {
					candidates[i] = completedResult(task, agentID, output, tokens, start)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		var selected *TaskResult
		for i := range candidates {
			r := &candidates[i]
			if r.Status != StatusCompleted {
				continue
			}
			if selected == nil || len(r.Output) > len(selected.Output) {
				selected = r
			}
		}

		if selected == nil {
			// Every agent failed; record the first failure for the task.
			c.record(task, candidates[0])
			continue
		}
		c.logger.Debug("consensus selected",
			zap.String("task", task.ID),
			zap.String("agent", selected.AgentID),
			zap.Int("output_len", len(selected.Output)),
		)
		c.record(task, *selected)
	}
	return nil
}

// runTask executes one task on its resolved member, retrying failures up to
// the crew's MaxRetries. Cancellation surfaces as a cancelled result.
func (c *Crew) runTask(ctx context.Context, task TaskConfig, shared map[string]any) TaskResult {
	m := c.memberFor(task)
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			result := failedResult(task, m.cfg.ID, start, ctx.Err())
			result.Status = StatusCancelled
			return result
		}

		output, tokens, err := m.executeTask(ctx, task, shared)
		if err == nil {
			return completedResult(task, m.cfg.ID, output, tokens, start)
		}
		lastErr = err
		if attempt < c.cfg.MaxRetries {
			c.logger.Warn("task attempt failed, retrying",
				zap.String("task", task.ID),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
		}
	}
	return failedResult(task, m.cfg.ID, start, lastErr)
}
