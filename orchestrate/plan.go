package orchestrate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkflowStep is one unit of planned work. Input values may embed
// {{stepId.path}} tokens resolved against earlier steps' results; steps may
// only reference steps that appear earlier in the plan's list.
type WorkflowStep struct {
	ID                 string         `json:"id"`
	AgentID            string         `json:"agent_id"`
	Action             string         `json:"action"`
	Input              map[string]any `json:"input,omitempty"`
	RequiresHumanInput bool           `json:"requires_human_input,omitempty"`
	HumanInputPrompt   string         `json:"human_input_prompt,omitempty"`
}

// OrchestrationPlan is the linear, variable-wired plan derived from one
// request. It is consumed exactly once by the executor and is not safe to
// re-enter concurrently with a shared results map.
type OrchestrationPlan struct {
	TaskID            string         `json:"task_id"`
	Intent            TaskIntent     `json:"intent"`
	Steps             []WorkflowStep `json:"steps"`
	EstimatedDuration time.Duration  `json:"estimated_duration"`
}

// stepDuration is the constant per-step estimate used for plan duration.
// It is a presentation heuristic, not a measurement.
const stepDuration = 30 * time.Second

// CreateOrchestrationPlan analyzes the request's intent and expands it into
// an ordered step list from the per-intent template. Unknown intents produce
// an empty step list.
func (p *Planner) CreateOrchestrationPlan(ctx context.Context, input string, ictx RequestContext) *OrchestrationPlan {
	intent := p.AnalyzeIntent(ctx, input, ictx)
	steps := stepsForIntent(intent)

	plan := &OrchestrationPlan{
		TaskID:            uuid.NewString(),
		Intent:            intent,
		Steps:             steps,
		EstimatedDuration: time.Duration(len(steps)) * stepDuration,
	}
	p.logger.Info("plan created",
		zap.String("task_id", plan.TaskID),
		zap.String("intent", intent.Intent),
		zap.Int("steps", len(steps)),
	)
	return plan
}

// stepsForIntent dispatches to the static per-intent step template.
func stepsForIntent(intent TaskIntent) []WorkflowStep {
	switch intent.Intent {
	case "social_media_post":
		return socialMediaPostSteps(intent)
	case "email_campaign":
		return emailCampaignSteps()
	case "portfolio_update":
		return portfolioUpdateSteps()
	case "data_report":
		return dataReportSteps()
	case "code_review":
		return codeReviewSteps()
	default:
		return nil
	}
}

func socialMediaPostSteps(intent TaskIntent) []WorkflowStep {
	analyzeInput := map[string]any{}
	if files, ok := intent.Entities["files"]; ok {
		analyzeInput["files"] = files
	}
	return []WorkflowStep{
		{
			ID:      "analyze_images",
			AgentID: "vision_agent",
			Action:  "analyze_images",
			Input:   analyzeInput,
		},
		{
			ID:      "generate_caption",
			AgentID: "writer_agent",
			Action:  "generate_caption",
			Input:   map[string]any{"analysis": "{{analyze_images.output}}"},
		},
		{
			ID:                 "review_caption",
			AgentID:            "writer_agent",
			Action:             "review_caption",
			Input:              map[string]any{"caption": "{{generate_caption.output}}"},
			RequiresHumanInput: true,
			HumanInputPrompt:   "Review the generated caption. Reply with the final caption text.",
		},
		{
			ID:      "generate_hashtags",
			AgentID: "writer_agent",
			Action:  "generate_hashtags",
			Input:   map[string]any{"caption": "{{review_caption}}"},
		},
		{
			ID:      "post_content",
			AgentID: "publisher_agent",
			Action:  "post_content",
			Input: map[string]any{
				"caption":  "{{review_caption}}",
				"hashtags": "{{generate_hashtags.output}}",
			},
		},
	}
}

func emailCampaignSteps() []WorkflowStep {
	return []WorkflowStep{
		{
			ID:      "fetch_contacts",
			AgentID: "crm_agent",
			Action:  "fetch_contacts",
			Input:   map[string]any{"segment": "all_subscribers"},
		},
		{
			ID:      "compose_email",
			AgentID: "writer_agent",
			Action:  "compose_email",
			Input:   map[string]any{"audience": "{{fetch_contacts.output}}"},
		},
		{
			ID:                 "approve_send",
			AgentID:            "writer_agent",
			Action:             "approve_send",
			Input:              map[string]any{"draft": "{{compose_email.output}}"},
			RequiresHumanInput: true,
			HumanInputPrompt:   "Approve sending this campaign? Reply yes to send or provide edits.",
		},
		{
			ID:      "send_campaign",
			AgentID: "mailer_agent",
			Action:  "send_campaign",
			Input: map[string]any{
				"content":    "{{approve_send}}",
				"recipients": "{{fetch_contacts.output}}",
			},
		},
	}
}

func portfolioUpdateSteps() []WorkflowStep {
	return []WorkflowStep{
		{
			ID:      "analyze_portfolio",
			AgentID: "analyst_agent",
			Action:  "analyze_portfolio",
			Input:   map[string]any{},
		},
		{
			ID:      "update_content",
			AgentID: "publisher_agent",
			Action:  "update_content",
			Input:   map[string]any{"analysis": "{{analyze_portfolio.output}}"},
		},
	}
}

func dataReportSteps() []WorkflowStep {
	return []WorkflowStep{
		{
			ID:      "collect_data",
			AgentID: "analyst_agent",
			Action:  "collect_data",
			Input:   map[string]any{},
		},
		{
			ID:      "generate_charts",
			AgentID: "analyst_agent",
			Action:  "generate_charts",
			Input:   map[string]any{"data": "{{collect_data.output}}"},
		},
		{
			ID:      "write_report",
			AgentID: "writer_agent",
			Action:  "write_report",
			Input: map[string]any{
				"data":   "{{collect_data.output}}",
				"charts": "{{generate_charts.output}}",
			},
		},
	}
}

func codeReviewSteps() []WorkflowStep {
	return []WorkflowStep{
		{
			ID:      "fetch_changes",
			AgentID: "code_agent",
			Action:  "fetch_changes",
			Input:   map[string]any{},
		},
		{
			ID:      "run_analysis",
			AgentID: "code_agent",
			Action:  "run_analysis",
			Input:   map[string]any{"diff": "{{fetch_changes.output}}"},
		},
		{
			ID:      "write_review",
			AgentID: "writer_agent",
			Action:  "write_review",
			Input: map[string]any{
				"diff":     "{{fetch_changes.output}}",
				"analysis": "{{run_analysis.output}}",
			},
		},
	}
}
