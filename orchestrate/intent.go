// Package orchestrate turns natural-language requests into linear,
// variable-wired execution plans and runs them: intent analysis (LLM-assisted
// with a deterministic fallback), per-intent step templates, and a strictly
// sequential plan executor with human-approval pauses.
package orchestrate

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/maestrokit/maestro/llm"
	"github.com/maestrokit/maestro/types"
)

// TaskIntent is the classified intent of a user request. Ephemeral: created
// per request, never persisted by this package.
type TaskIntent struct {
	Intent            string         `json:"intent"`
	Entities          map[string]any `json:"entities,omitempty"`
	Confidence        float64        `json:"confidence"`
	RequiredTools     []string       `json:"required_tools,omitempty"`
	SuggestedWorkflow string         `json:"suggested_workflow,omitempty"`
}

// RequestContext carries request metadata that informs intent analysis.
type RequestContext struct {
	Files        []string       `json:"files,omitempty"`
	HistoryTurns int            `json:"history_turns,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Planner analyzes intent and expands it into orchestration plans.
// The provider is optional: when nil, analysis goes straight to the
// deterministic keyword classifier.
type Planner struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewPlanner creates a planner. provider may be nil.
func NewPlanner(provider llm.Provider, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		provider: provider,
		logger:   logger.With(zap.String("component", "planner")),
	}
}

const intentPrompt = `Analyze the user request below and reply with a single JSON object:
{"intent": "<snake_case_intent>", "entities": {...}, "required_tools": [...], "confidence": <0..1>}

Known intents: social_media_post, email_campaign, portfolio_update, data_report, code_review, general_query.

User request:
%s`

// decodedIntent is the wire shape of the model-assisted structured decode.
type decodedIntent struct {
	Intent        string         `json:"intent"`
	Entities      map[string]any `json:"entities"`
	RequiredTools []string       `json:"required_tools"`
	Confidence    float64        `json:"confidence"`
}

// AnalyzeIntent first attempts a model-assisted structured decode; on any
// failure (provider error, no JSON found, malformed JSON) it falls back to
// the deterministic keyword classifier. It always produces an intent.
func (p *Planner) AnalyzeIntent(ctx context.Context, input string, ictx RequestContext) TaskIntent {
	if p.provider != nil {
		if intent, ok := p.decodeWithModel(ctx, input); ok {
			return intent
		}
	}
	return classifyByKeywords(input, ictx)
}

func (p *Planner) decodeWithModel(ctx context.Context, input string) (TaskIntent, bool) {
	resp, err := p.provider.Chat(ctx, &llm.ChatRequest{
		Messages: []types.Message{
			types.NewSystemMessage("You are an intent classifier. Reply with JSON only."),
			types.NewUserMessage(strings.Replace(intentPrompt, "%s", input, 1)),
		},
		Temperature: 0,
	})
	if err != nil {
		p.logger.Debug("model-assisted intent decode failed, using keyword classifier", zap.Error(err))
		return TaskIntent{}, false
	}

	block, ok := extractJSONBlock(resp.Content)
	if !ok {
		p.logger.Debug("no JSON block in intent reply, using keyword classifier")
		return TaskIntent{}, false
	}

	var decoded decodedIntent
	if err := json.Unmarshal([]byte(block), &decoded); err != nil || decoded.Intent == "" {
		p.logger.Debug("malformed intent JSON, using keyword classifier", zap.Error(err))
		return TaskIntent{}, false
	}

	return TaskIntent{
		Intent:        decoded.Intent,
		Entities:      decoded.Entities,
		Confidence:    decoded.Confidence,
		RequiredTools: decoded.RequiredTools,
	}, true
}

// extractJSONBlock returns the first balanced {...} block in the text.
// Brace matching tracks string literals so braces inside values do not
// unbalance the scan.
func extractJSONBlock(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// intentRule is one deterministic classifier entry. Rules are checked in
// order; the first rule with a keyword hit wins.
type intentRule struct {
	intent        string
	keywords      []string
	requiredTools []string
	confidence    float64
}

var intentRules = []intentRule{
	{
		intent:        "social_media_post",
		keywords:      []string{"post", "share", "publish", "instagram", "tweet", "social media"},
		requiredTools: []string{"image_analyzer", "caption_generator", "hashtag_generator", "social_media_poster"},
		confidence:    0.8,
	},
	{
		intent:        "email_campaign",
		keywords:      []string{"email", "campaign", "newsletter", "subscribers", "mailing list"},
		requiredTools: []string{"contact_manager", "email_composer", "email_sender"},
		confidence:    0.8,
	},
	{
		intent:        "portfolio_update",
		keywords:      []string{"portfolio", "my website", "my site", "showcase"},
		requiredTools: []string{"portfolio_analyzer", "content_updater"},
		confidence:    0.7,
	},
	{
		intent:        "data_report",
		keywords:      []string{"report", "analytics", "dashboard", "metrics"},
		requiredTools: []string{"data_collector", "chart_generator", "report_writer"},
		confidence:    0.7,
	},
	{
		intent:        "code_review",
		keywords:      []string{"review", "pull request", "merge request", "code change"},
		requiredTools: []string{"diff_fetcher", "static_analyzer", "review_writer"},
		confidence:    0.7,
	},
}

// classifyByKeywords is the guaranteed deterministic fallback. Anything
// unmatched is a general query at 0.5 confidence with no required tools.
func classifyByKeywords(input string, ictx RequestContext) TaskIntent {
	lower := strings.ToLower(input)

	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				entities := map[string]any{}
				if len(ictx.Files) > 0 {
					entities["files"] = ictx.Files
				}
				return TaskIntent{
					Intent:        rule.intent,
					Entities:      entities,
					Confidence:    rule.confidence,
					RequiredTools: rule.requiredTools,
				}
			}
		}
	}

	return TaskIntent{
		Intent:        "general_query",
		Entities:      map[string]any{},
		Confidence:    0.5,
		RequiredTools: []string{},
	}
}
