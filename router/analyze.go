package router

import (
	"strings"
)

// TaskContext carries caller-supplied hints about the task: conversation
// depth, attachments, and user routing preferences.
type TaskContext struct {
	HistoryTurns  int
	HasImages     bool
	NeedsTools    bool
	PreferSpeed   bool
	PreferCost    bool
	PreferQuality bool
}

// TaskAnalysis is the category/complexity profile of a task.
type TaskAnalysis struct {
	Category          Category `json:"category"`
	Complexity        int      `json:"complexity"` // 1-10
	RequiresVision    bool     `json:"requires_vision"`
	RequiresFunctions bool     `json:"requires_functions"`
	ContextSize       int      `json:"context_size"`
	PrioritySpeed     bool     `json:"priority_speed"`
	PriorityCost      bool     `json:"priority_cost"`
	PriorityQuality   bool     `json:"priority_quality"`
}

// categoryPatterns are checked in order; the first category with a matching
// keyword wins. Code is checked before data analysis before creative writing
// before research before math before summarization before classification;
// nothing matching is conversational.
var categoryPatterns = []struct {
	category Category
	keywords []string
}{
	{CategoryCode, []string{"code", "program", "function", "debug", "refactor", "compile", "script", "implement", "bug", "api", "sql"}},
	{CategoryDataAnalysis, []string{"analyze data", "dataset", "statistics", "chart", "graph", "trend", "csv", "spreadsheet", "metric"}},
	{CategoryCreativeWriting, []string{"story", "poem", "write a", "creative", "fiction", "novel", "lyrics", "screenplay"}},
	{CategoryResearch, []string{"research", "investigate", "compare", "sources", "literature", "study", "evidence"}},
	{CategoryMath, []string{"calculate", "solve", "equation", "math", "integral", "derivative", "probability", "theorem"}},
	{CategorySummarization, []string{"summarize", "summary", "tldr", "key points", "condense", "brief overview"}},
	{CategoryClassification, []string{"classify", "categorize", "label", "which type", "sentiment", "tag this"}},
}

var complexityMarkers = []string{
	"step by step", "detailed", "comprehensive", "architecture", "multi",
	"complex", "thorough", "in depth", "end to end",
}

var visionMarkers = []string{"image", "photo", "picture", "screenshot", "diagram", "look at this"}

var functionMarkers = []string{"search the web", "send an email", "post to", "look up", "fetch", "schedule", "use the tool"}

// AnalyzeTask profiles the input text into a category/complexity analysis.
// Vision and function needs derive from context flags first, keyword
// heuristics second. ContextSize is the input length plus 500 per history
// turn.
func (r *Router) AnalyzeTask(input string, tctx TaskContext) TaskAnalysis {
	lower := strings.ToLower(input)

	category := CategoryConversational
	for _, p := range categoryPatterns {
		if containsAny(lower, p.keywords) {
			category = p.category
			break
		}
	}

	complexity := 3 + len(input)/400
	for _, marker := range complexityMarkers {
		if strings.Contains(lower, marker) {
			complexity += 2
		}
	}
	if complexity < 1 {
		complexity = 1
	}
	if complexity > 10 {
		complexity = 10
	}

	return TaskAnalysis{
		Category:          category,
		Complexity:        complexity,
		RequiresVision:    tctx.HasImages || containsAny(lower, visionMarkers),
		RequiresFunctions: tctx.NeedsTools || containsAny(lower, functionMarkers),
		ContextSize:       len(input) + 500*tctx.HistoryTurns,
		PrioritySpeed:     tctx.PreferSpeed,
		PriorityCost:      tctx.PreferCost,
		PriorityQuality:   tctx.PreferQuality,
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
