package router

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Router scores an injected model-capability registry against a task
// analysis. It is purely advisory: it never executes anything and never
// fails to produce a decision.
type Router struct {
	registry []ModelCapability
	logger   *zap.Logger
}

// NewRouter creates a router over the given capability registry.
// A nil or empty registry falls back to DefaultModelRegistry.
func NewRouter(registry []ModelCapability, logger *zap.Logger) *Router {
	if len(registry) == 0 {
		registry = DefaultModelRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		registry: registry,
		logger:   logger.With(zap.String("component", "router")),
	}
}

// Constraints are the hard filters a user imposes on routing.
type Constraints struct {
	AvailableProviders []string // empty = all providers available
	MaxCost            float64  // 0 = no ceiling, 0-10 relative scale
	MinQuality         int      // 0 = no floor
}

// RouteDecision is the advisory routing outcome.
type RouteDecision struct {
	Provider     string      `json:"provider"`
	Model        string      `json:"model"`
	Reasoning    string      `json:"reasoning"`
	Confidence   float64     `json:"confidence"`
	Alternatives []Candidate `json:"alternatives,omitempty"` // at most 3
}

// Candidate is a scored registry entry.
type Candidate struct {
	Provider string  `json:"provider"`
	Model    string  `json:"model"`
	Score    float64 `json:"score"`
}

// Route filters the registry by hard constraints, scores the survivors, and
// returns the winner. When zero candidates survive filtering, the filters
// are dropped and the full registry is scored instead: a decision is always
// produced, never an error.
func (r *Router) Route(analysis TaskAnalysis, constraints Constraints) RouteDecision {
	candidates := r.filter(analysis, constraints)
	if len(candidates) == 0 {
		r.logger.Debug("no candidates survived filtering, dropping filters")
		candidates = r.registry
	}

	bestIdx := 0
	bestScore := -1.0
	scores := make([]float64, len(candidates))
	for i, m := range candidates {
		scores[i] = scoreModel(m, analysis)
		// Strict > keeps registry order as the tiebreak.
		if scores[i] > bestScore {
			bestScore = scores[i]
			bestIdx = i
		}
	}

	winner := candidates[bestIdx]
	decision := RouteDecision{
		Provider:   winner.Provider,
		Model:      winner.Model,
		Reasoning:  buildReasoning(winner, analysis),
		Confidence: confidence(bestScore),
	}

	for i, m := range candidates {
		if i == bestIdx {
			continue
		}
		decision.Alternatives = append(decision.Alternatives, Candidate{
			Provider: m.Provider, Model: m.Model, Score: scores[i],
		})
	}
	sortCandidates(decision.Alternatives)
	if len(decision.Alternatives) > 3 {
		decision.Alternatives = decision.Alternatives[:3]
	}

	r.logger.Debug("routed task",
		zap.String("category", string(analysis.Category)),
		zap.String("provider", winner.Provider),
		zap.String("model", winner.Model),
		zap.Float64("score", bestScore),
	)
	return decision
}

// GetRecommendations returns the top three scored candidates for an
// analysis without applying any hard constraints.
func (r *Router) GetRecommendations(analysis TaskAnalysis) []Candidate {
	out := make([]Candidate, 0, len(r.registry))
	for _, m := range r.registry {
		out = append(out, Candidate{Provider: m.Provider, Model: m.Model, Score: scoreModel(m, analysis)})
	}
	sortCandidates(out)
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

func (r *Router) filter(analysis TaskAnalysis, constraints Constraints) []ModelCapability {
	var out []ModelCapability
	for _, m := range r.registry {
		if len(constraints.AvailableProviders) > 0 && !contains(constraints.AvailableProviders, m.Provider) {
			continue
		}
		if analysis.RequiresVision && !m.SupportsVision {
			continue
		}
		if analysis.RequiresFunctions && !m.SupportsFunctions {
			continue
		}
		if m.ContextWindow < analysis.ContextSize {
			continue
		}
		if constraints.MaxCost > 0 && m.Cost > constraints.MaxCost {
			continue
		}
		if constraints.MinQuality > 0 && m.Quality < constraints.MinQuality {
			continue
		}
		out = append(out, m)
	}
	return out
}

// scoreModel implements the routing score:
//
//	+40                          category in strengths
//	+quality/10 * 30             always
//	+speed/10 * 15 (else 5)      when speed is prioritized
//	+(10-cost)/10 * 15 (else 5)  when cost is prioritized
//	+10                          complexity >= 7 and quality >= 8
func scoreModel(m ModelCapability, analysis TaskAnalysis) float64 {
	score := 0.0
	if m.hasStrength(analysis.Category) {
		score += 40
	}
	score += float64(m.Quality) / 10 * 30

	speedWeight := 5.0
	if analysis.PrioritySpeed {
		speedWeight = 15
	}
	score += float64(m.Speed) / 10 * speedWeight

	costWeight := 5.0
	if analysis.PriorityCost {
		costWeight = 15
	}
	score += (10 - m.Cost) / 10 * costWeight

	if analysis.Complexity >= 7 && m.Quality >= 8 {
		score += 10
	}
	return score
}

// buildReasoning renders a sentence listing the scoring contributions that
// fired for the winning model.
func buildReasoning(m ModelCapability, analysis TaskAnalysis) string {
	reasons := make([]string, 0, 5)
	if m.hasStrength(analysis.Category) {
		reasons = append(reasons, fmt.Sprintf("strong at %s tasks", analysis.Category))
	}
	if analysis.PrioritySpeed && m.Speed >= 7 {
		reasons = append(reasons, "fast response times")
	}
	if analysis.PriorityCost && m.Cost <= 3 {
		reasons = append(reasons, "cost-effective")
	}
	if m.Quality >= 8 {
		reasons = append(reasons, "high output quality")
	}
	if m.Local {
		reasons = append(reasons, "runs locally at zero cost")
	}
	if analysis.Complexity >= 7 && m.Quality >= 8 {
		reasons = append(reasons, "handles complex tasks well")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "best overall fit for the task profile")
	}
	return fmt.Sprintf("Selected %s/%s: %s.", m.Provider, m.Model, strings.Join(reasons, ", "))
}

// confidence maps a raw score to 0..1. The score ceiling is 100
// (40 strength + 30 quality + 15 speed + 15 cost at full weight, +10 bonus
// overshoots slightly and is clamped).
func confidence(score float64) float64 {
	c := score / 100
	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

func sortCandidates(cs []Candidate) {
	// Insertion sort keeps equal-score candidates in registry order.
	for i := 1; i < len(cs); i++ {
		for j := i; j > 0 && cs[j].Score > cs[j-1].Score; j-- {
			cs[j], cs[j-1] = cs[j-1], cs[j]
		}
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
