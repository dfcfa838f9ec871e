package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/maestrokit/maestro/internal/metrics"
	"github.com/maestrokit/maestro/types"
)

// Attempt records one provider tried by the chain and why it did not serve.
type Attempt struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
}

// ExhaustedError is returned when every provider in the chain was
// quota-blocked or errored. It enumerates every attempted provider.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Provider, a.Reason))
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

// chainEntry pairs a provider config with its constructed transport.
type chainEntry struct {
	cfg      ProviderConfig
	provider Provider
}

// FallbackChain executes a single completion request against the first
// eligible, quota-passing provider in ascending-priority order, advancing on
// failure. Each provider is tried at most once per Complete call; callers
// wanting transient-error retry layer it around the chain, not inside it.
type FallbackChain struct {
	entries     []chainEntry
	quota       QuotaTracker
	minPriority int
	logger      *zap.Logger
}

// NewFallbackChain builds transports for the given configs and orders them
// by ascending priority. Equal priorities keep their list order.
func NewFallbackChain(configs []ProviderConfig, quota QuotaTracker, logger *zap.Logger) (*FallbackChain, error) {
	if len(configs) == 0 {
		return nil, types.NewError(types.ErrInvalidConfig, "fallback chain requires at least one provider")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "fallback_chain"))

	entries := make([]chainEntry, 0, len(configs))
	for _, cfg := range configs {
		p, err := buildTransport(cfg, logger)
		if err != nil {
			return nil, err
		}
		entries = append(entries, chainEntry{cfg: cfg, provider: p})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].cfg.Priority < entries[j].cfg.Priority
	})

	return &FallbackChain{
		entries:     entries,
		quota:       quota,
		minPriority: entries[0].cfg.Priority,
		logger:      logger,
	}, nil
}

// NewFallbackChainWithProviders wires pre-built providers into the chain,
// bypassing transport construction. Used by hosts with custom transports
// and by tests.
func NewFallbackChainWithProviders(configs []ProviderConfig, providers []Provider, quota QuotaTracker, logger *zap.Logger) (*FallbackChain, error) {
	if len(configs) == 0 || len(configs) != len(providers) {
		return nil, types.NewError(types.ErrInvalidConfig, "configs and providers must be non-empty and equal length")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	entries := make([]chainEntry, 0, len(configs))
	for i, cfg := range configs {
		entries = append(entries, chainEntry{cfg: cfg, provider: providers[i]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].cfg.Priority < entries[j].cfg.Priority
	})
	return &FallbackChain{
		entries:     entries,
		quota:       quota,
		minPriority: entries[0].cfg.Priority,
		logger:      logger.With(zap.String("component", "fallback_chain")),
	}, nil
}

func buildTransport(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case ProviderTypeAPI:
		return NewAPIProvider(cfg, logger), nil
	case ProviderTypeLocal:
		return NewLocalProvider(cfg, logger), nil
	case ProviderTypeHuggingFace:
		return NewHFProvider(cfg, logger), nil
	default:
		return nil, types.NewError(types.ErrInvalidConfig, fmt.Sprintf("unknown provider type %q for %s", cfg.Type, cfg.Name))
	}
}

// Providers returns the chain's configs in traversal order.
func (c *FallbackChain) Providers() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.cfg)
	}
	return out
}

// Complete runs the request against the chain. Hosted api-type providers are
// gated on the quota tracker and skipped without a network call when blocked;
// local and huggingface providers are always attempted. The first success
// wins; exhaustion returns an ExhaustedError naming every attempt.
func (c *FallbackChain) Complete(ctx context.Context, userID string, req *ChatRequest) (*ChatResponse, error) {
	attempts := make([]Attempt, 0, len(c.entries))

	for _, entry := range c.entries {
		cfg := entry.cfg

		if cfg.Type == ProviderTypeAPI && c.quota != nil {
			decision, err := c.quota.CheckQuota(ctx, userID, cfg.Name)
			if err != nil {
				c.logger.Warn("quota check errored, skipping provider",
					zap.String("provider", cfg.Name), zap.Error(err))
				attempts = append(attempts, Attempt{Provider: cfg.Name, Reason: "quota check failed: " + err.Error()})
				metrics.ProviderRequests.WithLabelValues(cfg.Name, "quota_blocked").Inc()
				continue
			}
			if !decision.Allowed {
				reason := decision.Reason
				if reason == "" {
					reason = "quota exceeded"
				}
				c.logger.Info("provider quota-blocked",
					zap.String("provider", cfg.Name), zap.String("reason", reason))
				attempts = append(attempts, Attempt{Provider: cfg.Name, Reason: reason})
				metrics.ProviderRequests.WithLabelValues(cfg.Name, "quota_blocked").Inc()
				continue
			}
		}

		start := time.Now()
		resp, err := entry.provider.Chat(ctx, req)
		metrics.ProviderRequestDuration.WithLabelValues(cfg.Name).Observe(time.Since(start).Seconds())
		if err != nil {
			c.logger.Warn("provider failed, advancing",
				zap.String("provider", cfg.Name),
				zap.Duration("latency", time.Since(start)),
				zap.Error(err),
			)
			attempts = append(attempts, Attempt{Provider: cfg.Name, Reason: err.Error()})
			metrics.ProviderRequests.WithLabelValues(cfg.Name, "error").Inc()
			continue
		}

		if resp.Usage.TotalTokens == 0 {
			// Backfill an estimate so accounting stays live for backends
			// that omit usage counters.
			resp.Usage.PromptTokens = CountTokens(req.Messages)
			resp.Usage.CompletionTokens = CountText(resp.Content)
			resp.Usage.TotalTokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens
		}
		resp.Cost = c.EstimateCost(cfg.Name, resp.Usage.TotalTokens)
		resp.FallbackUsed = cfg.Priority != c.minPriority

		if c.quota != nil {
			record := UsageRecord{
				Provider:         cfg.Name,
				Model:            resp.Model,
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
				Cost:             resp.Cost,
				Timestamp:        time.Now(),
			}
			if err := c.quota.TrackUsage(ctx, userID, record); err != nil {
				c.logger.Warn("usage tracking failed", zap.String("provider", cfg.Name), zap.Error(err))
			}
		}

		metrics.ProviderRequests.WithLabelValues(cfg.Name, "ok").Inc()
		metrics.TokensUsed.WithLabelValues(cfg.Name).Add(float64(resp.Usage.TotalTokens))
		if resp.FallbackUsed {
			metrics.ProviderFallbacks.Inc()
			c.logger.Info("request served by fallback provider",
				zap.String("provider", cfg.Name), zap.Int("priority", cfg.Priority))
		}
		return resp, nil
	}

	return nil, &ExhaustedError{Attempts: attempts}
}

// BoundChain adapts the chain to the Provider interface for a fixed user,
// so agents can run their conversation loop over the whole chain instead of
// a single backend.
type BoundChain struct {
	chain  *FallbackChain
	userID string
}

// Bind returns a Provider view of the chain scoped to one user.
func (c *FallbackChain) Bind(userID string) *BoundChain {
	return &BoundChain{chain: c, userID: userID}
}

func (b *BoundChain) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return b.chain.Complete(ctx, b.userID, req)
}

func (b *BoundChain) Name() string { return "fallback_chain" }

// EstimateCost derives the USD cost of a token count on the named provider.
// Unknown providers cost zero.
func (c *FallbackChain) EstimateCost(providerName string, tokens int) float64 {
	for _, e := range c.entries {
		if e.cfg.Name == providerName {
			return float64(tokens) / 1_000_000 * e.cfg.CostPerMTok
		}
	}
	return 0
}

// GetRecommendedProvider returns the first provider in priority order that
// is not quota-blocked for the user.
func (c *FallbackChain) GetRecommendedProvider(ctx context.Context, userID string) (ProviderConfig, error) {
	for _, e := range c.entries {
		if e.cfg.Type == ProviderTypeAPI && c.quota != nil {
			decision, err := c.quota.CheckQuota(ctx, userID, e.cfg.Name)
			if err != nil || !decision.Allowed {
				continue
			}
		}
		return e.cfg, nil
	}
	return ProviderConfig{}, types.NewError(types.ErrProviderUnavailable, "no provider available for user")
}

// taskModelPreferences maps coarse task types to ordered lists of preferred
// local model names. Cost-optimized selection prefers running these task
// types on free local backends before touching metered APIs.
var taskModelPreferences = map[string][]string{
	"code":         {"qwen2.5-coder", "deepseek-coder-v2", "codellama"},
	"chat":         {"llama3.2", "qwen2.5", "mistral"},
	"reasoning":    {"deepseek-r1", "qwq", "llama3.1:70b"},
	"complex":      {"llama3.1:70b", "qwen2.5:72b"},
	"fast":         {"llama3.2:1b", "qwen2.5:0.5b", "phi3"},
	"vision":       {"llama3.2-vision", "llava"},
	"multilingual": {"qwen2.5", "aya"},
}

// SelectModelForTask picks a provider for a coarse task type, preferring the
// first chain entry whose model matches the task's preferred local models.
// Falls back to the general recommended-provider lookup when no local entry
// matches or the task type is unknown.
func (c *FallbackChain) SelectModelForTask(ctx context.Context, userID, taskType string) (ProviderConfig, error) {
	preferred, ok := taskModelPreferences[strings.ToLower(taskType)]
	if ok {
		for _, name := range preferred {
			for _, e := range c.entries {
				if e.cfg.Type == ProviderTypeLocal && strings.EqualFold(e.cfg.Model, name) {
					return e.cfg, nil
				}
			}
		}
	}
	return c.GetRecommendedProvider(ctx, userID)
}
