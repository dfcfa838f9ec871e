// Package maestro provides a top-level convenience entry point for wiring the
// provider fallback chain, router, and agents together from a single config.
//
// Usage:
//
//	import "github.com/maestrokit/maestro"
//
//	m, err := maestro.New(maestro.WithConfigFile("maestro.yaml"))
//	a, err := m.Agent(agent.Config{Name: "helper"})
//
// The individual packages (llm, router, agent, orchestrate, crew) remain fully
// usable on their own; this package only saves boilerplate.
package maestro

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/maestrokit/maestro/agent"
	"github.com/maestrokit/maestro/config"
	"github.com/maestrokit/maestro/crew"
	"github.com/maestrokit/maestro/llm"
	"github.com/maestrokit/maestro/orchestrate"
	"github.com/maestrokit/maestro/router"
	"github.com/maestrokit/maestro/tools"
)

// Maestro bundles the shared runtime pieces built from one configuration.
type Maestro struct {
	cfg    *config.Config
	logger *zap.Logger
	chain  *llm.FallbackChain
	router *router.Router
	quota  llm.QuotaTracker
	tools  *tools.Registry
}

// Option configures the runtime created by [New].
type Option func(*options)

type options struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
	quota      llm.QuotaTracker
}

// WithConfigFile loads configuration from a YAML file.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithConfig supplies a pre-built configuration, skipping file loading.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithQuotaTracker replaces the default in-memory quota tracker.
func WithQuotaTracker(q llm.QuotaTracker) Option {
	return func(o *options) { o.quota = q }
}

// New builds the runtime: loads config, constructs the fallback chain over
// the configured providers, and prepares the router and tool registry.
func New(opts ...Option) (*Maestro, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	if cfg == nil {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	logger := o.logger
	if logger == nil {
		logger = buildLogger(cfg.Log)
	}

	quota := o.quota
	if quota == nil {
		quota = llm.NewMemoryQuotaTracker(cfg.Quota.DailyTokenLimit)
	}

	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	chain, err := llm.NewFallbackChain(cfg.Providers, quota, logger)
	if err != nil {
		return nil, err
	}

	registry := cfg.Models
	if len(registry) == 0 {
		registry = router.DefaultModelRegistry()
	}

	return &Maestro{
		cfg:    cfg,
		logger: logger,
		chain:  chain,
		router: router.NewRouter(registry, logger),
		quota:  quota,
		tools:  tools.NewRegistry(logger),
	}, nil
}

func buildLogger(lc config.LogConfig) *zap.Logger {
	zc := zap.NewProductionConfig()
	if lc.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	if lc.Level != "" {
		if lvl, err := zap.ParseAtomicLevel(lc.Level); err == nil {
			zc.Level = lvl
		}
	}
	logger, err := zc.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// Chain returns the provider fallback chain.
func (m *Maestro) Chain() *llm.FallbackChain { return m.chain }

// Router returns the capability-based model router.
func (m *Maestro) Router() *router.Router { return m.router }

// Tools returns the shared tool registry.
func (m *Maestro) Tools() *tools.Registry { return m.tools }

// Quota returns the quota tracker the chain consults.
func (m *Maestro) Quota() llm.QuotaTracker { return m.quota }

// Agent creates an agent backed by the fallback chain bound to userID.
func (m *Maestro) Agent(userID string, cfg agent.Config) (*agent.Agent, error) {
	return agent.New(cfg, m.chain.Bind(userID), m.tools, m.logger)
}

// Planner creates an orchestration planner backed by the chain.
func (m *Maestro) Planner(userID string) *orchestrate.Planner {
	return orchestrate.NewPlanner(m.chain.Bind(userID), m.logger)
}

// Crew creates a crew whose members share the chain bound to userID.
func (m *Maestro) Crew(userID string, cfg crew.Config) (*crew.Crew, error) {
	return crew.New(cfg, m.chain.Bind(userID), m.logger)
}
