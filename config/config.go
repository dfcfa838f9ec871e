// Package config loads maestro configuration from YAML with environment
// overrides. Precedence: defaults, then file, then MAESTRO_* env vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maestrokit/maestro/agent"
	"github.com/maestrokit/maestro/crew"
	"github.com/maestrokit/maestro/llm"
	"github.com/maestrokit/maestro/router"
)

// Config is the complete maestro configuration.
type Config struct {
	Log       LogConfig                `yaml:"log"`
	Providers []llm.ProviderConfig     `yaml:"providers"`
	Models    []router.ModelCapability `yaml:"models,omitempty"`
	Agents    []agent.Config           `yaml:"agents,omitempty"`
	Crews     []crew.Config            `yaml:"crews,omitempty"`
	Quota     QuotaConfig              `yaml:"quota"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// QuotaConfig configures the in-memory quota tracker.
type QuotaConfig struct {
	DailyTokenLimit int `yaml:"daily_token_limit"` // 0 = unlimited
}

// Default returns the built-in configuration: console logging at info, no
// providers (the host must supply some), default model registry, unlimited
// quota.
func Default() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: "console"},
		Models: router.DefaultModelRegistry(),
	}
}

// Load reads the YAML file at path over the defaults and applies env
// overrides. An empty path skips the file stage.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides scalar settings from MAESTRO_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MAESTRO_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MAESTRO_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("MAESTRO_QUOTA_DAILY_TOKEN_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Quota.DailyTokenLimit = n
		}
	}
	// Per-provider API keys: MAESTRO_PROVIDER_APIKEY_<NAME>.
	for i := range cfg.Providers {
		key := "MAESTRO_PROVIDER_APIKEY_" + envName(cfg.Providers[i].Name)
		if v := os.Getenv(key); v != "" {
			cfg.Providers[i].APIKey = v
		}
	}
}

func envName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// Validate checks cross-field invariants the YAML schema cannot express.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
		switch p.Type {
		case llm.ProviderTypeAPI, llm.ProviderTypeLocal, llm.ProviderTypeHuggingFace:
		default:
			return fmt.Errorf("provider %q has unknown type %q", p.Name, p.Type)
		}
		if p.CostPerMTok < 0 {
			return fmt.Errorf("provider %q has negative cost", p.Name)
		}
		if p.Timeout < 0 || p.Timeout > 10*time.Minute {
			return fmt.Errorf("provider %q timeout out of range", p.Name)
		}
	}
	return nil
}
