package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestrokit/maestro/llm"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "maestro.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Empty(t, cfg.Providers)
	assert.NotEmpty(t, cfg.Models)
	assert.Zero(t, cfg.Quota.DailyTokenLimit)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
quota:
  daily_token_limit: 50000
providers:
  - name: openai
    priority: 1
    type: api
    model: gpt-4o-mini
    endpoint: https://api.openai.com/v1
    cost_per_mtok: 0.6
  - name: ollama
    priority: 2
    type: local
    model: llama3.2
agents:
  - id: helper
    name: Helper
    system_prompt: Be helpful.
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 50000, cfg.Quota.DailyTokenLimit)

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "openai", cfg.Providers[0].Name)
	assert.Equal(t, llm.ProviderTypeAPI, cfg.Providers[0].Type)
	assert.Equal(t, 1, cfg.Providers[0].Priority)
	assert.InDelta(t, 0.6, cfg.Providers[0].CostPerMTok, 1e-9)
	assert.Equal(t, llm.ProviderTypeLocal, cfg.Providers[1].Type)

	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "helper", cfg.Agents[0].ID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "log: [not a map")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
log:
  level: info
providers:
  - name: open-ai
    priority: 1
    type: api
`)
	t.Setenv("MAESTRO_LOG_LEVEL", "warn")
	t.Setenv("MAESTRO_QUOTA_DAILY_TOKEN_LIMIT", "1234")
	t.Setenv("MAESTRO_PROVIDER_APIKEY_OPEN_AI", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 1234, cfg.Quota.DailyTokenLimit)
	assert.Equal(t, "sk-test", cfg.Providers[0].APIKey)
}

func TestValidateRejectsBadProviders(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "empty name",
			cfg:     Config{Providers: []llm.ProviderConfig{{Type: llm.ProviderTypeAPI}}},
			wantErr: "empty name",
		},
		{
			name: "duplicate name",
			cfg: Config{Providers: []llm.ProviderConfig{
				{Name: "a", Type: llm.ProviderTypeAPI},
				{Name: "a", Type: llm.ProviderTypeLocal},
			}},
			wantErr: "duplicate",
		},
		{
			name:    "unknown type",
			cfg:     Config{Providers: []llm.ProviderConfig{{Name: "a", Type: "carrier-pigeon"}}},
			wantErr: "unknown type",
		},
		{
			name:    "negative cost",
			cfg:     Config{Providers: []llm.ProviderConfig{{Name: "a", Type: llm.ProviderTypeAPI, CostPerMTok: -1}}},
			wantErr: "negative cost",
		},
		{
			name:    "timeout out of range",
			cfg:     Config{Providers: []llm.ProviderConfig{{Name: "a", Type: llm.ProviderTypeAPI, Timeout: time.Hour}}},
			wantErr: "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
