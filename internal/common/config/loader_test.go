package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
providers:
  - name: primary
    base_url: http://primary.local
  - name: secondary
    base_url: http://secondary.local
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 0.6, cfg.Agent.Classifier.ConfidenceFloor)
	assert.Equal(t, 4, cfg.Agent.Orchestrator.MaxConcurrentTools)
	assert.Equal(t, 15*time.Minute, GetDuration(cfg.Agent.Cache.EntityTTL))
	assert.Equal(t, 30*time.Minute, GetDuration(cfg.Agent.Cache.GeneralTTL))
	assert.Equal(t, "memory", cfg.Agent.Cache.Backend)
	assert.Equal(t, 2, cfg.APIs.Synthesis.MaxAttempts)
	assert.Contains(t, cfg.Agent.RateLimits, "generation")
	assert.Contains(t, cfg.Agent.RateLimits, "default")
	assert.Equal(t, 20000, cfg.Providers[0].Timeout)
}

func TestLoadFromFile_KeepsConfiguredRateLimits(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
agent:
  rate_limits:
    generation:
      requests: 3
      window: 1000
`))
	require.NoError(t, err)
	assert.Equal(t, RateLimitClass{Requests: 3, Window: 1000}, cfg.Agent.RateLimits["generation"])
	assert.Equal(t, DefaultRateLimits["market_data"], cfg.Agent.RateLimits["market_data"])
}

func TestLoadFromFile_ProviderKeyFromEnv(t *testing.T) {
	t.Setenv("PROVIDER_PRIMARY_API_KEY", "secret")
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Providers[0].APIKey)
	assert.Empty(t, cfg.Providers[1].APIKey)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "no providers",
			body:    "app:\n  name: x\n",
			wantErr: "providers",
		},
		{
			name: "duplicate provider",
			body: `
providers:
  - name: a
    base_url: http://a
  - name: a
    base_url: http://b
`,
			wantErr: "duplicated",
		},
		{
			name: "redis cache without address",
			body: minimalConfig + `
agent:
  cache:
    backend: redis
`,
			wantErr: "database.redis.address",
		},
		{
			name: "floor out of range",
			body: minimalConfig + `
agent:
  classifier:
    confidence_floor: 1.5
`,
			wantErr: "confidence_floor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetToolConfig_DefaultsToEnabled(t *testing.T) {
	cfg := &Config{Tools: map[string]ToolConfig{"company-news": {Enabled: false}}}
	assert.True(t, GetToolConfig(cfg, "stock-quote").Enabled)
	assert.False(t, IsToolEnabled(cfg, "company-news"))
}
