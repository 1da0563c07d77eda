package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "+65", cfg.DefaultCountryCode)
	assert.True(t, cfg.FastPath.PlainYesNo)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"http": {"addr": ":9090"},
		"llm": {"provider": "anthropic", "model": "claude-sonnet-4-20250514",
			"max_tokens": 512, "poll_interval_ms": 250, "max_poll_attempts": 10, "max_tool_rounds": 3},
		"ack": {"enabled": false},
		"default_country_code": "+60"
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, "+60", cfg.DefaultCountryCode)
	assert.False(t, cfg.Ack.Enabled)
}

func TestValidateRejectsBadProvider(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = "mistral"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadCountryCode(t *testing.T) {
	cfg := Default()
	cfg.DefaultCountryCode = "65"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroPollCeiling(t *testing.T) {
	cfg := Default()
	cfg.LLM.MaxPollAttempts = 0
	assert.Error(t, cfg.Validate())
}
