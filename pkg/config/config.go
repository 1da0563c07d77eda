// Package config provides configuration loading and validation for the
// inspection assistant. Configuration is loaded once at startup from an
// optional JSON file, overlaid with environment variables for secrets, and
// passed by value into the components that need it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// LLM provider identifiers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Default model names per provider.
const (
	DefaultOpenAIModel    = "gpt-4o"
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
)

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Addr string `json:"addr"`
}

// RedisConfig holds session store settings. An empty Addr selects the
// in-memory store (single-process demo mode).
type RedisConfig struct {
	Addr      string `json:"addr"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

// DatabaseConfig holds the domain database settings.
type DatabaseConfig struct {
	Path string `json:"path"`
	Seed string `json:"seed,omitempty"` // optional YAML fixture loaded at startup
}

// LLMConfig holds assistant runtime settings.
//
//nolint:govet // fieldalignment: logical grouping preferred
type LLMConfig struct {
	Provider        string `json:"provider"` // openai | anthropic
	Model           string `json:"model"`
	APIKey          string `json:"-"` // env only, never persisted
	MaxTokens       int    `json:"max_tokens"`
	PollIntervalMs  int    `json:"poll_interval_ms"`
	MaxPollAttempts int    `json:"max_poll_attempts"`
	MaxToolRounds   int    `json:"max_tool_rounds"`
}

// PollInterval returns the run poll interval as a duration.
func (c *LLMConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// AckConfig holds instant-acknowledgement settings.
type AckConfig struct {
	Enabled    bool   `json:"enabled"`
	DelayMs    int    `json:"delay_ms"`
	LeadTimeMs int    `json:"lead_time_ms"`
	Message    string `json:"message"`
}

// Delay returns the ack delay as a duration.
func (c *AckConfig) Delay() time.Duration { return time.Duration(c.DelayMs) * time.Millisecond }

// LeadTime returns the post-ack lead time as a duration.
func (c *AckConfig) LeadTime() time.Duration {
	return time.Duration(c.LeadTimeMs) * time.Millisecond
}

// FastPathConfig holds deterministic interpreter settings.
type FastPathConfig struct {
	// PlainYesNo routes bare "yes"/"no" replies during job confirmation
	// without requiring a numbered selection.
	PlainYesNo bool `json:"plain_yes_no"`
}

// TwilioConfig holds WhatsApp outbound settings. Empty AccountSID disables
// the Twilio sender (replies are logged instead).
type TwilioConfig struct {
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"-"` // env only
	From       string `json:"from"` // e.g. "whatsapp:+14155238886"
}

// Config is the top-level configuration.
//
//nolint:govet // fieldalignment: logical grouping preferred
type Config struct {
	HTTP     HTTPConfig     `json:"http"`
	Redis    RedisConfig    `json:"redis"`
	Database DatabaseConfig `json:"database"`
	LLM      LLMConfig      `json:"llm"`
	Ack      AckConfig      `json:"ack"`
	FastPath FastPathConfig `json:"fastpath"`
	Twilio   TwilioConfig   `json:"twilio"`

	// DefaultCountryCode is prepended to bare local phone numbers during
	// inspector identification.
	DefaultCountryCode string `json:"default_country_code"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP:     HTTPConfig{Addr: ":8080"},
		Redis:    RedisConfig{KeyPrefix: "chatstate:"},
		Database: DatabaseConfig{Path: "inspection.db"},
		LLM: LLMConfig{
			Provider:        ProviderOpenAI,
			Model:           DefaultOpenAIModel,
			MaxTokens:       1024,
			PollIntervalMs:  500,
			MaxPollAttempts: 60,
			MaxToolRounds:   5,
		},
		Ack: AckConfig{
			Enabled:    true,
			DelayMs:    2000,
			LeadTimeMs: 750,
			Message:    "One moment, checking that for you…",
		},
		FastPath:           FastPathConfig{PlainYesNo: true},
		DefaultCountryCode: "+65",
	}
}

// Load reads configuration from the given JSON file (optional), then applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config. Secrets are only
// ever sourced from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("INSPECTION_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	switch cfg.LLM.Provider {
	case ProviderAnthropic:
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.Model == DefaultOpenAIModel {
			cfg.LLM.Model = DefaultAnthropicModel
		}
	default:
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if v := os.Getenv("TWILIO_ACCOUNT_SID"); v != "" {
		cfg.Twilio.AccountSID = v
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		cfg.Twilio.AuthToken = v
	}
	if v := os.Getenv("TWILIO_WHATSAPP_FROM"); v != "" {
		cfg.Twilio.From = v
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("llm.provider must be %q or %q, got %q",
			ProviderOpenAI, ProviderAnthropic, c.LLM.Provider)
	}
	if c.LLM.MaxPollAttempts <= 0 {
		return fmt.Errorf("llm.max_poll_attempts must be positive")
	}
	if c.LLM.PollIntervalMs <= 0 {
		return fmt.Errorf("llm.poll_interval_ms must be positive")
	}
	if c.LLM.MaxToolRounds <= 0 {
		return fmt.Errorf("llm.max_tool_rounds must be positive")
	}
	if c.Ack.Enabled && c.Ack.DelayMs <= 0 {
		return fmt.Errorf("ack.delay_ms must be positive when ack is enabled")
	}
	if !strings.HasPrefix(c.DefaultCountryCode, "+") {
		return fmt.Errorf("default_country_code must start with '+', got %q", c.DefaultCountryCode)
	}
	return nil
}
