package assist

import (
	"fmt"

	"inspection/pkg/config"
	"inspection/pkg/tools"
)

// NewFromConfig builds an orchestrator over the configured provider.
func NewFromConfig(cfg *config.LLMConfig, registry *tools.Registry) (*Orchestrator, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	runtime := NewCompletionRuntime(client, cfg.MaxTokens)
	return NewOrchestrator(runtime, registry, Options{
		PollInterval:  cfg.PollInterval(),
		MaxPolls:      cfg.MaxPollAttempts,
		MaxToolRounds: cfg.MaxToolRounds,
	}), nil
}

func newClient(cfg *config.LLMConfig) (LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.Model), nil
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
