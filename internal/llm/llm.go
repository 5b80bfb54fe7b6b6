package llm

import (
	"fmt"

	"event-contract-bot/internal/interfaces"
	"event-contract-bot/internal/store"
)

// New returns the decider named by the config.
func New(cfg *store.Config) (interfaces.Decider, error) {
	switch cfg.LLM.Provider {
	case "OPENROUTER":
		return NewOpenRouterDecider(cfg)
	case "NOOP":
		return NoopDecider{}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
