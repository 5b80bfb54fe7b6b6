package llm

import (
	"context"

	"event-contract-bot/internal/types"
)

// NoopDecider always passes. Useful for dry runs and for exercising the
// full cycle without an API key.
type NoopDecider struct{}

func (NoopDecider) Decide(ctx context.Context, dctx types.DecisionContext) (types.Decision, error) {
	return types.Decision{Action: types.ActionPass, Reasoning: "noop decider"}, nil
}
