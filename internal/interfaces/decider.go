package interfaces

import (
	"context"

	"event-contract-bot/internal/types"
)

// Decider produces one trade decision per entry cycle from the assembled
// context. Implementations must fail soft: an unparseable reply maps to a
// PASS decision, not an error.
type Decider interface {
	Decide(ctx context.Context, dctx types.DecisionContext) (types.Decision, error)
}
