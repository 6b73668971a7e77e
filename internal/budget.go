package internal

import "context"

// DefaultBudgetRatio is the fraction of the context window available to
// the prompt; the remainder is safety margin for generation. A tuning
// value, not a correctness requirement.
const DefaultBudgetRatio = 0.75

// TokenCounter counts the tokens a message list would occupy in the
// backend's context. Implemented by the inference engine.
type TokenCounter interface {
	CountTokens(ctx context.Context, messages []EngineMessage) (int, error)
}

// ContextBudget trims a message list to fit a token budget.
type ContextBudget struct {
	ContextWindow int
	Ratio         float64
}

// NewContextBudget creates a budget for the given context window using the
// default ratio.
func NewContextBudget(contextWindow int) ContextBudget {
	return ContextBudget{ContextWindow: contextWindow, Ratio: DefaultBudgetRatio}
}

// Limit returns the token budget: floor(contextWindow * ratio).
func (b ContextBudget) Limit() int {
	return int(float64(b.ContextWindow) * b.Ratio)
}

// TrimToBudget evicts messages until counter reports the list within
// budget. Eviction always removes the oldest non-system message first; a
// leading system message is dropped only when every older turn is gone and
// the list is still over budget. The most recent message, the user turn
// driving the current exchange, is never evicted. If nothing fits,
// ErrBudgetExhausted is returned and generation must not start. The bool
// result reports whether any removal occurred.
func (b ContextBudget) TrimToBudget(ctx context.Context, messages []EngineMessage, counter TokenCounter) ([]EngineMessage, bool, error) {
	limit := b.Limit()
	msgs := make([]EngineMessage, len(messages))
	copy(msgs, messages)

	trimmed := false
	for len(msgs) > 0 {
		count, err := counter.CountTokens(ctx, msgs)
		if err != nil {
			return nil, trimmed, err
		}
		if count <= limit {
			return msgs, trimmed, nil
		}

		evict := 0
		if msgs[0].Role == RoleSystem {
			evict = 1
		}
		switch {
		case len(msgs)-evict > 1:
			// Oldest non-system turn goes first.
			LogDebug("Context over budget (%d > %d), evicting %s turn", count, limit, msgs[evict].Role)
			msgs = append(msgs[:evict], msgs[evict+1:]...)
		case evict == 1:
			// Only the system message and the current turn remain.
			LogDebug("Context over budget (%d > %d), dropping system message", count, limit)
			msgs = msgs[1:]
		default:
			// A single turn that does not fit on its own.
			return nil, trimmed, ErrBudgetExhausted
		}
		trimmed = true
	}

	return nil, trimmed, ErrBudgetExhausted
}
