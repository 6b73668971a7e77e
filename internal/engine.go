package internal

import "context"

// Chat roles understood by the inference engine.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// EngineMessage is one role-tagged entry in the prompt sent to the
// inference engine.
type EngineMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ProgressFunc reports model load progress in the range [0, 1].
type ProgressFunc func(fraction float64)

// InferenceEngine is the contract with the token-generating backend. One
// engine instance exists at a time; Deinitialize must complete before a
// replacement is constructed.
//
// NextToken suspends until the next token is available and returns
// ErrStreamDone when the current generation is complete. Stop requests a
// cooperative halt: a generation loop observes it at its next poll.
type InferenceEngine interface {
	Initialize(ctx context.Context, modelPath string, contextWindow int, progress ProgressFunc) error
	Generate(ctx context.Context, messages []EngineMessage) error
	NextToken(ctx context.Context) (string, error)
	IsComplete() bool
	Stop()
	Resume()
	Clear()
	CountTokens(ctx context.Context, messages []EngineMessage) (int, error)
	Deinitialize() error
}

// EngineFactory constructs an uninitialized engine instance.
type EngineFactory func() InferenceEngine
