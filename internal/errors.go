package internal

import (
	"errors"
	"fmt"
)

// ErrEngineNotInitialized is returned when an operation needs a loaded
// model and none is present. Callers surface it as a "no model" state,
// not a crash.
var ErrEngineNotInitialized = errors.New("inference engine not initialized")

// ErrBudgetExhausted is returned by TrimToBudget when no combination of
// messages fits the context budget. Generation must not start.
var ErrBudgetExhausted = errors.New("context budget exhausted: no messages fit")

// ErrStreamDone signals the end of a token stream from NextToken.
var ErrStreamDone = errors.New("token stream complete")

// ErrNotFound is returned by the store when no record exists for an id.
var ErrNotFound = errors.New("conversation not found")

// EngineInitError represents a failure to load or initialize a model
type EngineInitError struct {
	ModelPath string
	Err       error
}

func (e *EngineInitError) Error() string {
	return fmt.Sprintf("engine init error [%s]: %v", e.ModelPath, e.Err)
}

func (e *EngineInitError) Unwrap() error {
	return e.Err
}

// GenerationError represents a backend failure mid-stream
type GenerationError struct {
	ConversationID string
	Err            error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation error [%s]: %v", e.ConversationID, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// PersistenceError represents a failure writing or reading durable state
type PersistenceError struct {
	Op  string // "save", "load", "delete"
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
