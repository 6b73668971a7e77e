package internal

import (
	"context"
	"fmt"
	"sync"
)

// EngineManager owns the single live inference engine. Replacing the
// engine is strictly sequential: the old instance is fully deinitialized
// before the new one is constructed, so two backends never coexist in
// memory. The reference count tracks active borrowers so a swap cannot
// tear an engine down under a running generation.
type EngineManager struct {
	mu       sync.Mutex
	engine   InferenceEngine
	refCount int
}

// NewEngineManager creates an empty manager with no engine loaded.
func NewEngineManager() *EngineManager {
	return &EngineManager{}
}

// Acquire borrows the current engine, incrementing the reference count.
// Returns ErrEngineNotInitialized when no engine is loaded. Every
// successful Acquire must be paired with a Release.
func (m *EngineManager) Acquire() (InferenceEngine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine == nil {
		return nil, ErrEngineNotInitialized
	}
	m.refCount++
	return m.engine, nil
}

// Release returns a borrowed engine.
func (m *EngineManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refCount > 0 {
		m.refCount--
	}
}

// Loaded reports whether an engine is currently available.
func (m *EngineManager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine != nil
}

// Swap tears down the current engine (if any) and installs a freshly
// initialized one built by factory. The teardown/construct sequence runs
// under the manager lock, never concurrently. Swap fails while borrowers
// hold the engine.
func (m *EngineManager) Swap(ctx context.Context, factory EngineFactory, modelPath string, contextWindow int, progress ProgressFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refCount > 0 {
		return fmt.Errorf("engine busy: %d active borrower(s)", m.refCount)
	}

	if m.engine != nil {
		LogInfo("Releasing previous engine before loading %s", modelPath)
		if err := m.engine.Deinitialize(); err != nil {
			LogWarn("Engine teardown reported error: %v", err)
		}
		m.engine = nil
	}

	engine := factory()
	if err := engine.Initialize(ctx, modelPath, contextWindow, progress); err != nil {
		return &EngineInitError{ModelPath: modelPath, Err: err}
	}
	m.engine = engine
	LogInfo("Engine ready: %s (context window %d)", modelPath, contextWindow)
	return nil
}

// Close deinitializes the current engine, if any.
func (m *EngineManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine == nil {
		return nil
	}
	err := m.engine.Deinitialize()
	m.engine = nil
	return err
}
