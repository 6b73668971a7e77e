package testutil

import (
	"context"
	"sync"

	"github.com/ketran/localchat/internal"
)

// MockEngine is a scripted InferenceEngine for tests. Each Generate call
// consumes the next token script; NextToken replays it one token at a
// time.
type MockEngine struct {
	mu sync.Mutex

	// Scripts are the token streams for successive Generate calls.
	Scripts [][]string

	// CountFunc overrides token counting; the default estimates one token
	// per four characters of content.
	CountFunc func(messages []internal.EngineMessage) int

	// GenerateErr, if set, fails every Generate call.
	GenerateErr error

	Initialized   bool
	Deinitialized bool
	GenerateCalls [][]internal.EngineMessage

	current  []string
	pos      int
	complete bool
	stopped  bool
}

var _ internal.InferenceEngine = (*MockEngine)(nil)

// NewMockEngine creates an engine that will stream the given scripts.
func NewMockEngine(scripts ...[]string) *MockEngine {
	return &MockEngine{Scripts: scripts}
}

func (m *MockEngine) Initialize(ctx context.Context, modelPath string, contextWindow int, progress internal.ProgressFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Initialized = true
	if progress != nil {
		progress(1)
	}
	return nil
}

func (m *MockEngine) Generate(ctx context.Context, messages []internal.EngineMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GenerateErr != nil {
		return m.GenerateErr
	}
	msgs := make([]internal.EngineMessage, len(messages))
	copy(msgs, messages)
	m.GenerateCalls = append(m.GenerateCalls, msgs)

	m.current = nil
	if len(m.Scripts) > 0 {
		m.current = m.Scripts[0]
		m.Scripts = m.Scripts[1:]
	}
	m.pos = 0
	m.complete = false
	m.stopped = false
	return nil
}

func (m *MockEngine) NextToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.stopped || m.pos >= len(m.current) {
		m.complete = true
		return "", internal.ErrStreamDone
	}
	tok := m.current[m.pos]
	m.pos++
	return tok, nil
}

func (m *MockEngine) IsComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.complete
}

func (m *MockEngine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *MockEngine) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = false
}

func (m *MockEngine) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	m.pos = 0
	m.complete = false
}

func (m *MockEngine) CountTokens(ctx context.Context, messages []internal.EngineMessage) (int, error) {
	m.mu.Lock()
	countFunc := m.CountFunc
	m.mu.Unlock()
	if countFunc != nil {
		return countFunc(messages), nil
	}
	total := 0
	for _, msg := range messages {
		total += len(msg.Content)/4 + 1
	}
	return total, nil
}

func (m *MockEngine) Deinitialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deinitialized = true
	return nil
}
