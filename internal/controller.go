package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Session lifecycle states.
type SessionState int

const (
	StateIdle SessionState = iota
	StateGenerating
	StateStopping
)

// ErrGenerationInProgress rejects a submission while another generation is
// running. Submissions are rejected, never queued.
var ErrGenerationInProgress = errors.New("a generation is already in progress")

// ErrEmptyInput rejects a submission with no text.
var ErrEmptyInput = errors.New("input text is empty")

// displayBatchBytes batches display updates for rendering efficiency. The
// first display character is always published immediately so the thinking
// indicator clears without delay.
const displayBatchBytes = 64

// titleMaxOutput caps the title sub-generation; anything longer is not a
// title.
const titleMaxOutput = 120

// DisplayEvent is one update pushed to the observer during a generation.
type DisplayEvent struct {
	ConversationID string
	Text           string // new display text since the last event, may be ""
	Thinking       bool   // reasoning indicator state
	Truncated      bool   // history was trimmed to fit the context budget
	Done           bool   // generation finished (normally, stopped, or errored)
}

// Observer receives display events. It is called from the goroutine
// running Submit.
type Observer func(DisplayEvent)

// SessionController drives the generation lifecycle: it owns the active
// conversation, feeds raw tokens through the stream sanitizer, enforces
// the context budget before each generation, and persists results. All
// conversation mutation happens on the goroutine running Submit; Stop is
// the only method safe to call concurrently with it.
type SessionController struct {
	mu        sync.Mutex
	cfg       Config
	engines   *EngineManager
	factory   EngineFactory
	store     *ConversationStore
	sanitizer *StreamSanitizer
	observer  Observer

	state      SessionState
	conv       *Conversation
	stopFlag   atomic.Bool
	wasStopped bool

	// Per-generation accumulators, reset at generation start.
	rawParts     []string
	displayParts []string
	truncated    bool
}

// NewSessionController creates a controller. The observer may be nil.
func NewSessionController(cfg Config, engines *EngineManager, factory EngineFactory, store *ConversationStore, observer Observer) *SessionController {
	return &SessionController{
		cfg:       cfg,
		engines:   engines,
		factory:   factory,
		store:     store,
		sanitizer: NewStreamSanitizer(cfg.SpecialMarkers, cfg.ReasoningOpen, cfg.ReasoningClose),
		observer:  observer,
	}
}

// State returns the current lifecycle state.
func (s *SessionController) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Conversation returns the active conversation, or nil.
func (s *SessionController) Conversation() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv
}

// NewConversation allocates a fresh conversation and makes it current. It
// is not persisted until it receives a message. The engine's context
// memory is cleared so the next generation starts from the new history.
func (s *SessionController) NewConversation() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv = NewConversation()
	if engine, err := s.engines.Acquire(); err == nil {
		engine.Clear()
		s.engines.Release()
	}
	return s.conv
}

// OpenConversation loads a stored conversation and makes it current.
func (s *SessionController) OpenConversation(id string) error {
	conv, err := s.store.LoadFull(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv = conv
	if engine, err := s.engines.Acquire(); err == nil {
		engine.Clear()
		s.engines.Release()
	}
	return nil
}

// DeleteConversation removes a stored conversation, clearing the active
// conversation if it was the one deleted.
func (s *SessionController) DeleteConversation(id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv != nil && s.conv.ID == id {
		s.conv = nil
	}
	return nil
}

// LoadModel loads (or replaces) the inference engine per the current
// config. Any previous engine is fully released before the new one is
// constructed.
func (s *SessionController) LoadModel(ctx context.Context, progress ProgressFunc) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrGenerationInProgress
	}
	cfg := s.cfg
	s.mu.Unlock()
	return s.engines.Swap(ctx, s.factory, cfg.ModelPath, cfg.ContextWindow, progress)
}

// SetConfig replaces the configuration. When the model path or context
// window changed and an engine is loaded, the model is reloaded to pick up
// the new values.
func (s *SessionController) SetConfig(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrGenerationInProgress
	}
	old := s.cfg
	s.cfg = cfg
	s.sanitizer = NewStreamSanitizer(cfg.SpecialMarkers, cfg.ReasoningOpen, cfg.ReasoningClose)
	s.mu.Unlock()

	needsReload := s.engines.Loaded() &&
		(old.ModelPath != cfg.ModelPath || old.ContextWindow != cfg.ContextWindow)
	if needsReload {
		LogInfo("Config change requires model reload")
		return s.engines.Swap(ctx, s.factory, cfg.ModelPath, cfg.ContextWindow, nil)
	}
	return nil
}

// Submit runs one full generation for the given user input: append the
// user turn, trim history to the context budget, stream the response
// through the sanitizer, append the assistant turn, persist. Backend
// failures become a synthesized assistant message rather than a returned
// error. Re-entrant submissions are rejected.
func (s *SessionController) Submit(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return ErrEmptyInput
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrGenerationInProgress
	}
	if s.conv == nil {
		s.conv = NewConversation()
	}
	s.state = StateGenerating
	s.rawParts = s.rawParts[:0]
	s.displayParts = s.displayParts[:0]
	s.truncated = false
	s.wasStopped = false
	s.stopFlag.Store(false)
	s.sanitizer.Reset()
	conv := s.conv
	cfg := s.cfg
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
	}()

	engine, err := s.engines.Acquire()
	if err != nil {
		return err
	}
	defer s.engines.Release()

	// The user turn is appended before anything can fail, so it stays
	// visible even if generation does not.
	conv.Append(NewUserMessage(input))

	messages := conv.EngineMessages(cfg.SystemPrompt)
	trimmed, wasTrimmed, err := cfg.Budget().TrimToBudget(ctx, messages, engine)
	if err != nil {
		if errors.Is(err, ErrBudgetExhausted) {
			s.finishWithError(conv, "This message does not fit in the model's context window. Try a shorter message or start a new conversation.")
			return nil
		}
		s.finishWithError(conv, fmt.Sprintf("Token counting failed: %v", err))
		return nil
	}
	s.mu.Lock()
	s.truncated = wasTrimmed
	s.mu.Unlock()
	if wasTrimmed {
		LogInfo("Conversation history trimmed to fit context budget")
	}

	engine.Resume()
	if err := engine.Generate(ctx, trimmed); err != nil {
		genErr := &GenerationError{ConversationID: conv.ID, Err: err}
		LogError("%v", genErr)
		s.finishWithError(conv, fmt.Sprintf("Generation failed: %v", err))
		return nil
	}

	s.publish(DisplayEvent{ConversationID: conv.ID, Thinking: true, Truncated: wasTrimmed})

	var pending strings.Builder
	firstDisplay := true
	var genErr error

	for {
		if s.stopFlag.Load() {
			s.markStopped()
			break
		}
		token, err := engine.NextToken(ctx)
		if errors.Is(err, ErrStreamDone) {
			break
		}
		if err != nil {
			genErr = err
			break
		}
		s.rawParts = append(s.rawParts, token)

		clean := s.sanitizer.Write(token)
		if clean == "" {
			continue
		}
		s.displayParts = append(s.displayParts, clean)
		pending.WriteString(clean)
		// Batch display updates, but never delay the first character:
		// that is what clears the thinking indicator.
		if firstDisplay || pending.Len() >= displayBatchBytes {
			s.publish(DisplayEvent{
				ConversationID: conv.ID,
				Text:           pending.String(),
				Thinking:       false,
				Truncated:      wasTrimmed,
			})
			pending.Reset()
			firstDisplay = false
		}
	}

	// Final flush of both sanitizer stages.
	if tail := s.sanitizer.Flush(); tail != "" {
		s.displayParts = append(s.displayParts, tail)
		pending.WriteString(tail)
	}
	if pending.Len() > 0 {
		s.publish(DisplayEvent{ConversationID: conv.ID, Text: pending.String(), Truncated: wasTrimmed})
	}

	if genErr != nil {
		wrapped := &GenerationError{ConversationID: conv.ID, Err: genErr}
		LogError("%v", wrapped)
		s.finishWithError(conv, fmt.Sprintf("Generation failed: %v", genErr))
		return nil
	}

	// The raw form is what is stored, so future context reconstruction
	// sees exactly what the model produced.
	raw := strings.Join(s.rawParts, "")
	if raw != "" {
		conv.Append(NewAssistantMessage(raw))
	}
	s.persist(conv)

	if len(conv.Messages) == 2 && raw != "" {
		s.generateTitle(ctx, engine, conv)
	}

	s.publish(DisplayEvent{ConversationID: conv.ID, Done: true, Truncated: wasTrimmed})
	return nil
}

// Stop requests a cooperative halt of the running generation. The stop
// flag is observed at the top of each poll iteration; the partial response
// produced so far is kept and appended exactly once by the Submit
// goroutine. Stopping an idle session is a no-op.
func (s *SessionController) Stop() {
	s.mu.Lock()
	if s.state != StateGenerating {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	s.mu.Unlock()

	s.stopFlag.Store(true)
	if engine, err := s.engines.Acquire(); err == nil {
		engine.Stop()
		s.engines.Release()
	}
}

// WasStopped reports whether the last generation ended via Stop.
func (s *SessionController) WasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wasStopped
}

// WasTruncated reports whether the last generation trimmed history.
func (s *SessionController) WasTruncated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.truncated
}

func (s *SessionController) markStopped() {
	s.mu.Lock()
	s.wasStopped = true
	s.mu.Unlock()
}

// finishWithError appends a synthesized assistant message describing the
// failure and persists. Errors never propagate past the controller as a
// crash; they become a visible conversation entry.
func (s *SessionController) finishWithError(conv *Conversation, text string) {
	conv.Append(NewAssistantMessage(text))
	s.persist(conv)
	s.publish(DisplayEvent{ConversationID: conv.ID, Text: text, Done: true})
}

// persist saves best-effort: a failure is logged and the in-memory session
// continues.
func (s *SessionController) persist(conv *Conversation) {
	if len(conv.Messages) == 0 {
		return
	}
	if err := s.store.Save(conv); err != nil {
		LogWarn("Failed to persist conversation %s: %v", conv.ID, err)
	}
}

// generateTitle runs a short sub-generation to name the conversation after
// its first exchange. Failures fall back to a truncation of the user's
// first message.
func (s *SessionController) generateTitle(ctx context.Context, engine InferenceEngine, conv *Conversation) {
	title, err := s.runTitleGeneration(ctx, engine, conv)
	if err != nil || title == "" {
		LogDebug("Title generation fell back to first message: %v", err)
		title = fallbackTitle(conv, s.cfg.TitleMaxChars)
	}
	if title == "" {
		return
	}
	conv.Title = title
	s.persist(conv)
}

func (s *SessionController) runTitleGeneration(ctx context.Context, engine InferenceEngine, conv *Conversation) (string, error) {
	var exchange strings.Builder
	for _, m := range conv.Messages {
		role := RoleAssistant
		if m.IsUser {
			role = RoleUser
		}
		fmt.Fprintf(&exchange, "%s: %s\n", role, m.Content)
	}

	messages := []EngineMessage{
		{Role: RoleSystem, Content: titlePrompt},
		{Role: RoleUser, Content: exchange.String()},
	}
	if err := engine.Generate(ctx, messages); err != nil {
		return "", err
	}

	sanitizer := NewStreamSanitizer(s.cfg.SpecialMarkers, s.cfg.ReasoningOpen, s.cfg.ReasoningClose)
	var out strings.Builder
	for out.Len() < titleMaxOutput {
		token, err := engine.NextToken(ctx)
		if errors.Is(err, ErrStreamDone) {
			break
		}
		if err != nil {
			return "", err
		}
		out.WriteString(sanitizer.Write(token))
	}
	engine.Stop()
	out.WriteString(sanitizer.Flush())

	title := strings.Trim(strings.TrimSpace(out.String()), `"'`)
	title = strings.ReplaceAll(title, "\n", " ")
	if s.cfg.TitleMaxChars > 0 && len(title) > s.cfg.TitleMaxChars {
		title = strings.TrimSpace(title[:s.cfg.TitleMaxChars])
	}
	return title, nil
}

func (s *SessionController) publish(ev DisplayEvent) {
	if s.observer != nil {
		s.observer(ev)
	}
}

func fallbackTitle(conv *Conversation, maxChars int) string {
	for _, m := range conv.Messages {
		if !m.IsUser {
			continue
		}
		title := strings.TrimSpace(m.Content)
		if maxChars > 0 && len(title) > maxChars {
			title = strings.TrimSpace(title[:maxChars]) + "..."
		}
		return title
	}
	return ""
}
