package internal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// perMessageOverhead approximates the chat-template tokens wrapping each
// message (role markers, separators) when summing per-message counts.
const perMessageOverhead = 4

// LlamaServerEngine implements InferenceEngine against a llama.cpp server
// exposing the OpenAI-compatible streaming chat API plus the native
// /tokenize endpoint.
type LlamaServerEngine struct {
	baseURL string
	client  *http.Client

	mu        sync.Mutex
	modelPath string
	stream    io.ReadCloser
	scanner   *bufio.Scanner
	cancel    context.CancelFunc
	complete  bool
	stopped   bool
}

// NewLlamaServerEngine creates an engine client for the given server URL.
func NewLlamaServerEngine(baseURL string) *LlamaServerEngine {
	return &LlamaServerEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

type chatRequest struct {
	Model    string          `json:"model,omitempty"`
	Messages []EngineMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

type tokenizeRequest struct {
	Content string `json:"content"`
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

// Initialize verifies the server is reachable. The server owns model
// loading; contextWindow is tracked by the caller's budget, not here.
func (e *LlamaServerEngine) Initialize(ctx context.Context, modelPath string, contextWindow int, progress ProgressFunc) error {
	e.mu.Lock()
	e.modelPath = modelPath
	e.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable at %s: %w", e.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server health check failed: %s", resp.Status)
	}
	if progress != nil {
		progress(1)
	}
	return nil
}

// Generate opens a streaming completion for the given messages. Any
// previous stream is torn down first.
func (e *LlamaServerEngine) Generate(ctx context.Context, messages []EngineMessage) error {
	e.closeStream()

	body, err := json.Marshal(chatRequest{Model: e.modelPath, Messages: messages, Stream: true})
	if err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, e.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		cancel()
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		cancel()
		return err
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return fmt.Errorf("completion request failed: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	e.mu.Lock()
	e.stream = resp.Body
	e.scanner = scanner
	e.cancel = cancel
	e.complete = false
	e.stopped = false
	e.mu.Unlock()
	return nil
}

// NextToken returns the next content delta from the stream, or
// ErrStreamDone when the generation is finished or was stopped.
func (e *LlamaServerEngine) NextToken(ctx context.Context) (string, error) {
	e.mu.Lock()
	scanner := e.scanner
	e.mu.Unlock()
	if scanner == nil {
		return "", ErrStreamDone
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			e.finishStream()
			return "", ErrStreamDone
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			LogDebug("Skipping malformed stream chunk: %v", err)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			return content, nil
		}
		if chunk.Choices[0].FinishReason != nil {
			e.finishStream()
			return "", ErrStreamDone
		}
	}

	err := scanner.Err()
	e.finishStream()
	if err != nil && !e.wasStopped() {
		return "", err
	}
	return "", ErrStreamDone
}

// IsComplete reports whether the current generation has finished.
func (e *LlamaServerEngine) IsComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.complete
}

// Stop cancels the in-flight stream. The cancellation surfaces to the
// polling loop as end-of-stream, not an error.
func (e *LlamaServerEngine) Stop() {
	e.mu.Lock()
	e.stopped = true
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Resume clears the stopped flag ahead of a new generation.
func (e *LlamaServerEngine) Resume() {
	e.mu.Lock()
	e.stopped = false
	e.mu.Unlock()
}

// Clear tears down any active stream. The server is stateless between
// requests beyond its prompt cache, so there is nothing else to reset.
func (e *LlamaServerEngine) Clear() {
	e.closeStream()
}

// CountTokens sums the server's tokenization of each message plus a small
// per-message template overhead.
func (e *LlamaServerEngine) CountTokens(ctx context.Context, messages []EngineMessage) (int, error) {
	total := 0
	for _, m := range messages {
		n, err := e.tokenize(ctx, m.Content)
		if err != nil {
			return 0, err
		}
		total += n + perMessageOverhead
	}
	return total, nil
}

// Deinitialize releases the HTTP client's resources. Must complete before
// a replacement engine is constructed.
func (e *LlamaServerEngine) Deinitialize() error {
	e.closeStream()
	e.client.CloseIdleConnections()
	return nil
}

func (e *LlamaServerEngine) tokenize(ctx context.Context, content string) (int, error) {
	body, err := json.Marshal(tokenizeRequest{Content: content})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/tokenize", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		// Older servers lack /tokenize; fall back to a character
		// heuristic rather than failing the whole submission.
		LogDebug("Tokenize endpoint returned %s, using heuristic", resp.Status)
		return len(content)/4 + 1, nil
	}

	var tr tokenizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return 0, err
	}
	return len(tr.Tokens), nil
}

func (e *LlamaServerEngine) finishStream() {
	e.mu.Lock()
	e.complete = true
	e.mu.Unlock()
	e.closeStream()
}

func (e *LlamaServerEngine) closeStream() {
	e.mu.Lock()
	stream := e.stream
	cancel := e.cancel
	e.stream = nil
	e.scanner = nil
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		stream.Close()
	}
}

func (e *LlamaServerEngine) wasStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}
