package internal

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestEngineManager_AcquireEmpty(t *testing.T) {
	m := NewEngineManager()

	if _, err := m.Acquire(); !errors.Is(err, ErrEngineNotInitialized) {
		t.Errorf("Acquire() error = %v, want ErrEngineNotInitialized", err)
	}
	if m.Loaded() {
		t.Error("Loaded() = true for empty manager")
	}
}

func TestEngineManager_SwapInstallsEngine(t *testing.T) {
	m := NewEngineManager()
	engine := &fakeEngine{}

	err := m.Swap(context.Background(), func() InferenceEngine { return engine }, "/models/a.gguf", 4096, nil)
	if err != nil {
		t.Fatalf("Swap() failed: %v", err)
	}
	if !m.Loaded() {
		t.Error("Loaded() = false after Swap")
	}

	got, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	defer m.Release()
	if got != engine {
		t.Error("Acquire() returned a different engine")
	}
}

func TestEngineManager_SwapOrdering(t *testing.T) {
	var events []string
	engines := []*fakeEngine{
		{name: "first", events: &events},
		{name: "second", events: &events},
	}
	next := 0
	factory := func() InferenceEngine {
		e := engines[next]
		next++
		return e
	}

	m := NewEngineManager()
	if err := m.Swap(context.Background(), factory, "/models/a.gguf", 4096, nil); err != nil {
		t.Fatalf("first Swap() failed: %v", err)
	}
	if err := m.Swap(context.Background(), factory, "/models/b.gguf", 8192, nil); err != nil {
		t.Fatalf("second Swap() failed: %v", err)
	}

	// The old engine must be fully torn down before the new one is built.
	want := []string{"first:init", "first:deinit", "second:init"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("event order = %v, want %v", events, want)
	}
}

func TestEngineManager_SwapRejectedWhileBorrowed(t *testing.T) {
	m := NewEngineManager()
	factory := func() InferenceEngine { return &fakeEngine{} }
	if err := m.Swap(context.Background(), factory, "/models/a.gguf", 4096, nil); err != nil {
		t.Fatalf("Swap() failed: %v", err)
	}

	if _, err := m.Acquire(); err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}

	err := m.Swap(context.Background(), factory, "/models/b.gguf", 4096, nil)
	if err == nil || !strings.Contains(err.Error(), "busy") {
		t.Errorf("Swap() while borrowed error = %v, want busy", err)
	}

	m.Release()
	if err := m.Swap(context.Background(), factory, "/models/b.gguf", 4096, nil); err != nil {
		t.Errorf("Swap() after Release failed: %v", err)
	}
}

func TestEngineManager_SwapInitFailure(t *testing.T) {
	m := NewEngineManager()
	boom := errors.New("model file corrupt")

	err := m.Swap(context.Background(), func() InferenceEngine {
		return &fakeEngine{initErr: boom}
	}, "/models/bad.gguf", 4096, nil)

	var initErr *EngineInitError
	if !errors.As(err, &initErr) {
		t.Fatalf("Swap() error = %T, want *EngineInitError", err)
	}
	if initErr.ModelPath != "/models/bad.gguf" {
		t.Errorf("ModelPath = %q", initErr.ModelPath)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error chain lost the cause: %v", err)
	}
	if m.Loaded() {
		t.Error("Loaded() = true after failed Swap")
	}
}

func TestEngineManager_SwapInitFailureTearsDownOld(t *testing.T) {
	m := NewEngineManager()
	old := &fakeEngine{}
	if err := m.Swap(context.Background(), func() InferenceEngine { return old }, "/models/a.gguf", 4096, nil); err != nil {
		t.Fatalf("Swap() failed: %v", err)
	}

	err := m.Swap(context.Background(), func() InferenceEngine {
		return &fakeEngine{initErr: errors.New("nope")}
	}, "/models/bad.gguf", 4096, nil)
	if err == nil {
		t.Fatal("Swap() with failing init succeeded")
	}

	if old.deinitCalls != 1 {
		t.Errorf("old engine deinit calls = %d, want 1", old.deinitCalls)
	}
	// The failed replacement leaves no engine loaded.
	if m.Loaded() {
		t.Error("Loaded() = true after failed replacement")
	}
}

func TestEngineManager_Close(t *testing.T) {
	m := NewEngineManager()
	engine := &fakeEngine{}
	if err := m.Swap(context.Background(), func() InferenceEngine { return engine }, "/models/a.gguf", 4096, nil); err != nil {
		t.Fatalf("Swap() failed: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if engine.deinitCalls != 1 {
		t.Errorf("deinit calls = %d, want 1", engine.deinitCalls)
	}
	if m.Loaded() {
		t.Error("Loaded() = true after Close")
	}

	// Closing an empty manager is fine.
	if err := m.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}
