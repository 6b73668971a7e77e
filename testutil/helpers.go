package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ketran/localchat/internal"
)

// CreateTempDir creates a temporary directory for testing
func CreateTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "localchat-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

// OpenTestStore opens a conversation store backed by a temp database
func OpenTestStore(t *testing.T) *internal.ConversationStore {
	t.Helper()
	dir := CreateTempDir(t)
	store, err := internal.OpenStore(filepath.Join(dir, "conversations.db"))
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// WriteTestConfig writes a config file into a temp dir and returns its path
func WriteTestConfig(t *testing.T, cfg internal.Config) string {
	t.Helper()
	dir := CreateTempDir(t)
	path := filepath.Join(dir, "config.yaml")
	if err := cfg.SaveConfig(path); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}
