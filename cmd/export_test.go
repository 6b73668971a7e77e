package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ketran/localchat/internal"
	"github.com/ketran/localchat/internal/export"
	"github.com/ketran/localchat/testutil"
)

func TestWriteExport(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	conv := internal.CreateTestConversation("export-test-id")

	exporter, err := export.NewExporter("json")
	if err != nil {
		t.Fatalf("NewExporter() failed: %v", err)
	}

	path := filepath.Join(dir, "conversation_export-test-id.json")
	if err := writeExport(exporter, conv, path); err != nil {
		t.Fatalf("writeExport() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var got internal.Conversation
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("exported file is not valid JSON: %v", err)
	}
	if got.ID != conv.ID {
		t.Errorf("exported ID = %q, want %q", got.ID, conv.ID)
	}
	if len(got.Messages) != len(conv.Messages) {
		t.Errorf("exported %d messages, want %d", len(got.Messages), len(conv.Messages))
	}
}

func TestExportCommand_AllConversations(t *testing.T) {
	dataDir := testutil.CreateTempDir(t)
	dbFile := filepath.Join(dataDir, "conversations.db")
	outDir := filepath.Join(dataDir, "out")

	store, err := internal.OpenStore(dbFile)
	if err != nil {
		t.Fatalf("OpenStore() failed: %v", err)
	}
	conversations := map[string][]string{
		"conv-one": {"first question", "first answer"},
		"conv-two": {"q1", "a1", "q2", "a2"},
	}
	for id, contents := range conversations {
		if err := store.Save(internal.CreateTestConversationWithMessages(id, contents)); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}
	store.Close()

	cfgFile := filepath.Join(dataDir, "config.yaml") // absent, defaults apply
	rootCmd.SetArgs([]string{"export", "--db", dbFile, "--config", cfgFile, "-o", outDir, "-f", "jsonl"})
	t.Cleanup(func() {
		dbPath = ""
		configPath = ""
		exportFormat = "json"
		exportOutput = "."
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("export command failed: %v", err)
	}

	for id, contents := range conversations {
		path := filepath.Join(outDir, "conversation_"+id+".jsonl")
		data, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("expected export file %s: %v", path, err)
			continue
		}
		// One JSONL line per message.
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != len(contents) {
			t.Errorf("%s: got %d lines, want %d", path, len(lines), len(contents))
		}
	}
}
