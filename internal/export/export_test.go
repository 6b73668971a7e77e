package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ketran/localchat/internal"
	"gopkg.in/yaml.v3"
)

func sampleConversation() *internal.Conversation {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return &internal.Conversation{
		ID:        "conv-123",
		Title:     "Sample chat",
		CreatedAt: ts,
		UpdatedAt: ts.Add(time.Minute),
		Messages: []internal.ChatMessage{
			{ID: "m1", Content: "What does range do?", IsUser: true, Timestamp: ts},
			{ID: "m2", Content: "It iterates over a collection.", IsUser: false, Timestamp: ts.Add(time.Second)},
		},
	}
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		format  string
		wantExt string
		wantErr bool
	}{
		{format: "json", wantExt: "json"},
		{format: "jsonl", wantExt: "jsonl"},
		{format: "md", wantExt: "md"},
		{format: "markdown", wantExt: "md"},
		{format: "yaml", wantExt: "yaml"},
		{format: "xml", wantErr: true},
		{format: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exp, err := NewExporter(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewExporter(%q) succeeded, want error", tt.format)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewExporter(%q) failed: %v", tt.format, err)
			}
			if exp.Extension() != tt.wantExt {
				t.Errorf("Extension() = %q, want %q", exp.Extension(), tt.wantExt)
			}
		})
	}
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(sampleConversation(), &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	var got internal.Conversation
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got.ID != "conv-123" || len(got.Messages) != 2 {
		t.Errorf("round-trip = %+v", got)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("output is not indented")
	}
}

func TestJSONLExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONLExporter{}).Export(sampleConversation(), &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var first map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 0 is not valid JSON: %v", err)
	}
	if first["role"] != "user" {
		t.Errorf("line 0 role = %v, want user", first["role"])
	}
	if first["content"] != "What does range do?" {
		t.Errorf("line 0 content = %v", first["content"])
	}

	var second map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line 1 is not valid JSON: %v", err)
	}
	if second["role"] != "assistant" {
		t.Errorf("line 1 role = %v, want assistant", second["role"])
	}
}

func TestMarkdownExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(sampleConversation(), &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "# Sample chat\n") {
		t.Errorf("missing title header:\n%s", out)
	}
	if !strings.Contains(out, "**ID:** conv-123") {
		t.Error("missing conversation id")
	}
	if !strings.Contains(out, "**user:**") || !strings.Contains(out, "**assistant:**") {
		t.Error("missing role labels")
	}
	if !strings.Contains(out, "It iterates over a collection.") {
		t.Error("missing message content")
	}
}

func TestMarkdownExporter_EscapesOutsideCodeBlocks(t *testing.T) {
	conv := sampleConversation()
	conv.Messages = []internal.ChatMessage{
		{ID: "m1", Content: "**bold** text\n```\n**verbatim**\n```", IsUser: false},
	}

	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(conv, &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, `\*\*bold\*\*`) {
		t.Error("emphasis outside code block not escaped")
	}
	if !strings.Contains(out, "**verbatim**") {
		t.Error("code block content was escaped")
	}
}

func TestYAMLExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLExporter{}).Export(sampleConversation(), &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	var got internal.Conversation
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if got.Title != "Sample chat" {
		t.Errorf("Title = %q", got.Title)
	}
	if len(got.Messages) != 2 {
		t.Errorf("got %d messages, want 2", len(got.Messages))
	}
}
