package internal

import (
	"testing"
	"time"
)

func TestNewConversation(t *testing.T) {
	conv := NewConversation()

	if conv.ID == "" {
		t.Error("ID is empty")
	}
	if conv.Title != "New Conversation" {
		t.Errorf("Title = %q, want %q", conv.Title, "New Conversation")
	}
	if len(conv.Messages) != 0 {
		t.Errorf("new conversation has %d messages, want 0", len(conv.Messages))
	}
	if !conv.CreatedAt.Equal(conv.UpdatedAt) {
		t.Errorf("CreatedAt %v != UpdatedAt %v", conv.CreatedAt, conv.UpdatedAt)
	}

	other := NewConversation()
	if other.ID == conv.ID {
		t.Error("two conversations share an ID")
	}
}

func TestConversation_Append(t *testing.T) {
	conv := NewConversation()
	before := conv.UpdatedAt

	conv.Append(NewUserMessage("first"))
	conv.Append(NewAssistantMessage("second"))

	if len(conv.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(conv.Messages))
	}
	if !conv.Messages[0].IsUser || conv.Messages[1].IsUser {
		t.Errorf("roles wrong: %v, %v", conv.Messages[0].IsUser, conv.Messages[1].IsUser)
	}
	if conv.UpdatedAt.Before(before) {
		t.Errorf("UpdatedAt moved backwards: %v -> %v", before, conv.UpdatedAt)
	}
}

func TestConversation_AppendClockSkew(t *testing.T) {
	conv := NewConversation()
	future := time.Now().Add(time.Hour)
	conv.UpdatedAt = future

	conv.Append(NewUserMessage("hello"))

	if !conv.UpdatedAt.Equal(future) {
		t.Errorf("UpdatedAt = %v, want unchanged %v", conv.UpdatedAt, future)
	}
}

func TestConversation_Summary(t *testing.T) {
	conv := NewConversation()
	conv.Title = "Budget talk"
	conv.Append(NewUserMessage("q"))
	conv.Append(NewAssistantMessage("a"))

	sum := conv.Summary()
	if sum.ID != conv.ID || sum.Title != "Budget talk" || sum.MessageCount != 2 {
		t.Errorf("Summary() = %+v", sum)
	}
	if !sum.UpdatedAt.Equal(conv.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", sum.UpdatedAt, conv.UpdatedAt)
	}
}

func TestConversation_EngineMessages(t *testing.T) {
	conv := NewConversation()
	conv.Append(NewUserMessage("what is 2+2?"))
	conv.Append(NewAssistantMessage("4"))

	tests := []struct {
		name         string
		systemPrompt string
		wantRoles    []string
	}{
		{
			name:         "with system prompt",
			systemPrompt: "Be terse",
			wantRoles:    []string{RoleSystem, RoleUser, RoleAssistant},
		},
		{
			name:      "without system prompt",
			wantRoles: []string{RoleUser, RoleAssistant},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := conv.EngineMessages(tt.systemPrompt)
			if len(msgs) != len(tt.wantRoles) {
				t.Fatalf("got %d messages, want %d", len(msgs), len(tt.wantRoles))
			}
			for i, role := range tt.wantRoles {
				if msgs[i].Role != role {
					t.Errorf("msgs[%d].Role = %q, want %q", i, msgs[i].Role, role)
				}
			}
			if tt.systemPrompt != "" && msgs[0].Content != tt.systemPrompt {
				t.Errorf("system content = %q, want %q", msgs[0].Content, tt.systemPrompt)
			}
		})
	}
}
