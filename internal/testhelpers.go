package internal

import (
	"fmt"
	"time"
)

// CreateTestConversation creates a conversation with one sample exchange.
func CreateTestConversation(id string) *Conversation {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &Conversation{
		ID:        id,
		Title:     "Test Conversation",
		CreatedAt: base,
		UpdatedAt: base.Add(time.Minute),
		Messages: []ChatMessage{
			{ID: id + "-m1", Content: "Hello, how are you?", IsUser: true, Timestamp: base},
			{ID: id + "-m2", Content: "I'm doing well, thank you!", IsUser: false, Timestamp: base.Add(time.Minute)},
		},
	}
}

// CreateTestConversationWithMessages creates a conversation with custom
// message contents, alternating user/assistant starting with the user.
func CreateTestConversationWithMessages(id string, contents []string) *Conversation {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	conv := &Conversation{
		ID:        id,
		Title:     "Test Conversation",
		CreatedAt: base,
		UpdatedAt: base,
	}
	for i, content := range contents {
		conv.Messages = append(conv.Messages, ChatMessage{
			ID:        fmt.Sprintf("%s-m%d", id, i+1),
			Content:   content,
			IsUser:    i%2 == 0,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		conv.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
	}
	return conv
}
