package internal

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is a single turn in a conversation. Content holds the raw
// text as produced (user input, or model output including any control
// markers); display cleanup happens at stream time, not here. Messages are
// never edited in place: a new message is always appended.
type ChatMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is an ordered, append-only sequence of turns. Insertion
// order is the true chronological order.
type Conversation struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ConversationSummary is the projection of a Conversation used for
// listings, so message bodies never need to be loaded.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

// NewConversation allocates an empty conversation with a fresh id. It is
// not persisted until it receives at least one message.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		Title:     "New Conversation",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewUserMessage creates a user turn.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Content:   content,
		IsUser:    true,
		Timestamp: time.Now(),
	}
}

// NewAssistantMessage creates an assistant turn.
func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Content:   content,
		IsUser:    false,
		Timestamp: time.Now(),
	}
}

// Append adds a message and bumps UpdatedAt. UpdatedAt never moves
// backwards, even if the clock does.
func (c *Conversation) Append(msg ChatMessage) {
	c.Messages = append(c.Messages, msg)
	if now := time.Now(); now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}
}

// Summary returns the listing projection for this conversation.
func (c *Conversation) Summary() ConversationSummary {
	return ConversationSummary{
		ID:           c.ID,
		Title:        c.Title,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: len(c.Messages),
	}
}

// EngineMessages builds the role-tagged list sent to the inference engine:
// the system prompt (if any) first, then every turn in order.
func (c *Conversation) EngineMessages(systemPrompt string) []EngineMessage {
	msgs := make([]EngineMessage, 0, len(c.Messages)+1)
	if systemPrompt != "" {
		msgs = append(msgs, EngineMessage{Role: RoleSystem, Content: systemPrompt})
	}
	for _, m := range c.Messages {
		role := RoleAssistant
		if m.IsUser {
			role = RoleUser
		}
		msgs = append(msgs, EngineMessage{Role: role, Content: m.Content})
	}
	return msgs
}
