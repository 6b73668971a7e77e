package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ketran/localchat/internal"
)

// JSONLExporter exports conversations in JSONL format (one message per line)
type JSONLExporter struct{}

// Export exports a conversation to JSONL format
func (e *JSONLExporter) Export(conv *internal.Conversation, w io.Writer) error {
	enc := json.NewEncoder(w)

	for _, msg := range conv.Messages {
		role := "assistant"
		if msg.IsUser {
			role = "user"
		}
		obj := map[string]interface{}{
			"role":    role,
			"content": msg.Content,
		}
		if !msg.Timestamp.IsZero() {
			obj["timestamp"] = msg.Timestamp.Format(time.RFC3339)
		}

		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
