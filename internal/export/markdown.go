package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ketran/localchat/internal"
)

// MarkdownExporter exports conversations in Markdown format
type MarkdownExporter struct{}

// Export exports a conversation to Markdown format
func (e *MarkdownExporter) Export(conv *internal.Conversation, w io.Writer) error {
	// Header
	_, _ = fmt.Fprintf(w, "# %s\n\n", conv.Title)
	_, _ = fmt.Fprintf(w, "**ID:** %s  \n", conv.ID)
	if !conv.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Created:** %s  \n", conv.CreatedAt.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(conv.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")

	// Messages
	for i, msg := range conv.Messages {
		role := "assistant"
		if msg.IsUser {
			role = "user"
		}
		timestamp := ""
		if !msg.Timestamp.IsZero() {
			timestamp = fmt.Sprintf(" (%s)", msg.Timestamp.Format(time.RFC3339))
		}

		content := escapeMarkdown(msg.Content)

		_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", role, timestamp, content)

		if i < len(conv.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

// escapeMarkdown escapes markdown special characters outside code blocks
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
