package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/ketran/localchat/internal"
	"github.com/spf13/cobra"
)

var showLimit int

var (
	// Styles for show command
	convHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Padding(0, 1).
			MarginBottom(1)

	convMetaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			MarginBottom(1)

	userLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true).
			Padding(0, 1)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Show a saved conversation",
	Long:  `Display all messages of a saved conversation. A unique ID prefix is accepted.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := resolveConversationID(store, args[0])
		if err != nil {
			return err
		}
		conv, err := store.LoadFull(id)
		if err != nil {
			return fmt.Errorf("failed to load conversation: %w", err)
		}

		displayConversation(conv, cfg)
		return nil
	},
}

func displayConversation(conv *internal.Conversation, cfg internal.Config) {
	fmt.Println(convHeaderStyle.Render(conv.Title))
	fmt.Println(convMetaStyle.Render(fmt.Sprintf("ID: %s · %d message(s) · created %s",
		conv.ID, len(conv.Messages), conv.CreatedAt.Format(time.RFC3339))))

	messages := conv.Messages
	if showLimit > 0 && len(messages) > showLimit {
		fmt.Println(convMetaStyle.Render(fmt.Sprintf("(showing last %d of %d messages)", showLimit, len(messages))))
		messages = messages[len(messages)-showLimit:]
	}

	// Stored assistant content is raw model output; sanitize it the same
	// way the live stream was sanitized before display.
	for _, msg := range messages {
		label := assistantLabelStyle.Render("assistant")
		content := msg.Content
		if msg.IsUser {
			label = userLabelStyle.Render("user")
		} else {
			sanitizer := internal.NewStreamSanitizer(cfg.SpecialMarkers, cfg.ReasoningOpen, cfg.ReasoningClose)
			content = sanitizer.Write(content) + sanitizer.Flush()
		}

		ts := timestampStyle.Render(msg.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Printf("%s %s\n", label, ts)
		fmt.Println(messageContentStyle.Render(content))
	}
}

// resolveConversationID accepts a full ID or a unique prefix.
func resolveConversationID(store *internal.ConversationStore, prefix string) (string, error) {
	if _, err := store.LoadFull(prefix); err == nil {
		return prefix, nil
	} else if !errors.Is(err, internal.ErrNotFound) {
		return "", err
	}

	summaries, err := store.LoadSummaries()
	if err != nil {
		return "", err
	}
	var matches []string
	for _, sum := range summaries {
		if strings.HasPrefix(sum.ID, prefix) {
			matches = append(matches, sum.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no conversation matches %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous ID prefix %q matches %d conversations", prefix, len(matches))
	}
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVar(&showLimit, "limit", 0, "Show only the last N messages")
}
