package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/ketran/localchat/internal"
	"github.com/spf13/cobra"
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations",
	Long:  `List all saved conversations, most recently updated first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		summaries, err := store.LoadSummaries()
		if err != nil {
			return fmt.Errorf("failed to load conversations: %w", err)
		}

		displaySummaries(summaries)
		return nil
	},
}

func displaySummaries(summaries []internal.ConversationSummary) {
	if len(summaries) == 0 {
		fmt.Println(headerStyle.Render("No conversations found"))
		return
	}

	header := headerStyle.Render(fmt.Sprintf("Found %d conversation(s)", len(summaries)))
	fmt.Println(header)
	fmt.Println()

	// Use tabwriter for aligned columns
	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', tabwriter.AlignRight)

	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Updated")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 100))

	for _, sum := range summaries {
		title := sum.Title
		if title == "" {
			title = "Untitled"
		}
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		title = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Render(title)

		msgCount := countStyle.Render(strconv.Itoa(sum.MessageCount))
		updated := dateStyle.Render(formatListTime(sum.UpdatedAt))

		// Short ID for readability; the full ID works with show/export.
		shortID := sum.ID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}
		id := idStyle.Render(shortID)

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", id, title, msgCount, updated)
	}

	_ = w.Flush()
	fmt.Println()
	fmt.Println(idStyle.Render("Tip: use the full ID (e.g. ") +
		lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Render(summaries[0].ID) +
		idStyle.Render(") with `localchat show <id>`"))
}

func formatListTime(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	now := time.Now()
	diff := now.Sub(t)
	switch {
	case diff < 24*time.Hour:
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
}
