package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ketran/localchat/internal"
	"github.com/ketran/localchat/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOutput string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export [conversation-id]",
	Short: "Export conversations to file",
	Long: `Export saved conversations to various formats (jsonl, md, yaml, json).

With no ID, every conversation is exported. Use 'localchat list' to see
available conversation IDs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

		var ids []string
		if len(args) == 1 {
			id, err := resolveConversationID(store, args[0])
			if err != nil {
				return err
			}
			ids = []string{id}
		} else {
			summaries, err := store.LoadSummaries()
			if err != nil {
				return fmt.Errorf("failed to load conversations: %w", err)
			}
			for _, sum := range summaries {
				ids = append(ids, sum.ID)
			}
		}
		if len(ids) == 0 {
			fmt.Println("No conversations to export")
			return nil
		}

		if err := os.MkdirAll(exportOutput, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		exported := 0
		for _, id := range ids {
			conv, err := store.LoadFull(id)
			if err != nil {
				internal.LogWarn("Skipping %s: %v", id, err)
				continue
			}
			path := filepath.Join(exportOutput, fmt.Sprintf("conversation_%s.%s", conv.ID, exporter.Extension()))
			if err := writeExport(exporter, conv, path); err != nil {
				internal.LogWarn("Failed to export %s: %v", id, err)
				continue
			}
			exported++
			internal.LogDebug("Exported %s to %s", conv.ID, path)
		}

		fmt.Printf("Exported %d conversation(s) to %s\n", exported, exportOutput)
		return nil
	},
}

func writeExport(exporter export.Exporter, conv *internal.Conversation, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return exporter.Export(conv, f)
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", ".", "Output directory")
}
