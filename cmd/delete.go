package cmd

import (
	"fmt"

	"github.com/ketran/localchat/internal"
	"github.com/spf13/cobra"
)

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := resolveConversationID(store, args[0])
		if err != nil {
			return err
		}
		if err := store.Delete(id); err != nil {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
		internal.LogInfo("Deleted conversation %s", id)
		fmt.Printf("Deleted %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
