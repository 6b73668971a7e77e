package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ketran/localchat/internal"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	dbPath     string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "localchat",
	Short: "Chat with a local LLM and manage saved conversations",
	Long: `A CLI for chatting with a local llama.cpp-compatible inference server.

Conversations are streamed live, kept within the model's context window,
and persisted locally so you can revisit, export, or continue them later.

Quick Start:
  localchat chat                   # Start an interactive chat
  localchat list                   # List saved conversations
  localchat show <id>              # View a conversation
  localchat export <id> --format md`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the conversation database")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// loadConfig resolves the effective config from flags and the config file.
func loadConfig() (internal.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = internal.DefaultConfigPath()
		if err != nil {
			return internal.DefaultConfig(), err
		}
	}
	cfg, err := internal.LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath, err = internal.DefaultDatabasePath()
		if err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// openStore opens the conversation store for the effective config.
func openStore() (*internal.ConversationStore, internal.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, fmt.Errorf("failed to load config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, cfg, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := internal.OpenStore(cfg.DatabasePath)
	if err != nil {
		return nil, cfg, fmt.Errorf("failed to open conversation store: %w", err)
	}
	return store, cfg, nil
}
