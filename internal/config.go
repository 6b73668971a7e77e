package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt is used when the config does not provide one.
const DefaultSystemPrompt = "You are a helpful assistant. Answer concisely and accurately."

// titlePrompt instructs the title sub-generation after the first exchange.
const titlePrompt = "Generate a short title (at most six words) summarizing the following conversation. Reply with the title only, no quotes or punctuation around it."

// Config carries all tunable values. It is passed explicitly into the
// SessionController at construction; there is no ambient global state.
type Config struct {
	ServerURL      string   `yaml:"server_url"`
	ModelPath      string   `yaml:"model_path"`
	ContextWindow  int      `yaml:"context_window"`
	BudgetRatio    float64  `yaml:"budget_ratio"`
	SystemPrompt   string   `yaml:"system_prompt"`
	SpecialMarkers []string `yaml:"special_markers,omitempty"`
	ReasoningOpen  string   `yaml:"reasoning_open,omitempty"`
	ReasoningClose string   `yaml:"reasoning_close,omitempty"`
	DatabasePath   string   `yaml:"database_path,omitempty"`
	TitleMaxChars  int      `yaml:"title_max_chars,omitempty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		ServerURL:      "http://127.0.0.1:8080",
		ContextWindow:  4096,
		BudgetRatio:    DefaultBudgetRatio,
		SystemPrompt:   DefaultSystemPrompt,
		SpecialMarkers: DefaultSpecialMarkers,
		ReasoningOpen:  DefaultReasoningOpen,
		ReasoningClose: DefaultReasoningClose,
		TitleMaxChars:  40,
	}
}

// normalize fills zero values with defaults so a sparse config file works.
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.ServerURL == "" {
		c.ServerURL = def.ServerURL
	}
	if c.ContextWindow <= 0 {
		c.ContextWindow = def.ContextWindow
	}
	if c.BudgetRatio <= 0 || c.BudgetRatio > 1 {
		c.BudgetRatio = def.BudgetRatio
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = def.SystemPrompt
	}
	if len(c.SpecialMarkers) == 0 {
		c.SpecialMarkers = def.SpecialMarkers
	}
	if c.ReasoningOpen == "" {
		c.ReasoningOpen = def.ReasoningOpen
	}
	if c.ReasoningClose == "" {
		c.ReasoningClose = def.ReasoningClose
	}
	if c.TitleMaxChars <= 0 {
		c.TitleMaxChars = def.TitleMaxChars
	}
}

// Budget returns the context budget derived from this config.
func (c Config) Budget() ContextBudget {
	return ContextBudget{ContextWindow: c.ContextWindow, Ratio: c.BudgetRatio}
}

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".localchat", "config.yaml"), nil
}

// DefaultDatabasePath returns the standard conversation database location.
func DefaultDatabasePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".localchat", "conversations.db"), nil
}

// LoadConfig reads the YAML config at path. A missing file yields the
// defaults, not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// SaveConfig writes the config as YAML, creating parent directories.
func (c Config) SaveConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
