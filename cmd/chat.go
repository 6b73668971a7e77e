package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/ketran/localchat/internal"
	"github.com/spf13/cobra"
)

var (
	chatServer   string
	chatModel    string
	chatSystem   string
	chatContext  int
	chatResumeID string
)

var (
	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	thinkingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat against the configured inference server.

Responses stream live. History is trimmed automatically when it no longer
fits the model's context window, and every exchange is saved locally.

In-session commands:
  /new    start a new conversation
  /quit   exit (Ctrl+C stops the current response instead)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if chatServer != "" {
			cfg.ServerURL = chatServer
		}
		if chatModel != "" {
			cfg.ModelPath = chatModel
		}
		if chatSystem != "" {
			cfg.SystemPrompt = chatSystem
		}
		if chatContext > 0 {
			cfg.ContextWindow = chatContext
		}

		engines := internal.NewEngineManager()
		defer engines.Close()
		factory := func() internal.InferenceEngine {
			return internal.NewLlamaServerEngine(cfg.ServerURL)
		}

		controller := internal.NewSessionController(cfg, engines, factory, store, newChatObserver(os.Stdout))

		ctx := context.Background()
		fmt.Printf("Connecting to %s...\n", cfg.ServerURL)
		if err := controller.LoadModel(ctx, nil); err != nil {
			return fmt.Errorf("failed to initialize engine: %w", err)
		}

		if chatResumeID != "" {
			if err := controller.OpenConversation(chatResumeID); err != nil {
				return fmt.Errorf("failed to open conversation %s: %w", chatResumeID, err)
			}
			fmt.Println(noticeStyle.Render("Resumed conversation " + chatResumeID))
		} else {
			controller.NewConversation()
		}

		// Ctrl+C stops the in-flight generation rather than the process.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			for range sigCh {
				controller.Stop()
			}
		}()

		return runChatLoop(ctx, controller, os.Stdin, os.Stdout)
	},
}

// newChatObserver renders display events to out: a dim thinking indicator
// while output is withheld, cleared in place by the first display
// character.
func newChatObserver(out io.Writer) internal.Observer {
	thinking := false
	return func(ev internal.DisplayEvent) {
		switch {
		case ev.Thinking && !thinking:
			fmt.Fprint(out, thinkingStyle.Render("thinking..."))
			thinking = true
		case ev.Text != "":
			if thinking {
				fmt.Fprint(out, "\r\033[K")
				thinking = false
			}
			fmt.Fprint(out, ev.Text)
		case ev.Done && thinking:
			fmt.Fprint(out, "\r\033[K")
			thinking = false
		}
	}
}

func runChatLoop(ctx context.Context, controller *internal.SessionController, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/new":
			conv := controller.NewConversation()
			fmt.Fprintln(out, noticeStyle.Render("Started conversation "+conv.ID))
			continue
		}

		if err := controller.Submit(ctx, line); err != nil {
			if errors.Is(err, internal.ErrGenerationInProgress) {
				fmt.Fprintln(out, noticeStyle.Render("Still generating, please wait"))
				continue
			}
			if errors.Is(err, internal.ErrEngineNotInitialized) {
				return err
			}
			internal.LogError("Submission failed: %v", err)
			continue
		}
		if controller.WasTruncated() {
			fmt.Fprintln(out, noticeStyle.Render("(older history was trimmed to fit the context window)"))
		}
		if controller.WasStopped() {
			fmt.Fprintln(out, noticeStyle.Render("(stopped)"))
		}
		fmt.Fprintln(out)
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatServer, "server", "", "Inference server base URL")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "Model name or path to request from the server")
	chatCmd.Flags().StringVar(&chatSystem, "system", "", "System prompt override")
	chatCmd.Flags().IntVar(&chatContext, "context", 0, "Context window size in tokens")
	chatCmd.Flags().StringVar(&chatResumeID, "resume", "", "Conversation ID to resume")
}
