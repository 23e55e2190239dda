package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lectern-ai/lectern/internal/app"
	"github.com/lectern-ai/lectern/internal/config"
	"github.com/lectern-ai/lectern/internal/pipeline"
	"github.com/lectern-ai/lectern/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// chatState carries the REPL's conversation state between turns.
type chatState struct {
	app       *app.App
	styles    styles
	markdown  *markdownRenderer
	stateDir  string
	sessionID string
	sources   []pipeline.Source
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	state := &chatState{
		app:      a,
		styles:   defaultStyles(),
		markdown: newMarkdownRenderer(),
	}
	if dir, err := config.Dir(); err == nil {
		state.stateDir = dir
		state.sessionID = currentSessionID(dir, logger)
	} else {
		logger.Warn("config directory unavailable, conversation will not persist", "error", err)
	}

	printWelcome(ctx, state)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(state.styles.Prompt.Render("you> "))

		if !scanner.Scan() {
			// EOF (Ctrl+D)
			fmt.Println()
			fmt.Println(state.styles.Muted.Render("Goodbye."))
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if handleChatCommand(ctx, state, input) {
				break
			}
			continue
		}

		answer, err := a.Assistant.Answer(ctx, input, state.sessionID)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Println(state.styles.Error.Render("Error: " + err.Error()))
			continue
		}

		state.sessionID = answer.SessionID.String()
		state.sources = answer.Sources
		if state.stateDir != "" {
			if err := session.SaveCurrent(state.stateDir, answer.SessionID); err != nil {
				logger.Warn("saving current session failed", "error", err)
			}
		}

		fmt.Println(state.styles.Assistant.Render("lectern>"))
		fmt.Println(state.markdown.Render(answer.Text))
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// printWelcome shows the chat banner, with catalog totals when the
// knowledge base is reachable.
func printWelcome(ctx context.Context, state *chatState) {
	st := state.styles
	fmt.Println(st.Title.Render("Lectern " + Version))

	if analytics, err := state.app.Assistant.Analytics(ctx); err == nil {
		fmt.Println(st.Muted.Render(fmt.Sprintf("%d courses indexed.", analytics.TotalCourses)))
	}
	fmt.Println(st.Muted.Render("Ask about your courses. /help for commands, Ctrl+D to exit."))
	fmt.Println()
}

// handleChatCommand executes a slash command. Returns true when the REPL
// should exit.
func handleChatCommand(ctx context.Context, state *chatState, input string) bool {
	st := state.styles

	switch strings.Fields(input)[0] {
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /help       Show this help")
		fmt.Println("  /sources    Show sources for the last answer")
		fmt.Println("  /clear      Clear the conversation history")
		fmt.Println("  /exit       Leave the chat (/quit, Ctrl+D work too)")
		fmt.Println()

	case "/sources":
		if out := renderSources(st, state.sources); out != "" {
			fmt.Print(out)
		} else {
			fmt.Println(st.Muted.Render("No sources for the last answer."))
		}
		fmt.Println()

	case "/clear":
		if err := clearConversation(ctx, state); err != nil {
			fmt.Println(st.Error.Render("Error: " + err.Error()))
		} else {
			fmt.Println(st.Muted.Render("Conversation cleared."))
		}
		fmt.Println()

	case "/exit", "/quit":
		fmt.Println(st.Muted.Render("Goodbye."))
		return true

	default:
		fmt.Println(st.Muted.Render("Unknown command. /help lists the available ones."))
		fmt.Println()
	}

	return false
}

// clearConversation wipes the stored exchanges of the active session so the
// next question starts without history.
func clearConversation(ctx context.Context, state *chatState) error {
	if state.sessionID == "" {
		return nil
	}
	id, err := uuid.Parse(state.sessionID)
	if err != nil {
		state.sessionID = ""
		return nil
	}
	if err := state.app.Sessions.Clear(ctx, id); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return err
	}
	state.sources = nil
	return nil
}
