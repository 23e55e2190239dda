package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lectern-ai/lectern/internal/app"
	"github.com/lectern-ai/lectern/internal/config"
	"github.com/lectern-ai/lectern/internal/log"
	"github.com/lectern-ai/lectern/internal/session"
)

var askNewSession bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askNewSession, "new", false, "start a new conversation instead of continuing the current one")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	question := strings.Join(args, " ")
	sessionID := ""
	stateDir, err := config.Dir()
	if err != nil {
		logger.Warn("config directory unavailable, conversation will not persist", "error", err)
		stateDir = ""
	}
	if stateDir != "" && !askNewSession {
		sessionID = currentSessionID(stateDir, logger)
	}

	answer, err := a.Assistant.Answer(ctx, question, sessionID)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	if stateDir != "" {
		if err := session.SaveCurrent(stateDir, answer.SessionID); err != nil {
			logger.Warn("saving current session failed", "error", err)
		}
	}

	st := defaultStyles()
	fmt.Println(newMarkdownRenderer().Render(answer.Text))
	if out := renderSources(st, answer.Sources); out != "" {
		fmt.Println()
		fmt.Print(out)
	}
	return nil
}

// currentSessionID reads the CLI's current-session state. Missing or
// unreadable state simply starts a fresh conversation.
func currentSessionID(dir string, logger log.Logger) string {
	id, err := session.LoadCurrent(dir)
	if err != nil {
		logger.Warn("loading current session failed", "error", err)
		return ""
	}
	if id == nil {
		return ""
	}
	return id.String()
}
