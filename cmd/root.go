// Package cmd provides the lectern CLI.
//
// Commands:
//   - serve: HTTP JSON API server
//   - ask: answer a single question and exit
//   - chat: interactive conversation (line-oriented REPL)
//   - ingest: load course documents into the knowledge base
//   - sessions: inspect and manage stored conversations
//   - mcp: Model Context Protocol server for editor integration
//   - version: build and configuration information
//
// Long-running commands install signal handlers and shut down via context
// cancellation. Logs go to stderr; stdout carries command output only, so
// the MCP JSON-RPC framing on stdio stays clean.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lectern-ai/lectern/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "lectern",
	Short: "Lectern - course materials assistant",
	Long: `Lectern answers questions about ingested course materials.

It searches course content and outlines with vector similarity, reasons over
the results in bounded tool rounds, and keeps conversation context across
questions. Running lectern without a subcommand starts an interactive chat.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the CLI logger. DEBUG in the environment lowers the
// level; output goes to stderr so stdout stays reserved for results.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}
