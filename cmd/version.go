package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lectern-ai/lectern/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVersion(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(w io.Writer) error {
	fmt.Fprintf(w, "lectern %s\n", Version)
	fmt.Fprintf(w, "Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", GitCommit)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(w, "\nConfiguration: unavailable (%v)\n", err)
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Provider: %s\n", cfg.Provider)
	fmt.Fprintf(w, "  Model: %s\n", cfg.ModelName)
	fmt.Fprintf(w, "  Embedder: %s\n", cfg.EmbedderModel)
	fmt.Fprintf(w, "  Database: %s:%d/%s\n", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB)
	if cfg.DocsDir != "" {
		fmt.Fprintf(w, "  Docs folder: %s\n", cfg.DocsDir)
	}

	if cfg.Provider == config.ProviderGemini {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			fmt.Fprintln(w, "  GEMINI_API_KEY: configured")
		} else {
			fmt.Fprintln(w, "  GEMINI_API_KEY: not set")
		}
	}

	return nil
}
