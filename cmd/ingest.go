package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lectern-ai/lectern/internal/app"
	"github.com/lectern-ai/lectern/internal/config"
	"github.com/lectern-ai/lectern/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path|url]",
	Short: "Load course documents into the knowledge base",
	Long: `Ingest parses course scripts (.txt, .md) and course pages (.html, or a URL)
into courses, lessons, and searchable chunks. Without an argument the
configured docs folder is loaded. Courses whose titles are already in the
knowledge base are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateIngest(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	target := cfg.DocsDir
	if len(args) > 0 {
		target = args[0]
	}
	if target == "" {
		return fmt.Errorf("no path given and no docs_dir configured")
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

	loader, err := ingest.NewLoader(a.Knowledge, logger,
		ingest.WithChunkSize(cfg.ChunkSize),
		ingest.WithChunkOverlap(cfg.ChunkOverlap))
	if err != nil {
		return fmt.Errorf("creating loader: %w", err)
	}

	res, err := loadTarget(ctx, loader, target)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d course(s), skipped %d, %d chunk(s) in %s\n",
		res.CoursesAdded, res.CoursesSkipped, res.ChunksAdded, res.Duration.Round(10*time.Millisecond))
	if res.FilesFailed > 0 {
		fmt.Printf("%d file(s) failed; see the log for details\n", res.FilesFailed)
	}
	return nil
}

// loadTarget dispatches on the target kind: URL, directory, or single file.
func loadTarget(ctx context.Context, loader *ingest.Loader, target string) (*ingest.Result, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		res, err := loader.LoadURL(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("ingesting %s: %w", target, err)
		}
		return res, nil
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", target, err)
	}
	if info.IsDir() {
		res, err := loader.LoadFolder(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("ingesting folder %s: %w", target, err)
		}
		return res, nil
	}

	res, err := loader.LoadFile(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("ingesting file %s: %w", target, err)
	}
	return res, nil
}
