package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/lectern-ai/lectern/internal/knowledge"
	"github.com/lectern-ai/lectern/internal/log"
)

// Store is the slice of the knowledge store the loader writes through.
type Store interface {
	HasCourse(ctx context.Context, title string) (bool, error)
	AddCourse(ctx context.Context, course knowledge.Course) (int64, error)
	AddChunks(ctx context.Context, courseID int64, chunks []knowledge.Chunk) error
}

// Result counts what one load did.
type Result struct {
	CoursesAdded   int
	CoursesSkipped int
	ChunksAdded    int
	FilesFailed    int
	Duration       time.Duration
}

var supportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
}

const (
	lockFileName   = ".ingest.lock"
	lockRetryDelay = 250 * time.Millisecond

	// maxPageBytes caps how much of a fetched course page is read.
	maxPageBytes = 8 << 20
)

// Loader ingests course files and pages into a knowledge store, skipping
// titles that are already present.
type Loader struct {
	store   Store
	logger  log.Logger
	client  *http.Client
	size    int
	overlap int
}

// Option configures a Loader.
type Option func(*Loader)

// WithChunkSize overrides the chunk size in characters.
func WithChunkSize(n int) Option {
	return func(l *Loader) { l.size = n }
}

// WithChunkOverlap overrides the chunk overlap in characters.
func WithChunkOverlap(n int) Option {
	return func(l *Loader) { l.overlap = n }
}

// WithHTTPClient overrides the client used by LoadURL.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// NewLoader creates a loader writing through the given store.
func NewLoader(store Store, logger log.Logger, opts ...Option) (*Loader, error) {
	if store == nil {
		return nil, fmt.Errorf("ingest: store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		store:   store,
		logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.size <= 0 {
		return nil, fmt.Errorf("ingest: chunk size must be positive, got %d", l.size)
	}
	if l.overlap < 0 || l.overlap >= l.size {
		return nil, fmt.Errorf("ingest: chunk overlap %d must be in [0, %d)", l.overlap, l.size)
	}
	return l, nil
}

// LoadFolder ingests every supported file under dir. A file lock inside the
// folder serializes concurrent loads of the same folder; per-file failures
// are counted and logged, never fatal.
func (l *Loader) LoadFolder(ctx context.Context, dir string) (*Result, error) {
	start := time.Now()

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: resolve folder: %w", err)
	}

	lock := flock.New(filepath.Join(abs, lockFileName))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("ingest: acquire folder lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("ingest: folder %s is locked by another ingest", abs)
	}
	defer func() { _ = lock.Unlock() }()

	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("ingest: open folder: %w", err)
	}
	defer func() { _ = root.Close() }()

	res := &Result{}
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			res.FilesFailed++
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			res.FilesFailed++
			return nil
		}
		if rel == lockFileName || !supportedExtensions[strings.ToLower(filepath.Ext(rel))] {
			return nil
		}
		if err := l.ingestFile(ctx, root, rel, res); err != nil {
			res.FilesFailed++
			l.logger.Warn("course file failed", "file", rel, "error", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: walk folder: %w", err)
	}

	res.Duration = time.Since(start)
	l.logger.Info("folder ingested", "dir", abs,
		"added", res.CoursesAdded, "skipped", res.CoursesSkipped,
		"failed", res.FilesFailed, "chunks", res.ChunksAdded)
	return res, nil
}

// LoadFile ingests one course file.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Result, error) {
	start := time.Now()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: resolve file: %w", err)
	}

	root, err := os.OpenRoot(filepath.Dir(abs))
	if err != nil {
		return nil, fmt.Errorf("ingest: open folder: %w", err)
	}
	defer func() { _ = root.Close() }()

	res := &Result{}
	if err := l.ingestFile(ctx, root, filepath.Base(abs), res); err != nil {
		return nil, fmt.Errorf("ingest: %s: %w", filepath.Base(abs), err)
	}
	res.Duration = time.Since(start)
	return res, nil
}

// LoadURL fetches a course page and ingests it.
func (l *Loader) LoadURL(ctx context.Context, pageURL string) (*Result, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingest: fetch page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ingest: fetch page: unexpected status %s", resp.Status)
	}

	doc, err := parseHTML(io.LimitReader(resp.Body, maxPageBytes), pageURL)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if err := l.storeDocument(ctx, doc, res); err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (l *Loader) ingestFile(ctx context.Context, root *os.Root, rel string, res *Result) error {
	data, err := root.ReadFile(rel)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	var doc *document
	switch ext := strings.ToLower(filepath.Ext(rel)); ext {
	case ".txt", ".md":
		doc, err = parseScript(bytes.NewReader(data))
	case ".html", ".htm":
		doc, err = parseHTML(bytes.NewReader(data), "")
	default:
		return fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return err
	}
	return l.storeDocument(ctx, doc, res)
}

func (l *Loader) storeDocument(ctx context.Context, doc *document, res *Result) error {
	title := doc.course.Title

	exists, err := l.store.HasCourse(ctx, title)
	if err != nil {
		return fmt.Errorf("check course: %w", err)
	}
	if exists {
		res.CoursesSkipped++
		l.logger.Debug("course already ingested", "course", title)
		return nil
	}

	id, err := l.store.AddCourse(ctx, doc.course)
	if err != nil {
		return fmt.Errorf("store course: %w", err)
	}
	chunks := doc.chunks(l.size, l.overlap)
	if err := l.store.AddChunks(ctx, id, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	res.CoursesAdded++
	res.ChunksAdded += len(chunks)
	l.logger.Info("course ingested", "course", title,
		"lessons", len(doc.course.Lessons), "chunks", len(chunks))
	return nil
}
