package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/lectern-ai/lectern/internal/log"
)

const upsertCourseSQL = `
INSERT INTO courses (title, instructor, link, title_embedding)
VALUES ($1, $2, $3, $4)
ON CONFLICT (title) DO UPDATE
SET instructor = EXCLUDED.instructor,
    link = EXCLUDED.link,
    title_embedding = EXCLUDED.title_embedding
RETURNING id`

const deleteLessonsSQL = `
DELETE FROM lessons WHERE course_id = $1`

const insertLessonSQL = `
INSERT INTO lessons (course_id, number, title, link)
VALUES ($1, $2, $3, $4)`

const deleteChunksSQL = `
DELETE FROM chunks WHERE course_id = $1`

const insertChunkSQL = `
INSERT INTO chunks (course_id, lesson_number, position, content, embedding)
VALUES ($1, $2, $3, $4, $5)`

const courseExistsSQL = `
SELECT EXISTS (SELECT 1 FROM courses WHERE title = $1)`

const courseTitlesSQL = `
SELECT title FROM courses ORDER BY title`

const courseByTitleSQL = `
SELECT id, title, instructor, link FROM courses WHERE title = $1`

const courseLessonsSQL = `
SELECT number, title, link FROM lessons WHERE course_id = $1 ORDER BY number`

const lessonLinkSQL = `
SELECT l.link
FROM lessons l
JOIN courses c ON c.id = l.course_id
WHERE c.title = $1 AND l.number = $2`

const resetSQL = `
TRUNCATE chunks, lessons, courses RESTART IDENTITY CASCADE`

// Store persists courses and their embedded content chunks in PostgreSQL.
// It is safe for concurrent use; the pool handles connection management.
type Store struct {
	pool        *pgxpool.Pool
	embedder    ai.Embedder
	embedOpts   any
	searchLimit int
	logger      log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithEmbedOptions forwards provider-specific options on every embed
// request, for example pinning the output dimensionality on Gemini
// embedders so vectors always match the schema.
func WithEmbedOptions(opts any) Option {
	return func(s *Store) { s.embedOpts = opts }
}

// WithSearchLimit sets the result cap for Search calls that do not pass
// WithLimit. Non-positive values keep DefaultSearchLimit.
func WithSearchLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.searchLimit = n
		}
	}
}

// New creates a Store. The embedder must produce vectors of VectorDim
// dimensions, matching the schema.
func New(pool *pgxpool.Pool, embedder ai.Embedder, logger log.Logger, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, errors.New("knowledge: pool is required")
	}
	if embedder == nil {
		return nil, errors.New("knowledge: embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	store := &Store{pool: pool, embedder: embedder, searchLimit: DefaultSearchLimit, logger: logger}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// AddCourse upserts a course by title and replaces its lesson list. The
// title is embedded so later lookups can resolve partial or misspelled
// names semantically. Returns the course ID for chunk insertion.
func (s *Store) AddCourse(ctx context.Context, course Course) (int64, error) {
	if course.Title == "" {
		return 0, errors.New("knowledge: course title is required")
	}

	vec, err := s.embed(ctx, course.Title)
	if err != nil {
		return 0, fmt.Errorf("embed title: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	if err := tx.QueryRow(ctx, upsertCourseSQL, course.Title, course.Instructor, course.Link, vec).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert course: %w", err)
	}
	if _, err := tx.Exec(ctx, deleteLessonsSQL, id); err != nil {
		return 0, fmt.Errorf("replace lessons: %w", err)
	}
	if len(course.Lessons) > 0 {
		batch := &pgx.Batch{}
		for _, lesson := range course.Lessons {
			batch.Queue(insertLessonSQL, id, lesson.Number, lesson.Title, lesson.Link)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return 0, fmt.Errorf("insert lessons: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("course stored",
		"title", course.Title,
		"lessons", len(course.Lessons))
	return id, nil
}

// AddChunks embeds and stores content chunks for a course, replacing any
// chunks left by an earlier ingestion of the same course. The whole batch
// is embedded in one request and inserted in one transaction.
func (s *Store) AddChunks(ctx context.Context, courseID int64, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vecs, err := s.embedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, deleteChunksSQL, courseID); err != nil {
		return fmt.Errorf("replace chunks: %w", err)
	}
	batch := &pgx.Batch{}
	for i, chunk := range chunks {
		batch.Queue(insertChunkSQL, courseID, chunk.Lesson, chunk.Position, chunk.Content, vecs[i])
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("chunks stored",
		"course_id", courseID,
		"count", len(chunks))
	return nil
}

// HasCourse reports whether a course with this exact title exists. Used by
// ingestion to skip already loaded documents.
func (s *Store) HasCourse(ctx context.Context, title string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, courseExistsSQL, title).Scan(&exists); err != nil {
		return false, fmt.Errorf("course exists: %w", err)
	}
	return exists, nil
}

// Titles returns every course title in alphabetical order.
func (s *Store) Titles(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, courseTitlesSQL)
	if err != nil {
		return nil, fmt.Errorf("list titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		titles = append(titles, title)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate titles: %w", err)
	}
	return titles, nil
}

// Outline loads a course and its ordered lesson list by exact title.
// Returns ErrCourseNotFound when no such course exists; callers resolve
// fuzzy names with ResolveCourse first.
func (s *Store) Outline(ctx context.Context, title string) (*Course, error) {
	var course Course
	err := s.pool.QueryRow(ctx, courseByTitleSQL, title).
		Scan(&course.ID, &course.Title, &course.Instructor, &course.Link)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}

	rows, err := s.pool.Query(ctx, courseLessonsSQL, course.ID)
	if err != nil {
		return nil, fmt.Errorf("load lessons: %w", err)
	}
	course.Lessons, err = scanLessons(rows)
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// LessonLink returns the link for one lesson of a course, or "" when the
// lesson has no link or does not exist.
func (s *Store) LessonLink(ctx context.Context, courseTitle string, lesson int) (string, error) {
	var link string
	err := s.pool.QueryRow(ctx, lessonLinkSQL, courseTitle, lesson).Scan(&link)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lesson link: %w", err)
	}
	return link, nil
}

// Analytics returns the course count and title list for stats reporting.
func (s *Store) Analytics(ctx context.Context) (Analytics, error) {
	titles, err := s.Titles(ctx)
	if err != nil {
		return Analytics{}, err
	}
	if titles == nil {
		titles = []string{}
	}
	return Analytics{TotalCourses: len(titles), CourseTitles: titles}, nil
}

// Reset removes every course, lesson, and chunk. Identity sequences restart
// so a follow-up ingestion produces stable IDs.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, resetSQL); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	s.logger.Info("knowledge store reset")
	return nil
}

func scanLessons(rows pgx.Rows) ([]Lesson, error) {
	defer rows.Close()

	var lessons []Lesson
	for rows.Next() {
		var lesson Lesson
		if err := rows.Scan(&lesson.Number, &lesson.Title, &lesson.Link); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}
	return lessons, nil
}

// embed produces one vector for a single text with a bounded timeout.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	ctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: s.embedOpts,
	})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, errors.New("embedder returned no embedding")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// embedBatch produces vectors for many texts in one request, preserving
// order. Ingestion-sized batches get a longer timeout than single queries.
func (s *Store) embedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	ctx, cancel := context.WithTimeout(ctx, embedBatchTimeout)
	defer cancel()

	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs, Options: s.embedOpts})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}
	vecs := make([]pgvector.Vector, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vecs[i] = pgvector.NewVector(emb.Embedding)
	}
	return vecs, nil
}
