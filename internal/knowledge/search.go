package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

const searchChunksSQL = `
SELECT c.title, ch.lesson_number, ch.content, 1 - (ch.embedding <=> $1) AS similarity
FROM chunks ch
JOIN courses c ON c.id = ch.course_id
%s
ORDER BY ch.embedding <=> $1
LIMIT $%d`

const exactTitleSQL = `
SELECT title FROM courses WHERE lower(title) = lower($1)`

const substringTitleSQL = `
SELECT title FROM courses
WHERE title ILIKE '%' || $1 || '%'
ORDER BY length(title), title
LIMIT 1`

const nearestTitleSQL = `
SELECT title FROM courses ORDER BY title_embedding <=> $1 LIMIT 1`

// SearchOption narrows or sizes a Search call.
type SearchOption func(*searchConfig)

type searchConfig struct {
	course string
	lesson *int
	limit  int
}

// WithCourse restricts results to one course. The title must be exact;
// resolve fuzzy names with ResolveCourse first.
func WithCourse(title string) SearchOption {
	return func(cfg *searchConfig) { cfg.course = title }
}

// WithLesson restricts results to one lesson number.
func WithLesson(number int) SearchOption {
	return func(cfg *searchConfig) { cfg.lesson = &number }
}

// WithLimit caps the result count. Non-positive values fall back to the
// store's configured limit; values above MaxSearchLimit are clamped.
func WithLimit(n int) SearchOption {
	return func(cfg *searchConfig) { cfg.limit = n }
}

func buildSearchConfig(defaultLimit int, opts []SearchOption) searchConfig {
	cfg := searchConfig{limit: defaultLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.limit <= 0 {
		cfg.limit = defaultLimit
	}
	if cfg.limit > MaxSearchLimit {
		cfg.limit = MaxSearchLimit
	}
	return cfg
}

// Search returns the chunks most similar to query under cosine distance,
// optionally filtered by course title and lesson number. Results arrive
// best match first with similarity in [0, 1].
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(s.searchLimit, opts)

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("knowledge: query is empty")
	}
	if strings.ContainsRune(query, 0) {
		return nil, errors.New("knowledge: query contains NUL byte")
	}
	if runes := []rune(query); len(runes) > maxQueryLen {
		query = string(runes[:maxQueryLen])
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	args := []any{vec}
	var conds []string
	if cfg.course != "" {
		args = append(args, cfg.course)
		conds = append(conds, fmt.Sprintf("c.title = $%d", len(args)))
	}
	if cfg.lesson != nil {
		args = append(args, *cfg.lesson)
		conds = append(conds, fmt.Sprintf("ch.lesson_number = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, cfg.limit)

	rows, err := s.pool.Query(ctx, fmt.Sprintf(searchChunksSQL, where, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	return scanResults(rows)
}

// ResolveCourse maps a possibly partial or misspelled course name to a
// stored title. Exact matches win, then substring matches, then the
// semantically nearest embedded title. Returns ErrCourseNotFound only when
// the catalog is empty.
func (s *Store) ResolveCourse(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrCourseNotFound
	}

	var title string
	err := s.pool.QueryRow(ctx, exactTitleSQL, name).Scan(&title)
	if err == nil {
		return title, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("resolve course: %w", err)
	}

	// Shortest containing title wins so "MCP" prefers "MCP Basics" over a
	// longer title that also mentions it.
	err = s.pool.QueryRow(ctx, substringTitleSQL, escapeLike(name)).Scan(&title)
	if err == nil {
		return title, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("resolve course: %w", err)
	}

	vec, err := s.embed(ctx, name)
	if err != nil {
		return "", fmt.Errorf("embed course name: %w", err)
	}
	err = s.pool.QueryRow(ctx, nearestTitleSQL, vec).Scan(&title)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrCourseNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve course: %w", err)
	}

	s.logger.Debug("course resolved semantically",
		"name", name,
		"title", title)
	return title, nil
}

func scanResults(rows pgx.Rows) ([]Result, error) {
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.CourseTitle, &r.Lesson, &r.Content, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// escapeLike neutralizes LIKE wildcards in user input.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
