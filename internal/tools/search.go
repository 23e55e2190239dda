package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lectern-ai/lectern/internal/knowledge"
	"github.com/lectern-ai/lectern/internal/pipeline"
)

// SearchContent answers a search_course_content call. Application-level
// misses (unknown course, no hits) come back as result strings for the
// model to read; only operational failures return an error.
func (r *Registry) SearchContent(ctx context.Context, input SearchInput) (string, []pipeline.Source, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return "", nil, fmt.Errorf("tools: query is required")
	}

	var opts []knowledge.SearchOption
	if name := strings.TrimSpace(input.CourseName); name != "" {
		title, err := r.store.ResolveCourse(ctx, name)
		if errors.Is(err, knowledge.ErrCourseNotFound) {
			return fmt.Sprintf("No course found matching '%s'", name), nil, nil
		}
		if err != nil {
			return "", nil, fmt.Errorf("resolve course: %w", err)
		}
		opts = append(opts, knowledge.WithCourse(title))
	}
	if input.LessonNumber != nil {
		opts = append(opts, knowledge.WithLesson(*input.LessonNumber))
	}

	results, err := r.store.Search(ctx, query, opts...)
	if err != nil {
		return "", nil, fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		return noContentMessage(input), nil, nil
	}

	out, sources := r.formatSearch(ctx, results)
	r.logger.Debug("course search", "hits", len(results))
	return out, sources, nil
}

// formatSearch renders each hit as a "[Course - Lesson N]" block and pairs
// it with a source entry. Lesson links are best-effort; a lookup failure
// drops the link, never the hit.
func (r *Registry) formatSearch(ctx context.Context, results []knowledge.Result) (string, []pipeline.Source) {
	blocks := make([]string, 0, len(results))
	sources := make([]pipeline.Source, 0, len(results))

	for _, res := range results {
		label := res.CourseTitle
		link := ""
		if res.Lesson != nil {
			label = fmt.Sprintf("%s - Lesson %d", res.CourseTitle, *res.Lesson)
			l, err := r.store.LessonLink(ctx, res.CourseTitle, *res.Lesson)
			if err != nil {
				r.logger.Warn("lesson link lookup failed",
					"course", res.CourseTitle, "lesson", *res.Lesson, "error", err)
			} else {
				link = l
			}
		}
		blocks = append(blocks, "["+label+"]\n"+res.Content)
		sources = append(sources, pipeline.Source{Text: label, Link: link})
	}

	return strings.Join(blocks, "\n\n"), sources
}

// noContentMessage echoes the caller's own filters back, so the model can
// tell an empty catalog apart from an over-narrow search.
func noContentMessage(input SearchInput) string {
	var b strings.Builder
	b.WriteString("No relevant content found")
	if name := strings.TrimSpace(input.CourseName); name != "" {
		fmt.Fprintf(&b, " in course '%s'", name)
	}
	if input.LessonNumber != nil {
		fmt.Fprintf(&b, " in lesson %d", *input.LessonNumber)
	}
	b.WriteString(".")
	return b.String()
}
