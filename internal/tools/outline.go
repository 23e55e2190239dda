package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lectern-ai/lectern/internal/knowledge"
)

// CourseOutline answers a get_course_outline call. The course name is
// fuzzy-resolved first, so partial titles like "MCP" work here too.
func (r *Registry) CourseOutline(ctx context.Context, input OutlineInput) (string, error) {
	name := strings.TrimSpace(input.CourseName)

	title, err := r.store.ResolveCourse(ctx, name)
	if errors.Is(err, knowledge.ErrCourseNotFound) {
		return fmt.Sprintf("No course found matching '%s'", name), nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve course: %w", err)
	}

	course, err := r.store.Outline(ctx, title)
	if err != nil {
		return "", fmt.Errorf("course outline: %w", err)
	}

	r.logger.Debug("course outline", "course", course.Title, "lessons", len(course.Lessons))
	return formatOutline(course), nil
}

func formatOutline(course *knowledge.Course) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", course.Title)
	fmt.Fprintf(&b, "Instructor: %s\n", course.Instructor)
	if course.Link != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", course.Link)
	}
	fmt.Fprintf(&b, "\nLessons (%d total):", len(course.Lessons))
	for _, lesson := range course.Lessons {
		fmt.Fprintf(&b, "\n  Lesson %d: %s", lesson.Number, lesson.Title)
	}
	return b.String()
}
