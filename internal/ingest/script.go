package ingest

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/lectern-ai/lectern/internal/knowledge"
)

var lessonHeadingRe = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

const (
	titlePrefix      = "Course Title:"
	linkPrefix       = "Course Link:"
	instructorPrefix = "Course Instructor:"
	lessonLinkPrefix = "Lesson Link:"
)

// ParseScript reads a course script: a Course Title/Link/Instructor header,
// then "Lesson N: title" sections, each optionally carrying a Lesson Link
// line. Text before the first lesson becomes course-level chunks.
func ParseScript(r io.Reader) (knowledge.Course, []knowledge.Chunk, error) {
	doc, err := parseScript(r)
	if err != nil {
		return knowledge.Course{}, nil, err
	}
	return doc.course, doc.chunks(DefaultChunkSize, DefaultChunkOverlap), nil
}

func parseScript(r io.Reader) (*document, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := &document{}
	var preamble strings.Builder
	var sections []*strings.Builder
	body := &preamble
	seen := make(map[int]bool)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if m := lessonHeadingRe.FindStringSubmatch(line); m != nil {
			num, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("ingest: lesson number %q: %w", m[1], err)
			}
			if seen[num] {
				return nil, fmt.Errorf("ingest: duplicate lesson %d", num)
			}
			seen[num] = true
			doc.course.Lessons = append(doc.course.Lessons, knowledge.Lesson{
				Number: num,
				Title:  strings.TrimSpace(m[2]),
			})
			body = &strings.Builder{}
			sections = append(sections, body)
			continue
		}

		// header prefixes only count before the first lesson
		if len(doc.course.Lessons) == 0 {
			switch {
			case strings.HasPrefix(line, titlePrefix):
				doc.course.Title = strings.TrimSpace(strings.TrimPrefix(line, titlePrefix))
				continue
			case strings.HasPrefix(line, linkPrefix):
				doc.course.Link = strings.TrimSpace(strings.TrimPrefix(line, linkPrefix))
				continue
			case strings.HasPrefix(line, instructorPrefix):
				doc.course.Instructor = strings.TrimSpace(strings.TrimPrefix(line, instructorPrefix))
				continue
			}
		} else if strings.HasPrefix(line, lessonLinkPrefix) {
			last := &doc.course.Lessons[len(doc.course.Lessons)-1]
			if last.Link == "" {
				last.Link = strings.TrimSpace(strings.TrimPrefix(line, lessonLinkPrefix))
				continue
			}
		}

		if line != "" {
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ingest: read script: %w", err)
	}
	if doc.course.Title == "" {
		return nil, fmt.Errorf("ingest: missing course title")
	}

	doc.preamble = preamble.String()
	doc.bodies = make([]string, len(sections))
	for i, b := range sections {
		doc.bodies[i] = b.String()
	}
	return doc, nil
}
