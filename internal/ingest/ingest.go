// Package ingest turns course material on disk or on the web into stored,
// searchable knowledge. It understands two shapes of input: course scripts
// (a Course Title/Link/Instructor header followed by "Lesson N: title"
// sections) and HTML course pages, which are reduced to the same model via
// readability extraction.
//
// Parsed courses are cut into sentence-aligned chunks with the course and
// lesson woven into each chunk, so a chunk retrieved on its own still says
// where it came from.
package ingest

import (
	"fmt"

	"github.com/lectern-ai/lectern/internal/knowledge"
)

// Chunking defaults, in characters.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

// document is a parsed course plus the raw text of each part, before
// chunking. bodies runs parallel to course.Lessons; preamble is any text
// that appeared before the first lesson heading.
type document struct {
	course   knowledge.Course
	preamble string
	bodies   []string
}

// chunks cuts every part of the document into prefixed knowledge chunks.
// Positions run in one sequence across the whole course.
func (d *document) chunks(size, overlap int) []knowledge.Chunk {
	var out []knowledge.Chunk
	pos := 0

	for _, piece := range chunkText(d.preamble, size, overlap) {
		out = append(out, knowledge.Chunk{
			Position: pos,
			Content:  fmt.Sprintf("Course %s content: %s", d.course.Title, piece),
		})
		pos++
	}

	for i, lesson := range d.course.Lessons {
		n := lesson.Number
		for _, piece := range chunkText(d.bodies[i], size, overlap) {
			out = append(out, knowledge.Chunk{
				Lesson:   &n,
				Position: pos,
				Content:  fmt.Sprintf("Course %s Lesson %d content: %s", d.course.Title, n, piece),
			})
			pos++
		}
	}

	return out
}
