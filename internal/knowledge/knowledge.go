// Package knowledge stores course material as embedded chunks in PostgreSQL
// with pgvector and answers semantic search, course resolution, and outline
// queries over it.
//
// The store keeps three tables: courses (with an embedded title for fuzzy
// resolution), lessons, and content chunks. All similarity work uses cosine
// distance over 768-dimensional vectors.
package knowledge

import (
	"errors"
	"time"
)

// ErrCourseNotFound is returned when no course matches a title or a
// resolution query, including when the catalog is empty.
var ErrCourseNotFound = errors.New("knowledge: course not found")

// VectorDim is the embedding dimensionality for all stored vectors.
const VectorDim = 768

const (
	// DefaultSearchLimit caps results when the caller does not ask for a
	// specific count.
	DefaultSearchLimit = 5
	// MaxSearchLimit is the hard ceiling on requested results.
	MaxSearchLimit = 20

	maxQueryLen       = 8192
	embedTimeout      = 10 * time.Second
	embedBatchTimeout = 60 * time.Second
	searchTimeout     = 10 * time.Second
)

// Course describes one ingested course and its lesson list.
type Course struct {
	ID         int64
	Title      string
	Instructor string
	Link       string
	Lessons    []Lesson
}

// Lesson is one entry of a course outline.
type Lesson struct {
	Number int
	Title  string
	Link   string
}

// Chunk is one embeddable piece of course content. Lesson is nil for
// course-level material that precedes any lesson marker.
type Chunk struct {
	Lesson   *int
	Position int
	Content  string
}

// Result is one semantic search hit.
type Result struct {
	CourseTitle string
	Lesson      *int
	Content     string
	Similarity  float64
}

// Analytics summarizes the catalog for the stats endpoints.
type Analytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}
