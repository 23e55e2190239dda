package ingest

import (
	"strings"
	"testing"
)

const sampleScript = `Course Title: MCP: Build Rich-Context AI Apps with Anthropic
Course Link: https://example.com/courses/mcp
Course Instructor: Elie Schoppik

Welcome to the course. This preamble introduces everything.

Lesson 0: Introduction
Lesson Link: https://example.com/courses/mcp/lesson/0
MCP stands for Model Context Protocol. It standardizes how context reaches models.

Lesson 1: Why MCP
Lesson Link: https://example.com/courses/mcp/lesson/1
Point-to-point integrations multiply quickly. MCP collapses them into one protocol.
`

func TestParseScript_Course(t *testing.T) {
	course, _, err := ParseScript(strings.NewReader(sampleScript))
	if err != nil {
		t.Fatalf("ParseScript() unexpected error: %v", err)
	}

	if want := "MCP: Build Rich-Context AI Apps with Anthropic"; course.Title != want {
		t.Errorf("Title = %q, want %q", course.Title, want)
	}
	if want := "https://example.com/courses/mcp"; course.Link != want {
		t.Errorf("Link = %q, want %q", course.Link, want)
	}
	if want := "Elie Schoppik"; course.Instructor != want {
		t.Errorf("Instructor = %q, want %q", course.Instructor, want)
	}

	if len(course.Lessons) != 2 {
		t.Fatalf("len(Lessons) = %d, want 2", len(course.Lessons))
	}
	first := course.Lessons[0]
	if first.Number != 0 || first.Title != "Introduction" {
		t.Errorf("Lessons[0] = %+v, want lesson 0 %q", first, "Introduction")
	}
	if want := "https://example.com/courses/mcp/lesson/0"; first.Link != want {
		t.Errorf("Lessons[0].Link = %q, want %q", first.Link, want)
	}
	second := course.Lessons[1]
	if second.Number != 1 || second.Title != "Why MCP" {
		t.Errorf("Lessons[1] = %+v, want lesson 1 %q", second, "Why MCP")
	}
}

func TestParseScript_Chunks(t *testing.T) {
	course, chunks, err := ParseScript(strings.NewReader(sampleScript))
	if err != nil {
		t.Fatalf("ParseScript() unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3 (preamble + one per lesson)", len(chunks))
	}

	preamble := chunks[0]
	if preamble.Lesson != nil {
		t.Errorf("chunks[0].Lesson = %v, want nil for course-level chunk", *preamble.Lesson)
	}
	wantPreamble := "Course " + course.Title + " content: Welcome to the course. This preamble introduces everything."
	if preamble.Content != wantPreamble {
		t.Errorf("chunks[0].Content = %q, want %q", preamble.Content, wantPreamble)
	}

	for i, chunk := range chunks {
		if chunk.Position != i {
			t.Errorf("chunks[%d].Position = %d, want %d", i, chunk.Position, i)
		}
	}

	lessonChunk := chunks[1]
	if lessonChunk.Lesson == nil || *lessonChunk.Lesson != 0 {
		t.Fatalf("chunks[1].Lesson = %v, want 0", lessonChunk.Lesson)
	}
	wantPrefix := "Course " + course.Title + " Lesson 0 content: MCP stands for"
	if !strings.HasPrefix(lessonChunk.Content, wantPrefix) {
		t.Errorf("chunks[1].Content = %q, want prefix %q", lessonChunk.Content, wantPrefix)
	}
}

func TestParseScript_HeaderPrefixInsideLessonIsContent(t *testing.T) {
	script := "Course Title: Real Course\n" +
		"Lesson 1: Meta\n" +
		"Course Title: Sneaky Override\n"

	course, chunks, err := ParseScript(strings.NewReader(script))
	if err != nil {
		t.Fatalf("ParseScript() unexpected error: %v", err)
	}
	if course.Title != "Real Course" {
		t.Errorf("Title = %q, want %q", course.Title, "Real Course")
	}
	if len(chunks) != 1 || !strings.Contains(chunks[0].Content, "Course Title: Sneaky Override") {
		t.Errorf("chunks = %+v, want the would-be header kept as lesson content", chunks)
	}
}

func TestParseScript_SecondLessonLinkIsContent(t *testing.T) {
	script := "Course Title: Linked\n" +
		"Lesson 1: One\n" +
		"Lesson Link: https://example.com/first\n" +
		"Lesson Link: https://example.com/second\n"

	course, chunks, err := ParseScript(strings.NewReader(script))
	if err != nil {
		t.Fatalf("ParseScript() unexpected error: %v", err)
	}
	if want := "https://example.com/first"; course.Lessons[0].Link != want {
		t.Errorf("Lessons[0].Link = %q, want %q", course.Lessons[0].Link, want)
	}
	if len(chunks) != 1 || !strings.Contains(chunks[0].Content, "https://example.com/second") {
		t.Errorf("chunks = %+v, want the second link kept as content", chunks)
	}
}

func TestParseScript_MissingTitle(t *testing.T) {
	script := "Course Instructor: Nobody\nLesson 1: Adrift\nSome text.\n"
	if _, _, err := ParseScript(strings.NewReader(script)); err == nil {
		t.Error("ParseScript() error = nil for script without a title, want non-nil")
	}
}

func TestParseScript_DuplicateLesson(t *testing.T) {
	script := "Course Title: Doubled\nLesson 1: A\nLesson 1: B\n"
	_, _, err := ParseScript(strings.NewReader(script))
	if err == nil {
		t.Fatal("ParseScript() error = nil for duplicate lesson, want non-nil")
	}
	if !strings.Contains(err.Error(), "duplicate lesson 1") {
		t.Errorf("ParseScript() error = %v, want duplicate lesson 1", err)
	}
}

func TestParseScript_CRLF(t *testing.T) {
	script := "Course Title: Windows Course\r\nLesson 1: Lines\r\nCarriage returns everywhere.\r\n"
	course, chunks, err := ParseScript(strings.NewReader(script))
	if err != nil {
		t.Fatalf("ParseScript() unexpected error: %v", err)
	}
	if course.Title != "Windows Course" {
		t.Errorf("Title = %q, want %q", course.Title, "Windows Course")
	}
	if len(chunks) != 1 || strings.Contains(chunks[0].Content, "\r") {
		t.Errorf("chunks = %+v, want one chunk without carriage returns", chunks)
	}
}

func TestParseScript_NoLessons(t *testing.T) {
	script := "Course Title: Flat Course\nJust one paragraph of material here.\n"
	course, chunks, err := ParseScript(strings.NewReader(script))
	if err != nil {
		t.Fatalf("ParseScript() unexpected error: %v", err)
	}
	if len(course.Lessons) != 0 {
		t.Errorf("len(Lessons) = %d, want 0", len(course.Lessons))
	}
	if len(chunks) != 1 || chunks[0].Lesson != nil {
		t.Fatalf("chunks = %+v, want one course-level chunk", chunks)
	}
}
