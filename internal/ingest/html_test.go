package ingest

import (
	"net/url"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

// coursePage is long enough for readability to pick the article out.
const coursePage = `<!DOCTYPE html>
<html>
<head><title>Retrieval Augmented Generation</title></head>
<body>
<article>
<p>This course walks through retrieval augmented generation from first principles.
You will connect an embedding model to a vector database and serve answers grounded
in your own documents. Every lesson builds on the previous one with working code.</p>
<h2>Lesson 1: <a href="/rag/lesson-1">Embeddings</a></h2>
<p>Embeddings turn text into vectors that preserve meaning. Similar passages land
near each other in the vector space, which is what makes semantic search possible.
We compute embeddings for every chunk of every document before any query arrives.</p>
<p>The dimensionality of the vectors is fixed by the embedding model. Mixing models
with different dimensions in one index silently breaks distance comparisons.</p>
<h2>Lesson 2: Vector search</h2>
<p>At query time the question is embedded with the same model and compared against
the stored vectors. Cosine distance ranks the chunks; the closest few become the
context the language model reads before answering the question.</p>
<p>Filters narrow the candidate set before ranking. A course filter or a lesson
filter keeps the search inside the material the user actually asked about.</p>
</article>
</body>
</html>`

func TestArticleDocument(t *testing.T) {
	page := `<div>
<p>This course teaches everything. Really.</p>
<h2>Lesson 1: <a href="/mcp/lesson-1">Getting Started</a></h2>
<p>First steps here. More text follows.</p>
<h2>Lesson 2: Deep Dive</h2>
<p>Advanced content now. Even more text.</p>
<h3>Further Reading</h3>
<p>Tail content lands in lesson 2.</p>
</div>`
	base, err := url.Parse("https://example.com/courses/mcp")
	if err != nil {
		t.Fatal(err)
	}

	doc, err := articleDocument(page, "MCP Basics", "Elie Schoppik", base)
	if err != nil {
		t.Fatalf("articleDocument() unexpected error: %v", err)
	}

	if doc.course.Title != "MCP Basics" {
		t.Errorf("Title = %q, want %q", doc.course.Title, "MCP Basics")
	}
	if doc.course.Instructor != "Elie Schoppik" {
		t.Errorf("Instructor = %q, want %q", doc.course.Instructor, "Elie Schoppik")
	}
	if want := "https://example.com/courses/mcp"; doc.course.Link != want {
		t.Errorf("Link = %q, want %q", doc.course.Link, want)
	}

	if len(doc.course.Lessons) != 2 {
		t.Fatalf("len(Lessons) = %d, want 2", len(doc.course.Lessons))
	}
	first := doc.course.Lessons[0]
	if first.Number != 1 || first.Title != "Getting Started" {
		t.Errorf("Lessons[0] = %+v, want lesson 1 %q", first, "Getting Started")
	}
	if want := "https://example.com/mcp/lesson-1"; first.Link != want {
		t.Errorf("Lessons[0].Link = %q, want resolved %q", first.Link, want)
	}
	if second := doc.course.Lessons[1]; second.Link != "" {
		t.Errorf("Lessons[1].Link = %q, want empty for linkless heading", second.Link)
	}

	if !strings.Contains(doc.preamble, "This course teaches everything.") {
		t.Errorf("preamble = %q, want the intro paragraph", doc.preamble)
	}
	if !strings.Contains(doc.bodies[1], "Tail content lands in lesson 2.") {
		t.Errorf("bodies[1] = %q, want text after the non-lesson heading folded in", doc.bodies[1])
	}
}

func TestArticleDocument_NoLessons(t *testing.T) {
	doc, err := articleDocument("<p>Only prose. No structure.</p>", "Flat Page", "", nil)
	if err != nil {
		t.Fatalf("articleDocument() unexpected error: %v", err)
	}
	if len(doc.course.Lessons) != 0 {
		t.Errorf("len(Lessons) = %d, want 0", len(doc.course.Lessons))
	}
	if !strings.Contains(doc.preamble, "Only prose.") {
		t.Errorf("preamble = %q, want page text", doc.preamble)
	}
}

func TestArticleDocument_DuplicateLesson(t *testing.T) {
	page := "<h2>Lesson 1: A</h2><p>a</p><h2>Lesson 1: B</h2><p>b</p>"
	if _, err := articleDocument(page, "Doubled", "", nil); err == nil {
		t.Error("articleDocument() error = nil for duplicate lesson, want non-nil")
	}
}

func TestArticleDocument_EmptyTitle(t *testing.T) {
	if _, err := articleDocument("<p>text</p>", "  ", "", nil); err == nil {
		t.Error("articleDocument() error = nil for empty title, want non-nil")
	}
}

// elementCounts tallies element nodes under n by tag name.
func elementCounts(n *html.Node, counts map[string]int) {
	if n.Type == html.ElementNode {
		counts[n.Data]++
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		elementCounts(c, counts)
	}
}

func TestArticleDocument_ChunksCarryNoMarkup(t *testing.T) {
	// Chunk content goes to the embedder verbatim, so tags must not survive
	// extraction. Literal operators in code samples must: a plain "<" check
	// cannot tell the two apart, reparsing the chunk can.
	page := `<div>
<p>Go code appears <strong>inline</strong> as <code>fmt.Println</code> calls.</p>
<h2>Lesson 1: Comparisons</h2>
<p>The snippet below keeps its operators.</p>
<pre>if a &lt; b { return a }</pre>
</div>`

	doc, err := articleDocument(page, "Go Syntax", "", nil)
	if err != nil {
		t.Fatalf("articleDocument() unexpected error: %v", err)
	}
	chunks := doc.chunks(DefaultChunkSize, DefaultChunkOverlap)
	if len(chunks) == 0 {
		t.Fatal("chunks() produced no chunks")
	}

	keptSnippet := false
	for _, chunk := range chunks {
		parsed, err := html.Parse(strings.NewReader(chunk.Content))
		if err != nil {
			t.Fatalf("reparsing chunk %q: %v", chunk.Content, err)
		}
		counts := make(map[string]int)
		elementCounts(parsed, counts)
		for _, synthesized := range []string{"html", "head", "body"} {
			delete(counts, synthesized)
		}
		if len(counts) != 0 {
			t.Errorf("chunk %q still contains markup: %v", chunk.Content, counts)
		}
		if strings.Contains(chunk.Content, "a < b") {
			keptSnippet = true
		}
	}
	if !keptSnippet {
		t.Error("code sample operator did not survive extraction")
	}
}

func TestParseHTML_FullPage(t *testing.T) {
	course, chunks, err := ParseHTML(strings.NewReader(coursePage), "https://example.com/courses/rag")
	if err != nil {
		t.Fatalf("ParseHTML() unexpected error: %v", err)
	}
	if course.Title == "" {
		t.Error("ParseHTML() course title is empty")
	}
	if len(chunks) == 0 {
		t.Error("ParseHTML() produced no chunks")
	}
	for _, chunk := range chunks {
		if !strings.HasPrefix(chunk.Content, "Course "+course.Title) {
			t.Errorf("chunk %q missing course prefix", chunk.Content)
		}
	}
}
