package ingest

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/lectern-ai/lectern/internal/knowledge"
)

// ParseHTML extracts the readable article from an HTML course page and
// builds a course from it. Headings that look like "Lesson N: title" split
// the page into lessons; anything before the first one is course-level.
func ParseHTML(r io.Reader, pageURL string) (knowledge.Course, []knowledge.Chunk, error) {
	doc, err := parseHTML(r, pageURL)
	if err != nil {
		return knowledge.Course{}, nil, err
	}
	return doc.course, doc.chunks(DefaultChunkSize, DefaultChunkOverlap), nil
}

func parseHTML(r io.Reader, pageURL string) (*document, error) {
	var base *url.URL
	if pageURL != "" {
		parsed, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("ingest: parse page url: %w", err)
		}
		base = parsed
	}

	article, err := readability.FromReader(r, base)
	if err != nil {
		return nil, fmt.Errorf("ingest: extract article: %w", err)
	}
	return articleDocument(article.Content, article.Title, article.Byline, base)
}

// articleDocument builds a course document from extracted article HTML.
// Relative lesson links are resolved against base when it is set.
func articleDocument(content, title, byline string, base *url.URL) (*document, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("ingest: page has no course title")
	}

	gq, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("ingest: parse article html: %w", err)
	}

	doc := &document{course: knowledge.Course{
		Title:      strings.TrimSpace(title),
		Instructor: strings.TrimSpace(byline),
	}}
	if base != nil {
		doc.course.Link = base.String()
	}

	var preamble strings.Builder
	var sections []*strings.Builder
	body := &preamble
	seen := make(map[int]bool)
	var dupErr error

	gq.Find("h1, h2, h3, h4, p, li, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if dupErr != nil {
			return
		}
		if s.Is("h1, h2, h3, h4") {
			m := lessonHeadingRe.FindStringSubmatch(strings.TrimSpace(s.Text()))
			if m == nil {
				return
			}
			num, err := strconv.Atoi(m[1])
			if err != nil {
				return
			}
			if seen[num] {
				dupErr = fmt.Errorf("ingest: duplicate lesson %d", num)
				return
			}
			seen[num] = true
			doc.course.Lessons = append(doc.course.Lessons, knowledge.Lesson{
				Number: num,
				Title:  strings.TrimSpace(m[2]),
				Link:   resolveLink(s.Find("a[href]").First().AttrOr("href", ""), base),
			})
			b := &strings.Builder{}
			sections = append(sections, b)
			body = b
			return
		}

		if text := strings.TrimSpace(s.Text()); text != "" {
			body.WriteString(text)
			body.WriteByte('\n')
		}
	})
	if dupErr != nil {
		return nil, dupErr
	}

	doc.preamble = preamble.String()
	doc.bodies = make([]string, len(sections))
	for i, b := range sections {
		doc.bodies[i] = b.String()
	}
	return doc, nil
}

func resolveLink(href string, base *url.URL) string {
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
