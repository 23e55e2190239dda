// Package tools implements the course tools the model can call while
// answering a query: semantic search over course content and course
// outlines.
//
// Tools are defined on genkit so the model sees their names and input
// schemas, but they are never auto-executed: the query pipeline requests
// tool use back from the model and dispatches it through a per-run
// Execution, which also collects the sources behind the answer.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/lectern-ai/lectern/internal/knowledge"
	"github.com/lectern-ai/lectern/internal/log"
)

// Tool names as the model sees them.
const (
	SearchToolName  = "search_course_content"
	OutlineToolName = "get_course_outline"
)

// SearchInput is the argument schema for search_course_content.
type SearchInput struct {
	Query        string `json:"query" jsonschema_description:"What to search for in the course content"`
	CourseName   string `json:"course_name,omitempty" jsonschema_description:"Course title (partial matches work, e.g. 'MCP', 'Introduction')"`
	LessonNumber *int   `json:"lesson_number,omitempty" jsonschema_description:"Specific lesson number to search within (e.g. 1, 2, 3)"`
}

// OutlineInput is the argument schema for get_course_outline.
type OutlineInput struct {
	CourseName string `json:"course_name" jsonschema_description:"Course title or partial title to get outline for (e.g. 'MCP', 'Introduction')"`
}

// Searcher is the slice of the knowledge store the tools consume.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
	ResolveCourse(ctx context.Context, name string) (string, error)
	Outline(ctx context.Context, title string) (*knowledge.Course, error)
	LessonLink(ctx context.Context, courseTitle string, lesson int) (string, error)
}

// Registry holds the tool handlers and their shared dependencies. It is
// stateless across runs; per-run state lives in the Execution it mints.
type Registry struct {
	store  Searcher
	logger log.Logger
}

// NewRegistry creates a tool registry backed by the given store.
func NewRegistry(store Searcher, logger log.Logger) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("tools: store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, logger: logger}, nil
}

// Names returns the tool names in registration order.
func Names() []string {
	return []string{SearchToolName, OutlineToolName}
}

// Register defines both course tools on the genkit instance so their
// schemas are advertised to the model. Call it once per instance.
func (r *Registry) Register(g *genkit.Genkit) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("tools: genkit instance is required")
	}

	searchTool := genkit.DefineTool(g, SearchToolName,
		"Search course materials with smart course name matching and lesson filtering",
		func(tctx *ai.ToolContext, input SearchInput) (string, error) {
			out, _, err := r.SearchContent(tctx.Context, input)
			return out, err
		})

	outlineTool := genkit.DefineTool(g, OutlineToolName,
		"Get course outline including title, link, and complete list of lessons",
		func(tctx *ai.ToolContext, input OutlineInput) (string, error) {
			return r.CourseOutline(tctx.Context, input)
		})

	r.logger.Debug("course tools registered", "count", 2)
	return []ai.Tool{searchTool, outlineTool}, nil
}
