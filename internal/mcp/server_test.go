package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lectern-ai/lectern/internal/knowledge"
	"github.com/lectern-ai/lectern/internal/log"
	"github.com/lectern-ai/lectern/internal/tools"
)

// fakeSearcher backs the tool registry with canned data. ResolveCourse
// echoes the name back unless resolveErr is set.
type fakeSearcher struct {
	results    []knowledge.Result
	searchErr  error
	resolveErr error
	course     *knowledge.Course
	outlineErr error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ ...knowledge.SearchOption) ([]knowledge.Result, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func (f *fakeSearcher) ResolveCourse(_ context.Context, name string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return name, nil
}

func (f *fakeSearcher) Outline(_ context.Context, _ string) (*knowledge.Course, error) {
	if f.outlineErr != nil {
		return nil, f.outlineErr
	}
	return f.course, nil
}

func (f *fakeSearcher) LessonLink(_ context.Context, _ string, _ int) (string, error) {
	return "", nil
}

func newTestServer(t *testing.T, store tools.Searcher) *Server {
	t.Helper()

	registry, err := tools.NewRegistry(store, log.NewNop())
	if err != nil {
		t.Fatalf("NewRegistry() unexpected error: %v", err)
	}

	server, err := NewServer(Config{
		Name:     "lectern",
		Version:  "1.0.0",
		Registry: registry,
		Logger:   log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewServer() unexpected error: %v", err)
	}
	return server
}

func intPtr(n int) *int { return &n }

func TestNewServer(t *testing.T) {
	server := newTestServer(t, &fakeSearcher{})

	if server.name != "lectern" {
		t.Errorf("server.name = %q, want %q", server.name, "lectern")
	}
	if server.version != "1.0.0" {
		t.Errorf("server.version = %q, want %q", server.version, "1.0.0")
	}
	if server.mcpServer == nil {
		t.Error("server.mcpServer is nil")
	}
	if server.registry == nil {
		t.Error("server.registry is nil")
	}
}

func TestNewServer_Validation(t *testing.T) {
	registry, err := tools.NewRegistry(&fakeSearcher{}, log.NewNop())
	if err != nil {
		t.Fatalf("NewRegistry() unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "missing name",
			config:  Config{Version: "1.0.0", Registry: registry},
			wantErr: "server name is required",
		},
		{
			name:    "missing version",
			config:  Config{Name: "lectern", Registry: registry},
			wantErr: "server version is required",
		},
		{
			name:    "missing registry",
			config:  Config{Name: "lectern", Version: "1.0.0"},
			wantErr: "tool registry is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewServer(tt.config)
			if err == nil {
				t.Fatal("NewServer() error = nil, want non-nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewServer() error = %q, want to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSearchCourseContent(t *testing.T) {
	store := &fakeSearcher{
		results: []knowledge.Result{
			{CourseTitle: "MCP Basics", Lesson: intPtr(1), Content: "Servers expose tools."},
		},
	}
	server := newTestServer(t, store)

	result, _, err := server.SearchCourseContent(context.Background(), &mcp.CallToolRequest{}, tools.SearchInput{
		Query: "tools",
	})
	if err != nil {
		t.Fatalf("SearchCourseContent() unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("SearchCourseContent() returned error result: %v", result.Content)
	}

	text := resultText(t, result)
	want := "[MCP Basics - Lesson 1]\nServers expose tools."
	if text != want {
		t.Errorf("SearchCourseContent() text = %q, want %q", text, want)
	}
}

func TestSearchCourseContent_UnknownCourse(t *testing.T) {
	store := &fakeSearcher{resolveErr: knowledge.ErrCourseNotFound}
	server := newTestServer(t, store)

	result, _, err := server.SearchCourseContent(context.Background(), &mcp.CallToolRequest{}, tools.SearchInput{
		Query:      "tools",
		CourseName: "Ancient Greek",
	})
	if err != nil {
		t.Fatalf("SearchCourseContent() unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatal("SearchCourseContent() course miss should be a plain text result, not an error result")
	}

	want := "No course found matching 'Ancient Greek'"
	if text := resultText(t, result); text != want {
		t.Errorf("SearchCourseContent() text = %q, want %q", text, want)
	}
}

func TestSearchCourseContent_StoreFailure(t *testing.T) {
	store := &fakeSearcher{searchErr: errors.New("connection refused")}
	server := newTestServer(t, store)

	_, _, err := server.SearchCourseContent(context.Background(), &mcp.CallToolRequest{}, tools.SearchInput{
		Query: "tools",
	})
	if err == nil {
		t.Fatal("SearchCourseContent() error = nil, want store failure")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("SearchCourseContent() error = %q, want wrapped store error", err)
	}
}

func TestGetCourseOutline(t *testing.T) {
	store := &fakeSearcher{
		course: &knowledge.Course{
			Title:      "MCP Basics",
			Instructor: "Ada",
			Link:       "https://example.com/mcp",
			Lessons: []knowledge.Lesson{
				{Number: 1, Title: "Introduction"},
				{Number: 2, Title: "Tools"},
			},
		},
	}
	server := newTestServer(t, store)

	result, _, err := server.GetCourseOutline(context.Background(), &mcp.CallToolRequest{}, tools.OutlineInput{
		CourseName: "MCP",
	})
	if err != nil {
		t.Fatalf("GetCourseOutline() unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("GetCourseOutline() returned error result: %v", result.Content)
	}

	text := resultText(t, result)
	for _, want := range []string{"Course: MCP Basics", "Instructor: Ada", "Lessons (2 total):", "Lesson 2: Tools"} {
		if !strings.Contains(text, want) {
			t.Errorf("GetCourseOutline() text = %q, want to contain %q", text, want)
		}
	}
}

func TestGetCourseOutline_StoreFailure(t *testing.T) {
	store := &fakeSearcher{outlineErr: errors.New("connection refused")}
	server := newTestServer(t, store)

	_, _, err := server.GetCourseOutline(context.Background(), &mcp.CallToolRequest{}, tools.OutlineInput{
		CourseName: "MCP",
	})
	if err == nil {
		t.Fatal("GetCourseOutline() error = nil, want store failure")
	}
}

// resultText extracts the single text content item from a tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	if len(result.Content) != 1 {
		t.Fatalf("result has %d content items, want 1", len(result.Content))
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("result content type = %T, want *mcp.TextContent", result.Content[0])
	}
	return text.Text
}
