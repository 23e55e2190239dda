package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/jackc/pgx/v5/pgxpool"
)

// stubEmbedder implements ai.Embedder without a Genkit instance. It returns
// zero vectors, a configured error, or fewer embeddings than inputs.
type stubEmbedder struct {
	err   error
	short bool
}

func (s *stubEmbedder) Name() string { return "stub-embedder" }

func (s *stubEmbedder) Register(r api.Registry) {}

func (s *stubEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	n := len(req.Input)
	if s.short {
		n = 0
	}
	embeddings := make([]*ai.Embedding, n)
	for i := range embeddings {
		vec := make([]float32, VectorDim)
		vec[0] = 1
		embeddings[i] = &ai.Embedding{Embedding: vec}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

// newStubStore builds a Store whose pool is never reached because every
// test path fails or returns before the first query.
func newStubStore(t *testing.T, embedder ai.Embedder) *Store {
	t.Helper()
	store, err := New(&pgxpool.Pool{}, embedder, nil)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	return store
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, &stubEmbedder{}, nil); err == nil || !strings.Contains(err.Error(), "pool is required") {
		t.Errorf("New(nil pool) error = %v, want pool is required", err)
	}
	if _, err := New(&pgxpool.Pool{}, nil, nil); err == nil || !strings.Contains(err.Error(), "embedder is required") {
		t.Errorf("New(nil embedder) error = %v, want embedder is required", err)
	}

	store, err := New(&pgxpool.Pool{}, &stubEmbedder{}, nil)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	if store.logger == nil {
		t.Error("New(nil logger) should default the logger")
	}
}

func TestAddCourse_EmptyTitle(t *testing.T) {
	store := newStubStore(t, &stubEmbedder{})

	_, err := store.AddCourse(context.Background(), Course{})
	if err == nil || !strings.Contains(err.Error(), "course title is required") {
		t.Errorf("AddCourse(empty title) error = %v, want title is required", err)
	}
}

func TestAddCourse_EmbedError(t *testing.T) {
	store := newStubStore(t, &stubEmbedder{err: errors.New("quota exceeded")})

	_, err := store.AddCourse(context.Background(), Course{Title: "Intro to RAG"})
	if err == nil || !strings.Contains(err.Error(), "embed title") {
		t.Errorf("AddCourse error = %v, want embed title failure", err)
	}
}

func TestAddChunks_EmptyBatchIsNoop(t *testing.T) {
	// The embedder would error if called, proving the early return.
	store := newStubStore(t, &stubEmbedder{err: errors.New("should not be called")})

	if err := store.AddChunks(context.Background(), 1, nil); err != nil {
		t.Errorf("AddChunks(nil) = %v, want nil", err)
	}
}

func TestAddChunks_EmbedError(t *testing.T) {
	store := newStubStore(t, &stubEmbedder{err: errors.New("quota exceeded")})

	err := store.AddChunks(context.Background(), 1, []Chunk{{Content: "lesson content"}})
	if err == nil || !strings.Contains(err.Error(), "embed chunks") {
		t.Errorf("AddChunks error = %v, want embed chunks failure", err)
	}
}

func TestAddChunks_EmbeddingCountMismatch(t *testing.T) {
	store := newStubStore(t, &stubEmbedder{short: true})

	err := store.AddChunks(context.Background(), 1, []Chunk{{Content: "lesson content"}})
	if err == nil || !strings.Contains(err.Error(), "0 embeddings for 1 texts") {
		t.Errorf("AddChunks error = %v, want embedding count mismatch", err)
	}
}

func TestSearch_RejectsBadQueries(t *testing.T) {
	store := newStubStore(t, &stubEmbedder{})

	if _, err := store.Search(context.Background(), "   "); err == nil || !strings.Contains(err.Error(), "query is empty") {
		t.Errorf("Search(blank) error = %v, want query is empty", err)
	}
	if _, err := store.Search(context.Background(), "bad\x00query"); err == nil || !strings.Contains(err.Error(), "NUL") {
		t.Errorf("Search(NUL) error = %v, want NUL rejection", err)
	}
}

func TestSearch_EmbedError(t *testing.T) {
	store := newStubStore(t, &stubEmbedder{err: errors.New("quota exceeded")})

	_, err := store.Search(context.Background(), "what is MCP")
	if err == nil || !strings.Contains(err.Error(), "embed query") {
		t.Errorf("Search error = %v, want embed query failure", err)
	}
}

func TestResolveCourse_EmptyName(t *testing.T) {
	store := newStubStore(t, &stubEmbedder{})

	_, err := store.ResolveCourse(context.Background(), "  ")
	if !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("ResolveCourse(blank) error = %v, want ErrCourseNotFound", err)
	}
}

func TestBuildSearchConfig(t *testing.T) {
	lesson := 4
	tests := []struct {
		name  string
		deflt int
		opts  []SearchOption
		want  searchConfig
	}{
		{name: "defaults", want: searchConfig{limit: DefaultSearchLimit}},
		{name: "store default", deflt: 8, want: searchConfig{limit: 8}},
		{name: "explicit limit", opts: []SearchOption{WithLimit(3)}, want: searchConfig{limit: 3}},
		{name: "zero limit falls back", opts: []SearchOption{WithLimit(0)}, want: searchConfig{limit: DefaultSearchLimit}},
		{name: "negative limit falls back", opts: []SearchOption{WithLimit(-7)}, want: searchConfig{limit: DefaultSearchLimit}},
		{name: "oversized limit clamps", opts: []SearchOption{WithLimit(500)}, want: searchConfig{limit: MaxSearchLimit}},
		{name: "course filter", opts: []SearchOption{WithCourse("Intro to RAG")}, want: searchConfig{course: "Intro to RAG", limit: DefaultSearchLimit}},
		{
			name: "course and lesson",
			opts: []SearchOption{WithCourse("Intro to RAG"), WithLesson(4), WithLimit(2)},
			want: searchConfig{course: "Intro to RAG", lesson: &lesson, limit: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deflt := tt.deflt
			if deflt == 0 {
				deflt = DefaultSearchLimit
			}
			got := buildSearchConfig(deflt, tt.opts)
			if got.course != tt.want.course {
				t.Errorf("course = %q, want %q", got.course, tt.want.course)
			}
			if got.limit != tt.want.limit {
				t.Errorf("limit = %d, want %d", got.limit, tt.want.limit)
			}
			switch {
			case got.lesson == nil && tt.want.lesson != nil:
				t.Errorf("lesson = nil, want %d", *tt.want.lesson)
			case got.lesson != nil && tt.want.lesson == nil:
				t.Errorf("lesson = %d, want nil", *got.lesson)
			case got.lesson != nil && tt.want.lesson != nil && *got.lesson != *tt.want.lesson:
				t.Errorf("lesson = %d, want %d", *got.lesson, *tt.want.lesson)
			}
		})
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain title", want: "plain title"},
		{in: "100% complete", want: `100\% complete`},
		{in: "under_score", want: `under\_score`},
		{in: `back\slash`, want: `back\\slash`},
		{in: `%_\`, want: `\%\_\\`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
