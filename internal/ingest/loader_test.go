package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/lectern-ai/lectern/internal/knowledge"
	"github.com/lectern-ai/lectern/internal/log"
)

type fakeStore struct {
	existing map[string]bool
	courses  []knowledge.Course
	chunks   map[int64][]knowledge.Chunk
	nextID   int64

	hasErr    error
	addErr    error
	chunksErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{existing: make(map[string]bool), chunks: make(map[int64][]knowledge.Chunk)}
}

func (f *fakeStore) HasCourse(_ context.Context, title string) (bool, error) {
	if f.hasErr != nil {
		return false, f.hasErr
	}
	return f.existing[title], nil
}

func (f *fakeStore) AddCourse(_ context.Context, course knowledge.Course) (int64, error) {
	if f.addErr != nil {
		return 0, f.addErr
	}
	f.nextID++
	f.courses = append(f.courses, course)
	return f.nextID, nil
}

func (f *fakeStore) AddChunks(_ context.Context, courseID int64, chunks []knowledge.Chunk) error {
	if f.chunksErr != nil {
		return f.chunksErr
	}
	f.chunks[courseID] = chunks
	return nil
}

func newTestLoader(t *testing.T, store Store, opts ...Option) *Loader {
	t.Helper()
	l, err := NewLoader(store, log.NewNop(), opts...)
	if err != nil {
		t.Fatalf("NewLoader() unexpected error: %v", err)
	}
	return l
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNewLoader_Validation(t *testing.T) {
	t.Run("nil store", func(t *testing.T) {
		if _, err := NewLoader(nil, log.NewNop()); err == nil {
			t.Error("NewLoader(nil) error = nil, want non-nil")
		}
	})

	t.Run("overlap must stay below size", func(t *testing.T) {
		if _, err := NewLoader(newFakeStore(), log.NewNop(), WithChunkOverlap(DefaultChunkSize)); err == nil {
			t.Error("NewLoader() error = nil for overlap == size, want non-nil")
		}
	})

	t.Run("size must be positive", func(t *testing.T) {
		if _, err := NewLoader(newFakeStore(), log.NewNop(), WithChunkSize(0)); err == nil {
			t.Error("NewLoader() error = nil for zero size, want non-nil")
		}
	})
}

func TestLoadFolder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "course_a.txt"),
		"Course Title: Course A\nLesson 1: Start\nAlpha content here.\n")
	writeFile(t, filepath.Join(dir, "nested", "course_b.txt"),
		"Course Title: Course B\nLesson 1: Start\nBeta content here.\n")
	writeFile(t, filepath.Join(dir, "existing.txt"),
		"Course Title: Course C\nLesson 1: Start\nGamma content here.\n")
	writeFile(t, filepath.Join(dir, "broken.txt"), "No header at all.\n")
	writeFile(t, filepath.Join(dir, "notes.pdf"), "binary-ish")

	store := newFakeStore()
	store.existing["Course C"] = true
	loader := newTestLoader(t, store)

	res, err := loader.LoadFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadFolder() unexpected error: %v", err)
	}

	if res.CoursesAdded != 2 {
		t.Errorf("CoursesAdded = %d, want 2", res.CoursesAdded)
	}
	if res.CoursesSkipped != 1 {
		t.Errorf("CoursesSkipped = %d, want 1", res.CoursesSkipped)
	}
	if res.FilesFailed != 1 {
		t.Errorf("FilesFailed = %d, want 1", res.FilesFailed)
	}
	if res.ChunksAdded != 2 {
		t.Errorf("ChunksAdded = %d, want 2", res.ChunksAdded)
	}
	if res.Duration <= 0 {
		t.Errorf("Duration = %v, want positive", res.Duration)
	}

	var titles []string
	for _, course := range store.courses {
		titles = append(titles, course.Title)
	}
	sort.Strings(titles)
	if len(titles) != 2 || titles[0] != "Course A" || titles[1] != "Course B" {
		t.Errorf("stored courses = %v, want [Course A Course B]", titles)
	}
}

func TestLoadFolder_SecondRunSkips(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "course.txt"),
		"Course Title: Once Only\nLesson 1: Start\nContent.\n")

	store := newFakeStore()
	loader := newTestLoader(t, store)
	ctx := context.Background()

	if _, err := loader.LoadFolder(ctx, dir); err != nil {
		t.Fatalf("LoadFolder() unexpected error: %v", err)
	}
	store.existing["Once Only"] = true

	res, err := loader.LoadFolder(ctx, dir)
	if err != nil {
		t.Fatalf("LoadFolder() second run unexpected error: %v", err)
	}
	if res.CoursesAdded != 0 || res.CoursesSkipped != 1 {
		t.Errorf("second run added %d skipped %d, want 0 added 1 skipped",
			res.CoursesAdded, res.CoursesSkipped)
	}
}

func TestLoadFolder_LockHeld(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "course.txt"),
		"Course Title: Locked Out\nLesson 1: Start\nContent.\n")

	held := flock.New(filepath.Join(dir, lockFileName))
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("setup lock failed: locked=%v err=%v", locked, err)
	}
	defer func() { _ = held.Unlock() }()

	loader := newTestLoader(t, newFakeStore())
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if _, err := loader.LoadFolder(ctx, dir); err == nil {
		t.Error("LoadFolder() error = nil while the folder lock is held, want non-nil")
	}
}

func TestLoadFolder_StoreFailureCountsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "course.txt"),
		"Course Title: Unstorable\nLesson 1: Start\nContent.\n")

	store := newFakeStore()
	store.addErr = errors.New("connection refused")
	loader := newTestLoader(t, store)

	res, err := loader.LoadFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadFolder() unexpected error: %v", err)
	}
	if res.FilesFailed != 1 || res.CoursesAdded != 0 {
		t.Errorf("result = %+v, want the store failure counted per-file", res)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "course.txt")
	writeFile(t, path, "Course Title: Single\nLesson 1: Start\nContent lives here.\n")

	store := newFakeStore()
	loader := newTestLoader(t, store)

	res, err := loader.LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadFile() unexpected error: %v", err)
	}
	if res.CoursesAdded != 1 || res.ChunksAdded != 1 {
		t.Errorf("result = %+v, want one course with one chunk", res)
	}
	if len(store.courses) != 1 || store.courses[0].Title != "Single" {
		t.Errorf("stored courses = %+v, want [Single]", store.courses)
	}
}

func TestLoadFile_Unsupported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "course.pdf")
	writeFile(t, path, "not a course script")

	loader := newTestLoader(t, newFakeStore())
	if _, err := loader.LoadFile(context.Background(), path); err == nil {
		t.Error("LoadFile() error = nil for unsupported extension, want non-nil")
	}
}

func TestLoadFile_StoreError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "course.txt")
	writeFile(t, path, "Course Title: Unstorable\nLesson 1: Start\nContent.\n")

	store := newFakeStore()
	store.hasErr = errors.New("connection refused")
	loader := newTestLoader(t, store)

	if _, err := loader.LoadFile(context.Background(), path); err == nil {
		t.Error("LoadFile() error = nil when the store is down, want non-nil")
	}
}

func TestLoadURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(coursePage))
	}))
	defer server.Close()

	store := newFakeStore()
	loader := newTestLoader(t, store)

	res, err := loader.LoadURL(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("LoadURL() unexpected error: %v", err)
	}
	if res.CoursesAdded != 1 {
		t.Errorf("CoursesAdded = %d, want 1", res.CoursesAdded)
	}
	if len(store.courses) != 1 || store.courses[0].Link != server.URL {
		t.Errorf("stored courses = %+v, want one course linking back to the page", store.courses)
	}
}

func TestLoadURL_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	loader := newTestLoader(t, newFakeStore())
	if _, err := loader.LoadURL(context.Background(), server.URL); err == nil {
		t.Error("LoadURL() error = nil for 404 page, want non-nil")
	}
}
