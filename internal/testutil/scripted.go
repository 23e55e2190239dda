// Package testutil provides deterministic fakes and environment helpers for
// tests: scripted pipeline collaborators, mock Genkit models and embedders,
// and containerized Postgres setup for integration tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/firebase/genkit/go/ai"

	"github.com/lectern-ai/lectern/internal/pipeline"
)

// ModelTurn describes one scripted model response.
type ModelTurn struct {
	Text  string
	Tools []*ai.ToolRequest
	Err   error
}

// TextTurn scripts a plain text answer.
func TextTurn(text string) ModelTurn { return ModelTurn{Text: text} }

// ToolTurn scripts a response requesting the given tool invocations.
func ToolTurn(reqs ...*ai.ToolRequest) ModelTurn { return ModelTurn{Tools: reqs} }

// ErrTurn scripts a failed model call.
func ErrTurn(err error) ModelTurn { return ModelTurn{Err: err} }

// ScriptedModel implements pipeline.ModelClient with a fixed sequence of
// turns, consumed one per Send. Requests are recorded for assertions on
// system prompts and attached tools. Running past the script returns an
// error so tests fail loudly instead of looping.
//
// Safe for concurrent use.
type ScriptedModel struct {
	mu    sync.Mutex
	turns []ModelTurn
	next  int
	calls []pipeline.ModelRequest
}

// NewScriptedModel builds a model that plays back turns in order.
func NewScriptedModel(turns ...ModelTurn) *ScriptedModel {
	return &ScriptedModel{turns: turns}
}

// Send implements pipeline.ModelClient.
func (m *ScriptedModel) Send(_ context.Context, req pipeline.ModelRequest) (*ai.ModelResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	if m.next >= len(m.turns) {
		return nil, fmt.Errorf("scripted model exhausted after %d calls", len(m.turns))
	}
	turn := m.turns[m.next]
	m.next++

	if turn.Err != nil {
		return nil, turn.Err
	}

	var parts []*ai.Part
	for _, tr := range turn.Tools {
		parts = append(parts, &ai.Part{Kind: ai.PartToolRequest, ToolRequest: tr})
	}
	if turn.Text != "" {
		parts = append(parts, ai.NewTextPart(turn.Text))
	}

	return &ai.ModelResponse{
		Message: &ai.Message{Role: ai.RoleModel, Content: parts},
	}, nil
}

// Calls returns a copy of every recorded request.
func (m *ScriptedModel) Calls() []pipeline.ModelRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]pipeline.ModelRequest, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// CallCount returns the number of Send invocations so far.
func (m *ScriptedModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// ExecutedTool records one FakeExecutor invocation.
type ExecutedTool struct {
	Name string
	Args map[string]any
}

// FakeExecutor implements pipeline.ToolExecutor with canned results keyed by
// tool name. Unknown tools return a generic result rather than an error, so
// scripts only configure what they assert on.
//
// Safe for concurrent use.
type FakeExecutor struct {
	mu      sync.Mutex
	results map[string]string
	errs    map[string]error
	calls   []ExecutedTool
	sources []pipeline.Source
}

// NewFakeExecutor builds an executor with no canned results.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		results: make(map[string]string),
		errs:    make(map[string]error),
	}
}

// SetResult cans the result string for a tool name.
func (f *FakeExecutor) SetResult(name, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[name] = result
}

// SetError makes a tool name fail with err.
func (f *FakeExecutor) SetError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[name] = err
}

// AddSource appends a source returned by Sources.
func (f *FakeExecutor) AddSource(src pipeline.Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, src)
}

// Execute implements pipeline.ToolExecutor.
func (f *FakeExecutor) Execute(_ context.Context, name string, args map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, ExecutedTool{Name: name, Args: args})
	if err, ok := f.errs[name]; ok {
		return "", err
	}
	if result, ok := f.results[name]; ok {
		return result, nil
	}
	return fmt.Sprintf("result from %s", name), nil
}

// Sources implements pipeline.ToolExecutor.
func (f *FakeExecutor) Sources() []pipeline.Source {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]pipeline.Source, len(f.sources))
	copy(cp, f.sources)
	return cp
}

// Calls returns a copy of every recorded invocation.
func (f *FakeExecutor) Calls() []ExecutedTool {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]ExecutedTool, len(f.calls))
	copy(cp, f.calls)
	return cp
}
