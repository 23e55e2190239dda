package model_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/lectern-ai/lectern/internal/model"
	"github.com/lectern-ai/lectern/internal/pipeline"
	"github.com/lectern-ai/lectern/internal/testutil"
)

// flakyModel fails its first n calls with err, then answers normally.
type flakyModel struct {
	mu    sync.Mutex
	fail  int
	err   error
	calls int
}

func (f *flakyModel) register(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, "mock/flaky-model", &ai.ModelOptions{
		Supports: &ai.ModelSupports{Multiturn: true, SystemRole: true, Tools: true},
	}, func(_ context.Context, req *ai.ModelRequest, _ ai.ModelStreamCallback) (*ai.ModelResponse, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls++
		if f.calls <= f.fail {
			return nil, f.err
		}
		return &ai.ModelResponse{
			Request: req,
			Message: &ai.Message{Role: ai.RoleModel, Content: []*ai.Part{ai.NewTextPart("recovered")}},
		}, nil
	})
}

func (f *flakyModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func userRequest(text string) pipeline.ModelRequest {
	return pipeline.ModelRequest{
		System:   "You are a course assistant.",
		Messages: []*ai.Message{ai.NewUserMessage(ai.NewTextPart(text))},
	}
}

// TestNew_Validation tests required dependency checks
func TestNew_Validation(t *testing.T) {
	t.Parallel()

	t.Run("nil genkit", func(t *testing.T) {
		t.Parallel()
		_, err := model.New(model.Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Genkit instance is required")
	})

	t.Run("nil model", func(t *testing.T) {
		t.Parallel()
		g := testutil.NewGenkit(t)
		_, err := model.New(model.Config{Genkit: g})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model reference is required")
	})
}

// TestClient_Send tests a plain text round trip
func TestClient_Send(t *testing.T) {
	t.Parallel()

	g := testutil.NewGenkit(t)
	mock := testutil.NewMockModel("fallback")
	mock.Answer("capital of france", "Paris")

	c, err := model.New(model.Config{
		Genkit: g,
		Model:  mock.Register(g),
		Logger: testutil.DiscardLogger(),
	})
	require.NoError(t, err)

	resp, err := c.Send(context.Background(), userRequest("What is the capital of France?"))
	require.NoError(t, err)
	assert.Equal(t, "Paris", resp.Text())
	assert.Empty(t, resp.ToolRequests())
}

// TestClient_Send_ReturnsToolRequests tests that tool calls come back
// unexecuted
func TestClient_Send_ReturnsToolRequests(t *testing.T) {
	t.Parallel()

	g := testutil.NewGenkit(t)

	executed := false
	tool := genkit.DefineTool(g, "search_course_content", "Search course materials.",
		func(_ *ai.ToolContext, input struct {
			Query string `json:"query"`
		}) (string, error) {
			executed = true
			return "never reached", nil
		})

	mock := testutil.NewMockModel("fallback")
	mock.AnswerWithTools("find mcp", &ai.ToolRequest{
		Name:  "search_course_content",
		Ref:   "call_1",
		Input: map[string]any{"query": "mcp"},
	})

	c, err := model.New(model.Config{
		Genkit: g,
		Model:  mock.Register(g),
		Logger: testutil.DiscardLogger(),
	})
	require.NoError(t, err)

	req := userRequest("find mcp lessons")
	req.Tools = []ai.ToolRef{tool}

	resp, err := c.Send(context.Background(), req)
	require.NoError(t, err)

	reqs := resp.ToolRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "search_course_content", reqs[0].Name)
	assert.False(t, executed, "client must never auto-execute tools")
}

// TestClient_RetriesTransientFailures tests backoff recovery
func TestClient_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	g := testutil.NewGenkit(t)
	flaky := &flakyModel{fail: 2, err: fmt.Errorf("HTTP 503 service unavailable")}

	c, err := model.New(model.Config{
		Genkit:  g,
		Model:   flaky.register(g),
		Logger:  testutil.DiscardLogger(),
		Retry:   model.RetryConfig{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
		Limiter: rate.NewLimiter(rate.Inf, 0),
	})
	require.NoError(t, err)

	resp, err := c.Send(context.Background(), userRequest("hello"))
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text())
	assert.Equal(t, 3, flaky.callCount())
}

// TestClient_NonRetryableFailsFast tests immediate failure on permanent
// errors
func TestClient_NonRetryableFailsFast(t *testing.T) {
	t.Parallel()

	g := testutil.NewGenkit(t)
	flaky := &flakyModel{fail: 10, err: errors.New("invalid API key")}

	c, err := model.New(model.Config{
		Genkit:  g,
		Model:   flaky.register(g),
		Logger:  testutil.DiscardLogger(),
		Retry:   model.RetryConfig{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
		Limiter: rate.NewLimiter(rate.Inf, 0),
	})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), userRequest("hello"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid API key")
	assert.Equal(t, 1, flaky.callCount(), "permanent errors must not be retried")
}

// TestClient_ExhaustedRetries tests the final error after all attempts fail
func TestClient_ExhaustedRetries(t *testing.T) {
	t.Parallel()

	g := testutil.NewGenkit(t)
	flaky := &flakyModel{fail: 10, err: errors.New("HTTP 503 service unavailable")}

	c, err := model.New(model.Config{
		Genkit:  g,
		Model:   flaky.register(g),
		Logger:  testutil.DiscardLogger(),
		Retry:   model.RetryConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond},
		Limiter: rate.NewLimiter(rate.Inf, 0),
	})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), userRequest("hello"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, 3, flaky.callCount())
}

// TestClient_CircuitBreaker tests fail-fast once the breaker trips
func TestClient_CircuitBreaker(t *testing.T) {
	t.Parallel()

	g := testutil.NewGenkit(t)
	flaky := &flakyModel{fail: 10, err: errors.New("invalid API key")}

	c, err := model.New(model.Config{
		Genkit:  g,
		Model:   flaky.register(g),
		Logger:  testutil.DiscardLogger(),
		Breaker: model.CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Hour},
		Limiter: rate.NewLimiter(rate.Inf, 0),
	})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), userRequest("hello"))
	require.Error(t, err)
	assert.Equal(t, model.CircuitOpen, c.BreakerState())

	_, err = c.Send(context.Background(), userRequest("hello again"))
	require.ErrorIs(t, err, model.ErrCircuitOpen)
	assert.Equal(t, 1, flaky.callCount(), "open breaker must reject before calling the model")
}
