package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern-ai/lectern/internal/log"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{}, log.NewNop())

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_WithEndpoint(t *testing.T) {
	cfg := Config{
		Endpoint:    "localhost:4318",
		Service:     "lectern-test",
		Environment: "test",
	}

	shutdown, err := Setup(context.Background(), cfg, log.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// No collector listens during tests; only verify shutdown returns
	// instead of hanging on the flush.
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = shutdown(ctx)
}
