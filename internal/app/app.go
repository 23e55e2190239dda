// Package app assembles the application: configuration in, a ready
// assistant out. Setup builds every component in dependency order and
// accumulates their cleanups so Close can release them in reverse.
package app

import (
	"errors"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lectern-ai/lectern/internal/assistant"
	"github.com/lectern-ai/lectern/internal/config"
	"github.com/lectern-ai/lectern/internal/knowledge"
	"github.com/lectern-ai/lectern/internal/log"
	"github.com/lectern-ai/lectern/internal/model"
	"github.com/lectern-ai/lectern/internal/session"
	"github.com/lectern-ai/lectern/internal/tools"
)

// App is the assembled application. Entry points pick the components
// they serve: the HTTP API drives Assistant and Sessions, the MCP
// server drives Registry, ingestion drives Knowledge.
type App struct {
	Config    *config.Config
	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	Pool      *pgxpool.Pool
	Knowledge *knowledge.Store
	Sessions  *session.Store
	Registry  *tools.Registry
	Tools     []ai.Tool
	Model     *model.Client
	Assistant *assistant.Assistant

	logger   log.Logger
	cleanups []func() error
}

// Close releases everything Setup acquired, in reverse acquisition
// order. It is safe to call on a partially built App and is a no-op
// when called again.
func (a *App) Close() error {
	if a.logger != nil {
		a.logger.Info("shutting down application")
	}

	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		errs = append(errs, a.cleanups[i]())
	}
	a.cleanups = nil
	return errors.Join(errs...)
}
