// Package assistant ties the answer pipeline to its collaborators: course
// knowledge tools, conversation sessions, and the model client. The HTTP
// API, the CLI, and the MCP server all answer questions through this one
// facade.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/lectern-ai/lectern/internal/knowledge"
	"github.com/lectern-ai/lectern/internal/log"
	"github.com/lectern-ai/lectern/internal/pipeline"
	"github.com/lectern-ai/lectern/internal/session"
	"github.com/lectern-ai/lectern/internal/tools"
)

// ErrInvalidSession indicates a session ID that is not a UUID.
var ErrInvalidSession = errors.New("invalid session")

// SessionStore is the slice of the session store the assistant needs.
type SessionStore interface {
	Create(ctx context.Context) (*session.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*session.Session, error)
	AppendExchange(ctx context.Context, id uuid.UUID, query, answer string) error
	History(ctx context.Context, id uuid.UUID, limit int) (string, error)
}

// CourseStore is the slice of the knowledge store the stats surfaces need.
type CourseStore interface {
	Analytics(ctx context.Context) (knowledge.Analytics, error)
}

// Config carries the assistant's dependencies and tuning.
type Config struct {
	Orchestrator *pipeline.Orchestrator
	Model        pipeline.ModelClient
	Registry     *tools.Registry
	Tools        []ai.Tool
	Sessions     SessionStore
	Courses      CourseStore
	Logger       log.Logger

	// MaxRounds caps tool-enabled pipeline rounds per query. Non-positive
	// means pipeline.DefaultMaxRounds.
	MaxRounds int
	// HistoryLimit is how many prior exchanges feed the prompt.
	// Non-positive means session.DefaultHistoryLimit.
	HistoryLimit int
}

func (cfg Config) validate() error {
	if cfg.Orchestrator == nil {
		return errors.New("orchestrator is required")
	}
	if cfg.Model == nil {
		return errors.New("model client is required")
	}
	if cfg.Registry == nil {
		return errors.New("tool registry is required")
	}
	if len(cfg.Tools) == 0 {
		return errors.New("at least one tool is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if cfg.Courses == nil {
		return errors.New("course store is required")
	}
	return nil
}

// Answer is one answered query. SessionID is the session the exchange was
// recorded under, which differs from the requested one when the assistant
// started a fresh conversation.
type Answer struct {
	Text      string
	Sources   []pipeline.Source
	SessionID uuid.UUID
}

// Stats combines pipeline run counters with catalog totals.
type Stats struct {
	Pipeline pipeline.Snapshot   `json:"pipeline"`
	Courses  knowledge.Analytics `json:"courses"`
}

// Assistant answers course questions. It is stateless per request and safe
// for concurrent use; each query gets its own tool execution.
type Assistant struct {
	orchestrator *pipeline.Orchestrator
	model        pipeline.ModelClient
	registry     *tools.Registry
	toolRefs     []ai.ToolRef
	sessions     SessionStore
	courses      CourseStore
	logger       log.Logger
	maxRounds    int
	historyLimit int
}

// New creates an Assistant.
func New(cfg Config) (*Assistant, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("assistant: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = pipeline.DefaultMaxRounds
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = session.DefaultHistoryLimit
	}

	toolRefs := make([]ai.ToolRef, len(cfg.Tools))
	for i, t := range cfg.Tools {
		toolRefs[i] = t
	}

	a := &Assistant{
		orchestrator: cfg.Orchestrator,
		model:        cfg.Model,
		registry:     cfg.Registry,
		toolRefs:     toolRefs,
		sessions:     cfg.Sessions,
		courses:      cfg.Courses,
		logger:       cfg.Logger,
		maxRounds:    maxRounds,
		historyLimit: historyLimit,
	}
	a.logger.Info("assistant initialized",
		"tools", len(a.toolRefs),
		"max_rounds", a.maxRounds,
		"history_limit", a.historyLimit)
	return a, nil
}

// Answer runs one query through the pipeline within a session. An empty
// sessionID starts a new conversation. Pipeline failures come back as
// answer text per the pipeline's contract; a Go error means the question
// never reached the pipeline.
func (a *Assistant) Answer(ctx context.Context, query, sessionID string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("assistant: query is required")
	}

	sess, err := a.resolveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	history, err := a.sessions.History(ctx, sess.ID, a.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	executor := a.registry.NewExecution()
	result := a.orchestrator.Run(ctx, pipeline.Request{
		Query:     query,
		History:   history,
		MaxRounds: a.maxRounds,
		Model:     a.model,
		Tools:     a.toolRefs,
		Executor:  executor,
	})

	if err := a.sessions.AppendExchange(ctx, sess.ID, query, result.Answer); err != nil {
		// The user still gets the answer; the next turn just loses this
		// exchange.
		a.logger.Warn("appending exchange failed", "session_id", sess.ID, "error", err)
	}

	a.logger.Debug("query answered",
		"session_id", sess.ID,
		"rounds", result.Rounds,
		"sources", len(result.Sources),
		"state", result.State)

	return &Answer{Text: result.Answer, Sources: result.Sources, SessionID: sess.ID}, nil
}

// resolveSession maps a caller-supplied ID to a live session, creating one
// for empty or stale IDs. Malformed IDs return ErrInvalidSession.
func (a *Assistant) resolveSession(ctx context.Context, raw string) (*session.Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		sess, err := a.sessions.Create(ctx)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return sess, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSession, raw)
	}

	sess, err := a.sessions.Get(ctx, id)
	if errors.Is(err, session.ErrSessionNotFound) {
		// Stale IDs happen when a client outlives its session, for
		// example across a database reset. Start fresh; the new ID rides
		// back on the answer so the client resyncs.
		a.logger.Debug("unknown session, starting fresh", "session_id", id)
		sess, err = a.sessions.Create(ctx)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// Analytics reports catalog totals for the courses endpoint.
func (a *Assistant) Analytics(ctx context.Context) (knowledge.Analytics, error) {
	return a.courses.Analytics(ctx)
}

// Stats reports pipeline counters alongside catalog totals.
func (a *Assistant) Stats(ctx context.Context) (Stats, error) {
	analytics, err := a.courses.Analytics(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("course analytics: %w", err)
	}
	return Stats{
		Pipeline: a.orchestrator.Stats().Snapshot(),
		Courses:  analytics,
	}, nil
}
