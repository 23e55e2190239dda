package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/genai"

	"github.com/lectern-ai/lectern/db"
	"github.com/lectern-ai/lectern/internal/assistant"
	"github.com/lectern-ai/lectern/internal/config"
	"github.com/lectern-ai/lectern/internal/knowledge"
	"github.com/lectern-ai/lectern/internal/log"
	"github.com/lectern-ai/lectern/internal/model"
	"github.com/lectern-ai/lectern/internal/observability"
	"github.com/lectern-ai/lectern/internal/pipeline"
	"github.com/lectern-ai/lectern/internal/session"
	"github.com/lectern-ai/lectern/internal/tools"
)

const (
	pingTimeout       = 5 * time.Second
	traceFlushTimeout = 5 * time.Second
)

// Setup creates and initializes the application. On success the caller
// owns the returned App and must Close it; on failure everything
// acquired so far is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if logger == nil {
		logger = log.New(log.Config{})
	}

	a := &App{Config: cfg, logger: logger}
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup after setup failure", "error", err)
			}
		}
	}()

	// Tracing registers its span processor on the TracerProvider genkit
	// publishes, so it has to be up before genkit.Init runs.
	traceShutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Service:     cfg.Tracing.Service,
		Environment: cfg.Tracing.Environment,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.cleanups = append(a.cleanups, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), traceFlushTimeout)
		defer cancel()
		return traceShutdown(shutdownCtx)
	})

	pool, err := providePool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool
	a.cleanups = append(a.cleanups, func() error {
		pool.Close()
		return nil
	})

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	store, err := knowledge.New(pool, embedder, logger, knowledgeOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}
	a.Knowledge = store

	sessions, err := session.New(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}
	a.Sessions = sessions

	registry, err := tools.NewRegistry(store, logger)
	if err != nil {
		return nil, fmt.Errorf("creating tool registry: %w", err)
	}
	a.Registry = registry

	defined, err := registry.Register(g)
	if err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	a.Tools = defined

	m := genkit.LookupModel(g, cfg.FullModelName())
	if m == nil {
		return nil, fmt.Errorf("model %q not found for provider %q", cfg.ModelName, cfg.Provider)
	}

	client, err := model.New(model.Config{Genkit: g, Model: m, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}
	a.Model = client

	orchestrator, err := pipeline.New(pipeline.Config{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	asst, err := assistant.New(assistant.Config{
		Orchestrator: orchestrator,
		Model:        client,
		Registry:     registry,
		Tools:        defined,
		Sessions:     sessions,
		Courses:      store,
		Logger:       logger,
		MaxRounds:    cfg.MaxRounds,
		HistoryLimit: cfg.HistoryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("creating assistant: %w", err)
	}
	a.Assistant = asst

	logger.Info("application ready",
		"provider", cfg.Provider,
		"model", cfg.ModelName,
		"embedder", cfg.EmbedderModel)
	return a, nil
}

// providePool runs migrations, then opens and pings the connection pool.
func providePool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes genkit with the configured provider plugin.
// Ollama models and embedders need explicit registration; the googleai
// plugin discovers its models itself.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		plugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama plugin")
		}
		plugin.DefineModel(g, ollama.ModelDefinition{Name: cfg.ModelName, Type: "chat"}, nil)
		plugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("genkit initialized", "provider", cfg.Provider, "host", cfg.OllamaHost)
		return g, nil

	default:
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai plugin")
		}
		logger.Info("genkit initialized", "provider", cfg.Provider)
		return g, nil
	}
}

// provideEmbedder looks up the embedder the provider plugin registered.
// Ollama embedders are keyed by server address rather than model name.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	if cfg.Provider == config.ProviderOllama {
		return ollama.Embedder(g, cfg.OllamaHost)
	}
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
}

// knowledgeOptions builds the store options for the configured provider.
// Gemini embedding models emit 3072 dimensions by default; requesting
// OutputDimensionality truncates to the 768 the schema stores. Ollama's
// nomic-embed-text is natively 768, so no truncation applies there.
func knowledgeOptions(cfg *config.Config) []knowledge.Option {
	opts := []knowledge.Option{knowledge.WithSearchLimit(cfg.SearchLimit)}
	if cfg.Provider != config.ProviderOllama {
		dim := int32(knowledge.VectorDim)
		opts = append(opts, knowledge.WithEmbedOptions(&genai.EmbedContentConfig{
			OutputDimensionality: &dim,
		}))
	}
	return opts
}
