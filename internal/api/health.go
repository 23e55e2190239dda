package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lectern-ai/lectern/internal/log"
)

const readinessTimeout = 2 * time.Second

// health is the liveness probe for Docker/Kubernetes.
// Returns 200 OK with {"status":"ok"} as long as the process serves requests.
func health(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness reports whether the server can reach its dependencies.
// With a pool configured it pings the database and includes connection
// stats; a nil pool skips the probe so the endpoint still works in
// setups without a database.
func readiness(pool *pgxpool.Pool, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ready"}

		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
			defer cancel()

			if err := pool.Ping(ctx); err != nil {
				logger.Warn("readiness probe failed", "error", err)
				WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"}, logger)
				return
			}

			stat := pool.Stat()
			resp["database"] = map[string]any{
				"total_conns": stat.TotalConns(),
				"idle_conns":  stat.IdleConns(),
			}
		}

		WriteJSON(w, http.StatusOK, resp, logger)
	}
}
