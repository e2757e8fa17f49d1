package api

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaydesk/relaydesk/internal/log"
)

// health is the liveness probe. Always 200 while the process serves.
func health(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness pings the database so orchestrators stop routing traffic when
// storage is unreachable. A nil pool degrades to liveness semantics.
func readiness(pool *pgxpool.Pool, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				logger.Warn("readiness ping failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable,
					map[string]string{"status": "degraded", "database": "unreachable"}, logger)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, logger)
	}
}
