// Package httpapi exposes the small ops surface of the bot: health and job
// counters for monitoring. The chat transport carries all user traffic.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"videobot/internal/domain"
	"videobot/internal/infra"
)

// App bundles the dependencies of the ops handlers.
type App struct {
	Pool   *pgxpool.Pool
	Store  domain.Store
	Logger infra.Logger
}

// NewRouter builds the ops router.
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		requestLogger(app.Logger),
	)

	r.Get("/healthz", app.Health)
	r.Get("/v1/jobs/stats", app.JobStats)

	return r
}

// Health reports liveness, including a database ping.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.Pool.Ping(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("httpapi: db ping failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": "database unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// JobStats returns job totals by status plus the pending backlog size.
func (a *App) JobStats(w http.ResponseWriter, r *http.Request) {
	counts, err := a.Store.CountJobsByStatus(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("httpapi: count jobs failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to count jobs"})
		return
	}

	pending, err := a.Store.GetPendingJobs(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("httpapi: list pending jobs failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list pending jobs"})
		return
	}

	byStatus := make(map[string]int, len(counts))
	for status, n := range counts {
		byStatus[string(status)] = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs_by_status":  byStatus,
		"pending_backlog": len(pending),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func requestLogger(l infra.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Dur("duration", time.Since(start)).
				Msg("httpapi: request")
		})
	}
}
