package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oggyb/swipe-engine/internal/app"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
	"github.com/oggyb/swipe-engine/internal/metrics"
	"github.com/oggyb/swipe-engine/internal/service/recompute"
)

// NewAdminRouter serves the operator endpoints. Bind it to a private
// address only: nothing here is authenticated.
//
// Routes:
//   - GET  /metrics           Prometheus scrape endpoint
//   - GET  /healthz           pings the database and Redis
//   - POST /admin/recompute   runs the popularity recompute now
func NewAdminRouter(appCtx *app.AppContext, job recompute.Runner) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", metrics.Handler())

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"db": "ok", "redis": "ok"}
		healthy := true
		if sqlDB, err := appCtx.DB.DB(); err != nil {
			checks["db"], healthy = err.Error(), false
		} else if err := sqlDB.PingContext(ctx); err != nil {
			checks["db"], healthy = err.Error(), false
		}
		if appCtx.RedisCache != nil {
			if err := appCtx.RedisCache.Ping(ctx); err != nil {
				checks["redis"], healthy = err.Error(), false
			}
		}

		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, checks)
	})

	r.Post("/admin/recompute", func(w http.ResponseWriter, req *http.Request) {
		report, err := job.Run(req.Context())
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]any{
				"generation":  report.Generation,
				"ranked":      report.Ranked,
				"skipped":     len(report.Skipped),
				"duration_ms": report.Duration.Milliseconds(),
			})
		case errors.Is(err, svcErr.ErrAlreadyRunning), errors.Is(err, svcErr.ErrConflict):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, svcErr.ErrEmptyRebalance):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
