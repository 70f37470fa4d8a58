package controllers

import (
	"context"
	"net/http"

	"github.com/entrega-app/entrega-backend/api/responses"
	"github.com/entrega-app/entrega-backend/pkg/config"
	"github.com/entrega-app/entrega-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Entrega-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports per-dependency status. Redis is best-effort at runtime
// but still surfaces here so a degraded cache is visible.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, cache pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Entrega-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		if db != nil {
			checks["postgres"] = "ok"
			if err := db.Ping(r.Context()); err != nil {
				checks["postgres"] = "unreachable"
				healthy = false
				if logg != nil {
					logg.Error(r.Context(), "readiness: postgres ping failed", err)
				}
			}
		}
		if cache != nil {
			checks["redis"] = "ok"
			if err := cache.Ping(r.Context()); err != nil {
				checks["redis"] = "unreachable"
				healthy = false
				if logg != nil {
					logg.Error(r.Context(), "readiness: redis ping failed", err)
				}
			}
		}

		status := http.StatusOK
		overall := "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"status": overall,
			"checks": checks,
		})
	}
}
