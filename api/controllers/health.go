package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/tajerhq/tajer-backend/api/responses"
	"github.com/tajerhq/tajer-backend/pkg/cache"
	"github.com/tajerhq/tajer-backend/pkg/config"
	"github.com/tajerhq/tajer-backend/pkg/db"
	"github.com/tajerhq/tajer-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tajer-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes the database and redis. A failing dependency flips
// the endpoint to 503 so load balancers stop routing here.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, cacheP cache.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tajer-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		checks["database"] = pingStatus(ctx, logg, "database", dbP, &healthy)
		checks["redis"] = pingStatus(ctx, logg, "redis", cacheP, &healthy)

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, status, checks)
	}
}

type pinger interface {
	Ping(context.Context) error
}

func pingStatus(ctx context.Context, logg *logger.Logger, name string, p pinger, healthy *bool) string {
	if p == nil {
		return "skipped"
	}
	if err := p.Ping(ctx); err != nil {
		*healthy = false
		if logg != nil {
			logg.Error(logg.WithField(ctx, "dependency", name), "readiness probe failed", err)
		}
		return "down"
	}
	return "ok"
}
