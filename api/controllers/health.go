package controllers

import (
	"net/http"

	"github.com/norwoodlabs/storefront-gateway/api/responses"
	"github.com/norwoodlabs/storefront-gateway/pkg/config"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	"github.com/norwoodlabs/storefront-gateway/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Gateway-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness of the session store. The commerce API is
// deliberately not pinged here; the gateway stays up through upstream outages
// and degrades per-route instead.
func HealthReady(cfg *config.Config, logg *logger.Logger, store redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Gateway-Env", cfg.App.Env)
		if store != nil {
			if err := store.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "session store unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
