package main

import (
	"context"
	"net/http"
	"time"

	"procverify/pkg/platform/httputil"
)

type healthResponse struct {
	Status         string            `json:"status"`
	CatalogVersion string            `json:"catalogVersion"`
	Dependencies   map[string]string `json:"dependencies,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// healthHandler reports degraded, still with 200, when an optional backend
// is down: the service keeps deciding without cache or durable history.
func healthHandler(catalogVersion string, deps *infra) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{
			Status:         "healthy",
			CatalogVersion: catalogVersion,
			Dependencies:   map[string]string{},
			Timestamp:      time.Now().UTC(),
		}
		check := func(name string, err error) {
			if err != nil {
				resp.Dependencies[name] = "down"
				resp.Status = "degraded"
				return
			}
			resp.Dependencies[name] = "up"
		}
		if deps.redis != nil {
			check("redis", deps.redis.Health(ctx))
		}
		if deps.db != nil {
			check("postgres", deps.db.PingContext(ctx))
		}
		if deps.kafka != nil {
			check("kafka", deps.kafka.Ping(ctx))
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}
