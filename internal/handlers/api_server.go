// internal/handlers/api_server.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jason-s-yu/chessmatch/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the websocket endpoint, the liveness probe and the
// Prometheus scrape endpoint. A nil gatherer leaves /metrics unmounted.
func NewRouter(gs *GameServer, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", GameWSHandler(gs))
	mux.HandleFunc("/healthz", HealthHandler(gs))
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return middleware.LogMiddleware(gs.Log)(mux)
}

// HealthHandler reports liveness together with a few gauges of the manager.
func HealthHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "ok",
			"connections": gs.Registry.Len(),
			"queue":       gs.Manager.QueueLen(),
		})
	}
}
