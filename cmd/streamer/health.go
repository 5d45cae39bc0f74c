package main

import (
	"encoding/json"
	"net/http"

	"github.com/rickgao/polymarket-realtime/internal/connection"
	"github.com/rickgao/polymarket-realtime/internal/realtime"
)

// statusSource is the part of *realtime.Client the health handler reads.
type statusSource interface {
	Stats() realtime.Stats
	Subscriptions() []realtime.SubscriptionInfo
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(client statusSource, out *sinks, markets *marketSubscriptions) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := client.Stats()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		health.Components["realtime"] = map[string]interface{}{
			"state":         stats.State.String(),
			"session":       stats.Session,
			"reconnects":    stats.Reconnects,
			"subscriptions": stats.Subscriptions,
			"last_activity": stats.LastActivity,
		}
		health.Components["router"] = stats.Router
		health.Components["sinks"] = out.stats()
		if markets != nil {
			health.Components["markets"] = markets.list()
		}

		switch stats.State {
		case connection.StateConnected:
		case connection.StateConnecting, connection.StateReconnecting:
			health.Status = "degraded"
		default:
			health.Status = "unhealthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		subs := client.Subscriptions()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count":         len(subs),
			"subscriptions": subs,
		})
	})

	return mux
}
