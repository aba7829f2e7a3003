package proxy

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"volleykit-proxy/internal/classify"
	"volleykit-proxy/internal/dedup"
	"volleykit-proxy/internal/resilience"
)

// statsResponse is the /v1/proxy/stats payload: circuit-breaker state and
// the number of iCal fetches currently being coalesced.
type statsResponse struct {
	CircuitBreaker circuitBreakerStatsResponse `json:"circuit_breaker"`
	Dedup          dedupStatsResponse          `json:"dedup"`
}

type circuitBreakerStatsResponse struct {
	State          string `json:"state"`
	TotalSuccesses int64  `json:"total_successes"`
	TotalFailures  int64  `json:"total_failures"`
}

type dedupStatsResponse struct {
	InFlight int64 `json:"in_flight"`
}

// NewServer wires a Pipeline into a mux, adding the diagnostic stats
// endpoint alongside the catch-all pipeline handler.
func NewServer(pipeline *Pipeline, allowedOrigins []string, breaker *resilience.CircuitBreaker, coalescer *dedup.Coalescer, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/proxy/stats", func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && !classify.IsAllowedOrigin(origin, allowedOrigins) {
			http.Error(w, "Forbidden: Origin not allowed", http.StatusForbidden)
			return
		}

		cbStats := breaker.Stats()
		resp := statsResponse{
			CircuitBreaker: circuitBreakerStatsResponse{
				State:          cbStats.State.String(),
				TotalSuccesses: cbStats.TotalSuccesses,
				TotalFailures:  cbStats.TotalFailures,
			},
			Dedup: dedupStatsResponse{InFlight: coalescer.InFlight()},
		}

		w.Header().Set("Content-Type", "application/json")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	})

	// The pipeline itself owns every other route: robots.txt, health,
	// iCal, and the upstream catch-all, each gated by its own step in
	// ServeHTTP.
	mux.Handle("/", pipeline)

	return mux
}
