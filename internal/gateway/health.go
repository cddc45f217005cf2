package gateway

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
	Store  string `json:"store,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 503 when the store does not answer a ping.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := g.pinger.Ping(ctx); err != nil {
				g.logger.Warn("store ping failed", "error", err)
				resp.Status = "degraded"
				resp.Store = err.Error()
			} else {
				resp.Store = "ok"
			}
		}

		code := http.StatusOK
		if resp.Status == "degraded" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
