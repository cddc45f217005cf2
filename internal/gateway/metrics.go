package gateway

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Metrics tracks gateway-level request counters using atomic operations.
// Operation-level series live in the Prometheus registry; these feed
// /v1/status.
type Metrics struct {
	requests     atomic.Int64
	clientErrors atomic.Int64
	serverErrors atomic.Int64
	rejected     atomic.Int64
	totalLatency atomic.Int64 // nanoseconds
}

// Record records one finished request.
func (m *Metrics) Record(status int, latency time.Duration) {
	m.requests.Add(1)
	m.totalLatency.Add(int64(latency))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusTooManyRequests:
		m.rejected.Add(1)
	case status >= 500:
		m.serverErrors.Add(1)
	case status >= 400:
		m.clientErrors.Add(1)
	}
}

// Snapshot returns a point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	requests := m.requests.Load()
	snap := MetricsSnapshot{
		Requests:     requests,
		ClientErrors: m.clientErrors.Load(),
		ServerErrors: m.serverErrors.Load(),
		Rejected:     m.rejected.Load(),
	}
	if requests > 0 {
		snap.AvgLatency = time.Duration(m.totalLatency.Load() / requests)
	}
	return snap
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Requests     int64         `json:"requests"`
	ClientErrors int64         `json:"client_errors"`
	ServerErrors int64         `json:"server_errors"`
	Rejected     int64         `json:"rejected"`
	AvgLatency   time.Duration `json:"avg_latency_ns"`
}

// countRequests records every request in g.stats.
func (g *Gateway) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		g.stats.Record(status, time.Since(start))
	})
}
