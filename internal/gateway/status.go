package gateway

import (
	"net/http"
	"time"

	"github.com/applymytech/openElara/internal/docstore"
)

// StatusResponse is the JSON response for GET /v1/status.
type StatusResponse struct {
	Uptime      int64           `json:"uptime_seconds"`
	Metrics     MetricsSnapshot `json:"metrics"`
	Collections map[string]int  `json:"collections"`
	AuditErrors int64           `json:"audit_write_errors"`
}

// handleStatus returns an http.HandlerFunc for GET /v1/status.
// Collections whose count fails are reported as -1.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Uptime:      int64(time.Since(g.startedAt) / time.Second),
			Metrics:     g.stats.Snapshot(),
			Collections: make(map[string]int, 2),
			AuditErrors: g.audit.WriteErrors(),
		}

		for _, name := range []string{docstore.KnowledgeBase, docstore.ChatHistory} {
			res, err := g.asm.Count(r.Context(), name)
			if err != nil {
				resp.Collections[name] = -1
				continue
			}
			resp.Collections[name] = res.Count
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
