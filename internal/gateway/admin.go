package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/applymytech/openElara/internal/docstore"
	"github.com/applymytech/openElara/internal/ingest"
	"github.com/applymytech/openElara/internal/security"
)

// ingestBody is the JSON body of POST /v1/ingest.
type ingestBody struct {
	Dir string `json:"dir"`
}

// handleIngest refreshes knowledge_base from a directory.
func (g *Gateway) handleIngest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body ingestBody
		if err := decodeBody(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		dir := body.Dir
		if dir == "" {
			dir = g.knowledgeDir
		}
		if dir == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "no knowledge directory configured"})
			return
		}

		res, err := g.ingester.Dir(r.Context(), dir)
		if err != nil {
			g.logger.Error("ingest failed", "dir", dir, "error", err)
			g.audit.Log(security.AuditEvent{
				Type:       security.EventMutation,
				Operation:  "ingest",
				Collection: docstore.KnowledgeBase,
				RemoteAddr: r.RemoteAddr,
				Detail:     "failed: " + err.Error(),
			})
			code := http.StatusInternalServerError
			if errors.Is(err, ingest.ErrNotDirectory) {
				code = http.StatusBadRequest
			}
			writeJSON(w, code, errorBody{Error: err.Error()})
			return
		}

		g.audit.Log(security.AuditEvent{
			Type:       security.EventMutation,
			Operation:  "ingest",
			Collection: docstore.KnowledgeBase,
			RemoteAddr: r.RemoteAddr,
			Detail:     dir,
		})
		writeJSON(w, http.StatusOK, res)
	}
}

// handleGetConfig returns the effective config with secrets redacted.
func (g *Gateway) handleGetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.configView == nil {
			http.Error(w, "config not available", http.StatusServiceUnavailable)
			return
		}

		// Round-trip through YAML so keys match the config file.
		raw, err := yaml.Marshal(g.configView)
		if err != nil {
			http.Error(w, "failed to serialize config", http.StatusInternalServerError)
			return
		}
		var generic map[string]any
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			http.Error(w, "failed to parse config", http.StatusInternalServerError)
			return
		}

		g.redactor.RedactMap(generic)
		writeJSON(w, http.StatusOK, generic)
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
