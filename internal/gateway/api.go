package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/applymytech/openElara/internal/assembler"
	"github.com/applymytech/openElara/internal/docstore"
	"github.com/applymytech/openElara/internal/security"
)

// searchBody is the JSON body of POST /v1/collections/{collection}/search.
type searchBody struct {
	Query      string  `json:"query"`
	TokenLimit int     `json:"token_limit"`
	NResults   int     `json:"n_results"`
	Persona    *string `json:"persona"`
}

// recentBody is the JSON body of POST /v1/chat/recent.
type recentBody struct {
	NTurns     int     `json:"n_turns"`
	TokenLimit int     `json:"token_limit"`
	Persona    *string `json:"persona"`
}

// errorBody is returned for requests that never reach the assembler.
type errorBody struct {
	Error string `json:"error"`
}

func (g *Gateway) handleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body searchBody
		if err := decodeBody(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		chunks := g.asm.SearchKnowledge(r.Context(), assembler.SearchRequest{
			Collection:  collectionParam(r),
			Query:       body.Query,
			TokenBudget: body.TokenLimit,
			NResults:    body.NResults,
			Persona:     body.Persona,
		})
		writeJSON(w, http.StatusOK, chunks)
	}
}

func (g *Gateway) handleRecentTurns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body recentBody
		if err := decodeBody(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		res := g.asm.RecentTurns(r.Context(), assembler.RecentTurnsRequest{
			NTurns:      body.NTurns,
			TokenBudget: body.TokenLimit,
			Persona:     body.Persona,
		})
		writeJSON(w, http.StatusOK, res)
	}
}

func (g *Gateway) handleListItems() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req assembler.ListRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		req.Collection = collectionParam(r)
		writeJSON(w, http.StatusOK, g.asm.ListItems(r.Context(), req))
	}
}

func (g *Gateway) handleCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := g.asm.Count(r.Context(), collectionParam(r))
		if err != nil {
			writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (g *Gateway) handleSaveTurn() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		res := g.asm.AddChatTurn(r.Context(), raw)
		g.auditMutation(r, assembler.OpSaveTurn, docstore.ChatHistory, res)
		writeJSON(w, http.StatusOK, res)
	}
}

func (g *Gateway) handleDeleteItems() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ids []string
		if err := decodeBody(r, &ids); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		collection := collectionParam(r)
		res := g.asm.DeleteByIDs(r.Context(), collection, ids)
		g.auditMutation(r, assembler.OpDeleteIDs, collection, res)
		writeJSON(w, http.StatusOK, res)
	}
}

func (g *Gateway) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source, err := url.PathUnescape(chi.URLParam(r, "source"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		collection := collectionParam(r)
		res := g.asm.DeleteBySource(r.Context(), collection, source)
		g.auditMutation(r, assembler.OpDeleteSrc, collection, res)
		writeJSON(w, http.StatusOK, res)
	}
}

func (g *Gateway) handleClearCollection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collection := collectionParam(r)
		res := g.asm.ClearCollection(r.Context(), collection)
		g.auditMutation(r, assembler.OpClear, collection, res)
		writeJSON(w, http.StatusOK, res)
	}
}

func (g *Gateway) auditMutation(r *http.Request, op, collection string, res assembler.MutationResult) {
	detail := res.Message
	if !res.Success {
		detail = "failed: " + res.Error
	}
	g.audit.Log(security.AuditEvent{
		Type:       security.EventMutation,
		Operation:  op,
		Collection: collection,
		RemoteAddr: r.RemoteAddr,
		Detail:     detail,
	})
}

// collectionParam returns the unescaped {collection} URL parameter.
func collectionParam(r *http.Request) string {
	raw := chi.URLParam(r, "collection")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps a store error to an HTTP status.
func statusFor(err error) int {
	switch docstore.KindOf(err) {
	case docstore.KindInvalidArgument:
		return http.StatusBadRequest
	case docstore.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}
