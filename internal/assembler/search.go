package assembler

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	ctxengine "github.com/applymytech/openElara/internal/context"
	"github.com/applymytech/openElara/internal/docstore"
)

// SearchKnowledge runs a similarity search and packs the hits under
// TokenBudget without truncation. knowledge_base always asks the store
// for Config.KnowledgeResults candidates. chat_history hits are
// re-ordered newest first; other collections keep similarity rank.
// Store errors yield an empty slice.
func (a *Assembler) SearchKnowledge(ctx context.Context, req SearchRequest) []string {
	ctx, c := a.begin(ctx, OpSearch, req.Collection)
	defer c.end()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return []string{}
	}

	n := req.NResults
	if n <= 0 {
		n = a.config.DefaultResults
	}
	if req.Collection == docstore.KnowledgeBase {
		n = a.config.KnowledgeResults
	}
	c.span.SetAttributes(attribute.Int("elara.n_results", n))

	qr := docstore.QueryRequest{Text: query, NResults: n}
	if req.Collection == docstore.ChatHistory && req.Persona != nil && *req.Persona != "" {
		qr.Where = docstore.Where{docstore.KeyPersona: *req.Persona}
	}

	coll, err := a.client.OpenCollection(ctx, req.Collection)
	if err != nil {
		c.degrade(err)
		return []string{}
	}
	res, err := coll.Query(ctx, qr)
	if err != nil {
		c.degrade(err)
		return []string{}
	}
	a.logger.Debug("query returned", "collection", req.Collection, "n_results", n, "documents", len(res.Documents))

	candidates := res.Documents
	if req.Collection == docstore.ChatHistory && len(res.Metadatas) > 0 {
		order := ctxengine.RecencyOrder(timestamps(res.Metadatas, len(candidates)))
		candidates = ctxengine.Permute(candidates, order)
	}

	packed := a.packer.Pack(a.packer.Candidates(candidates), req.TokenBudget, false)
	a.metrics.ObserveTokens(OpSearch, packed.TotalTokens)
	a.logger.Debug("packed search results",
		"collection", req.Collection,
		"chunks", len(packed.Selected),
		"total_tokens", packed.TotalTokens,
	)
	return packed.Selected
}
