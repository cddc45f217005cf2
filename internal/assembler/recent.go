package assembler

import (
	"context"
	"slices"
	"strings"

	ctxengine "github.com/applymytech/openElara/internal/context"
	"github.com/applymytech/openElara/internal/docstore"
)

// RecentTurns returns the latest NTurns chat turns, oldest first, packed
// under TokenBudget. A single oversized newest-selected turn is truncated
// rather than dropped. Store errors yield the empty result.
func (a *Assembler) RecentTurns(ctx context.Context, req RecentTurnsRequest) RecentTurnsResult {
	ctx, c := a.begin(ctx, OpRecentTurns, docstore.ChatHistory)
	defer c.end()

	empty := RecentTurnsResult{Turns: []string{}}
	if req.NTurns <= 0 {
		return empty
	}

	coll, err := a.client.OpenCollection(ctx, docstore.ChatHistory)
	if err != nil {
		c.degrade(err)
		return empty
	}
	res, err := coll.Get(ctx, docstore.GetRequest{Include: docstore.IncludeAll})
	if err != nil {
		c.degrade(err)
		return empty
	}

	docs, metas := res.Documents, res.Metadatas
	if req.Persona != nil {
		docs, metas = filterPersona(docs, metas, *req.Persona)
	}
	if len(docs) == 0 {
		a.logger.Debug("no chat history", "persona_filter", req.Persona != nil)
		return empty
	}

	order := ctxengine.RecencyOrder(timestamps(metas, len(docs)))
	if len(order) > req.NTurns {
		order = order[:req.NTurns]
	}
	slices.Reverse(order)

	packed := a.packer.Pack(a.packer.Candidates(ctxengine.Permute(docs, order)), req.TokenBudget, true)
	a.metrics.ObserveTokens(OpRecentTurns, packed.TotalTokens)
	a.logger.Debug("packed recent turns",
		"turns", len(packed.Selected),
		"total_tokens", packed.TotalTokens,
		"truncated", packed.Truncated,
	)

	return RecentTurnsResult{
		Turns:        packed.Selected,
		TotalTokens:  packed.TotalTokens,
		WasTruncated: packed.Truncated,
	}
}

// filterPersona keeps the documents whose persona equals want, ignoring
// case. A missing persona compares as "".
func filterPersona(docs []string, metas []docstore.Metadata, want string) ([]string, []docstore.Metadata) {
	var (
		outDocs  []string
		outMetas []docstore.Metadata
	)
	for i, d := range docs {
		var m docstore.Metadata
		if i < len(metas) {
			m = metas[i]
		}
		if strings.EqualFold(m.Persona, want) {
			outDocs = append(outDocs, d)
			outMetas = append(outMetas, m)
		}
	}
	return outDocs, outMetas
}
