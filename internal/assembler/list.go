package assembler

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	ctxengine "github.com/applymytech/openElara/internal/context"
	"github.com/applymytech/openElara/internal/docstore"
)

const (
	chatPreviewRunes  = 100
	chunkPreviewRunes = 80
	idPreviewRunes    = 50
)

// chatPrefix matches the "[<time>] [<ROLE>]: " header of a stored turn.
var chatPrefix = regexp.MustCompile(`^\[(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2})\] \[([^\]]+)\]:\s*`)

// ListItems returns one page of a collection ordered newest first, with a
// preview per item. With IDs set it returns exactly those items, without
// sorting or paging. It never fails: on error it falls back to an ids-only
// listing, then to an empty one.
func (a *Assembler) ListItems(ctx context.Context, req ListRequest) ListResult {
	ctx, c := a.begin(ctx, OpList, req.Collection)
	defer c.end()

	res, err := a.listItems(ctx, req)
	if err == nil {
		return res
	}
	c.degrade(err)

	res, err = a.emergencyList(ctx, req)
	if err != nil {
		a.logger.Error("emergency listing failed", "collection", req.Collection, "error", err)
		return emptyList()
	}
	a.logger.Warn("emergency listing returned ids only", "collection", req.Collection, "ids", len(res.IDs))
	return res
}

func (a *Assembler) listItems(ctx context.Context, req ListRequest) (ListResult, error) {
	coll, err := a.client.OpenCollection(ctx, req.Collection)
	if err != nil {
		return ListResult{}, err
	}

	include := docstore.IncludeMetadatas
	if req.FullContent {
		include |= docstore.IncludeDocuments
	}

	if len(req.IDs) > 0 {
		got, err := coll.Get(ctx, docstore.GetRequest{IDs: req.IDs, Include: include})
		if err != nil {
			return ListResult{}, err
		}
		out := emptyList()
		out.IDs = nonNil(got.IDs)
		out.Metadatas = nonNil(got.Metadatas)
		out.Documents = got.Documents
		out.TotalCount = len(out.IDs)
		out.Limit = len(out.IDs)
		return out, nil
	}

	total, err := coll.Count(ctx)
	if err != nil {
		return ListResult{}, err
	}
	got, err := coll.Get(ctx, docstore.GetRequest{Include: include})
	if err != nil {
		return ListResult{}, err
	}
	if got.Len() == 0 {
		return emptyList(), nil
	}

	order := ctxengine.RecencyOrder(timestamps(got.Metadatas, got.Len()))
	ids := ctxengine.Permute(got.IDs, order)
	metas := ctxengine.Permute(got.Metadatas, order)
	docs := ctxengine.Permute(got.Documents, order)

	start, end := pageBounds(len(ids), req.Offset, req.Limit)
	out := ListResult{
		IDs:        ids[start:end],
		Metadatas:  []docstore.Metadata{},
		Previews:   make([]string, 0, end-start),
		TotalCount: total,
		Offset:     max(req.Offset, 0),
		Limit:      end - start,
	}
	if metas != nil {
		out.Metadatas = metas[start:end]
	}
	if docs != nil {
		out.Documents = docs[start:end]
	}

	for i, id := range out.IDs {
		var (
			body string
			meta docstore.Metadata
		)
		if out.Documents != nil {
			body = out.Documents[i]
		}
		if i < len(out.Metadatas) {
			meta = out.Metadatas[i]
		}
		out.Previews = append(out.Previews, preview(req.Collection, id, body, meta))
	}

	a.logger.Debug("listed items", "collection", req.Collection, "items", len(out.IDs), "offset", req.Offset, "total", total)
	return out, nil
}

// emergencyList fetches ids only and previews them.
func (a *Assembler) emergencyList(ctx context.Context, req ListRequest) (ListResult, error) {
	coll, err := a.client.OpenCollection(ctx, req.Collection)
	if err != nil {
		return ListResult{}, err
	}
	gr := docstore.GetRequest{}
	if req.Limit != nil && *req.Limit > 0 {
		gr.Limit = *req.Limit
	}
	got, err := coll.Get(ctx, gr)
	if err != nil {
		return ListResult{}, err
	}

	out := emptyList()
	out.IDs = nonNil(got.IDs)
	for _, id := range out.IDs {
		out.Previews = append(out.Previews, idPreview(id))
	}
	out.TotalCount = len(out.IDs)
	out.Limit = len(out.IDs)
	return out, nil
}

// pageBounds clamps [offset, offset+limit) to [0, n]. A nil or
// non-positive limit runs to the end.
func pageBounds(n, offset int, limit *int) (int, int) {
	start := min(max(offset, 0), n)
	end := n
	if limit != nil && *limit > 0 {
		end = min(start+*limit, n)
	}
	return start, end
}

// preview renders the one-line summary of a listed item.
func preview(collection, id, body string, meta docstore.Metadata) string {
	if strings.TrimSpace(body) == "" {
		return idPreview(id)
	}

	if collection == docstore.ChatHistory {
		ts, role, rest := "Unknown", "Message", body
		if m := chatPrefix.FindStringSubmatch(body); m != nil {
			ts, role, rest = m[1], m[2], body[len(m[0]):]
		} else if i := strings.IndexByte(body, ']'); i >= 0 {
			rest = strings.TrimSpace(body[i+1:])
		}
		return strings.TrimSpace(fmt.Sprintf("[%s] [%s]: %s...", ts, role, firstRunes(rest, chatPreviewRunes)))
	}

	source := meta.Source
	if source == "" {
		source = "Unknown Source"
	}
	return strings.TrimSpace(fmt.Sprintf("Source: %s | Chunk: %s...", source, firstRunes(body, chunkPreviewRunes)))
}

func idPreview(id string) string {
	return firstRunes(id, idPreviewRunes) + "..."
}

func firstRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
