package docstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// InMemoryClient is a thread-safe, in-memory implementation of Client.
// Query ranks documents by the number of query terms they contain; a
// production store would rank by embedding similarity.
type InMemoryClient struct {
	mu          sync.Mutex
	collections map[string]*InMemoryCollection
	closed      bool
}

// NewInMemoryClient creates an empty in-memory store.
func NewInMemoryClient() *InMemoryClient {
	return &InMemoryClient{collections: make(map[string]*InMemoryCollection)}
}

// Compile-time interface checks.
var (
	_ Client     = (*InMemoryClient)(nil)
	_ Collection = (*InMemoryCollection)(nil)
)

// OpenCollection implements Client.
func (c *InMemoryClient) OpenCollection(_ context.Context, name string) (Collection, error) {
	if err := ValidateName(name); err != nil {
		return nil, NewError("open collection", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, NewError("open collection", name, ErrClosed)
	}
	if coll, ok := c.collections[name]; ok {
		return coll, nil
	}
	coll := &InMemoryCollection{name: name, index: make(map[string]int)}
	c.collections[name] = coll
	return coll, nil
}

// DeleteCollection implements Client.
func (c *InMemoryClient) DeleteCollection(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return NewError("delete collection", name, ErrClosed)
	}
	coll, ok := c.collections[name]
	if !ok {
		return NewError("delete collection", name, fmt.Errorf("%w: %s", ErrCollectionNotFound, name))
	}
	coll.drop()
	delete(c.collections, name)
	return nil
}

// Close implements Client.
func (c *InMemoryClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type memEntry struct {
	id       string
	document string
	metadata Metadata
}

// InMemoryCollection is a collection held by an InMemoryClient.
type InMemoryCollection struct {
	name    string
	mu      sync.RWMutex
	entries []memEntry
	index   map[string]int // id → position in entries
	dropped bool
}

// Name implements Collection.
func (c *InMemoryCollection) Name() string { return c.name }

func (c *InMemoryCollection) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped = true
	c.entries = nil
	c.index = make(map[string]int)
}

func (c *InMemoryCollection) checkLive(op string) error {
	if c.dropped {
		return NewError(op, c.name, fmt.Errorf("%w: %s", ErrCollectionNotFound, c.name))
	}
	return nil
}

// Add implements Collection.
func (c *InMemoryCollection) Add(_ context.Context, documents []string, metadatas []Metadata, ids []string) error {
	if err := ValidateAdd(documents, metadatas, ids); err != nil {
		return NewError("add", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLive("add"); err != nil {
		return err
	}
	for i, id := range ids {
		e := memEntry{id: id, document: documents[i], metadata: metadatas[i]}
		if pos, ok := c.index[id]; ok {
			c.entries[pos] = e
			continue
		}
		c.index[id] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return nil
}

// Get implements Collection.
func (c *InMemoryCollection) Get(_ context.Context, req GetRequest) (GetResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkLive("get"); err != nil {
		return GetResult{}, err
	}

	var selected []memEntry
	if len(req.IDs) > 0 {
		want := make(map[string]struct{}, len(req.IDs))
		for _, id := range req.IDs {
			want[id] = struct{}{}
		}
		for _, e := range c.entries {
			if _, ok := want[e.id]; ok {
				selected = append(selected, e)
			}
		}
	} else {
		selected = c.entries
	}
	if req.Limit > 0 && len(selected) > req.Limit {
		selected = selected[:req.Limit]
	}

	res := GetResult{IDs: make([]string, 0, len(selected))}
	if req.Include.Has(IncludeDocuments) {
		res.Documents = make([]string, 0, len(selected))
	}
	if req.Include.Has(IncludeMetadatas) {
		res.Metadatas = make([]Metadata, 0, len(selected))
	}
	for _, e := range selected {
		res.IDs = append(res.IDs, e.id)
		if res.Documents != nil {
			res.Documents = append(res.Documents, e.document)
		}
		if res.Metadatas != nil {
			res.Metadatas = append(res.Metadatas, e.metadata)
		}
	}
	return res, nil
}

// Query implements Collection.
func (c *InMemoryCollection) Query(_ context.Context, req QueryRequest) (QueryResult, error) {
	if err := ValidateWhere(req.Where); err != nil {
		return QueryResult{}, NewError("query", c.name, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkLive("query"); err != nil {
		return QueryResult{}, err
	}
	terms := Terms(req.Text)
	if len(terms) == 0 || req.NResults <= 0 {
		return QueryResult{}, nil
	}

	type scored struct {
		entry memEntry
		score int
	}
	var hits []scored
	for _, e := range c.entries {
		if !e.metadata.Matches(req.Where) {
			continue
		}
		docTerms := Terms(e.document)
		score := 0
		for _, t := range terms {
			if slices.Contains(docTerms, t) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{entry: e, score: score})
		}
	}
	slices.SortStableFunc(hits, func(a, b scored) int { return b.score - a.score })
	if len(hits) > req.NResults {
		hits = hits[:req.NResults]
	}

	res := QueryResult{
		IDs:       make([]string, 0, len(hits)),
		Documents: make([]string, 0, len(hits)),
		Metadatas: make([]Metadata, 0, len(hits)),
	}
	for _, h := range hits {
		res.IDs = append(res.IDs, h.entry.id)
		res.Documents = append(res.Documents, h.entry.document)
		res.Metadatas = append(res.Metadatas, h.entry.metadata)
	}
	return res, nil
}

// Count implements Collection.
func (c *InMemoryCollection) Count(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkLive("count"); err != nil {
		return 0, err
	}
	return len(c.entries), nil
}

// Delete implements Collection.
func (c *InMemoryCollection) Delete(_ context.Context, req DeleteRequest) error {
	if err := ValidateDelete(req); err != nil {
		return NewError("delete", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLive("delete"); err != nil {
		return err
	}

	drop := make(map[string]struct{}, len(req.IDs))
	for _, id := range req.IDs {
		drop[id] = struct{}{}
	}

	// Rebuild rather than swap-delete so insertion order survives.
	kept := c.entries[:0]
	for _, e := range c.entries {
		_, byID := drop[e.id]
		byWhere := len(req.Where) > 0 && e.metadata.Matches(req.Where)
		if byID || byWhere {
			continue
		}
		kept = append(kept, e)
	}
	clear(c.entries[len(kept):])
	c.entries = kept

	c.index = make(map[string]int, len(kept))
	for i, e := range c.entries {
		c.index[e.id] = i
	}
	return nil
}
