package assembler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/applymytech/openElara/internal/docstore"
)

// Argument errors for maintenance operations.
var (
	ErrNoIDs            = errors.New("no ids provided for deletion")
	ErrNoSource         = errors.New("no source filename provided")
	ErrNoCollectionName = errors.New("collection name is required")
)

// DeleteByIDs removes the given ids from collection. Unknown ids are ignored.
func (a *Assembler) DeleteByIDs(ctx context.Context, collection string, ids []string) MutationResult {
	ctx, c := a.begin(ctx, OpDeleteIDs, collection)
	defer c.end()

	if len(ids) == 0 {
		c.fail(ErrNoIDs)
		return failed(ErrNoIDs)
	}

	coll, err := a.client.OpenCollection(ctx, collection)
	if err != nil {
		c.fail(err)
		return failed(err)
	}
	if err := coll.Delete(ctx, docstore.DeleteRequest{IDs: ids}); err != nil {
		c.fail(err)
		return failed(err)
	}
	a.logger.Debug("deleted items", "collection", collection, "ids", len(ids))
	return succeeded(fmt.Sprintf("Deleted %d item(s).", len(ids)))
}

// DeleteBySource removes every chunk whose metadata source equals source.
func (a *Assembler) DeleteBySource(ctx context.Context, collection, source string) MutationResult {
	ctx, c := a.begin(ctx, OpDeleteSrc, collection)
	defer c.end()

	source = strings.TrimSpace(source)
	if source == "" {
		c.fail(ErrNoSource)
		return failed(ErrNoSource)
	}

	coll, err := a.client.OpenCollection(ctx, collection)
	if err != nil {
		c.fail(err)
		return failed(err)
	}
	if err := coll.Delete(ctx, docstore.DeleteRequest{Where: docstore.Where{docstore.KeySource: source}}); err != nil {
		c.fail(err)
		return failed(err)
	}
	a.logger.Debug("deleted source chunks", "collection", collection, "source", source)
	return succeeded("Deleted all chunks from source: " + source)
}

// ClearCollection drops the named collection and recreates it empty. A
// collection that does not exist is reported as a failure.
func (a *Assembler) ClearCollection(ctx context.Context, name string) MutationResult {
	ctx, c := a.begin(ctx, OpClear, name)
	defer c.end()

	if strings.TrimSpace(name) == "" {
		c.fail(ErrNoCollectionName)
		return failed(ErrNoCollectionName)
	}

	if err := a.client.DeleteCollection(ctx, name); err != nil {
		c.fail(err)
		return failed(err)
	}
	if _, err := a.client.OpenCollection(ctx, name); err != nil {
		c.fail(err)
		return failed(err)
	}
	a.logger.Info("collection cleared", "collection", name)
	return succeeded(fmt.Sprintf("Collection '%s' cleared successfully.", name))
}

// Count returns the number of documents in collection. Unlike the read
// operations it reports store errors to the caller.
func (a *Assembler) Count(ctx context.Context, collection string) (CountResult, error) {
	ctx, c := a.begin(ctx, OpCount, collection)
	defer c.end()

	coll, err := a.client.OpenCollection(ctx, collection)
	if err != nil {
		c.fail(err)
		return CountResult{}, fmt.Errorf("assembler: count %s: %w", collection, err)
	}
	n, err := coll.Count(ctx)
	if err != nil {
		c.fail(err)
		return CountResult{}, fmt.Errorf("assembler: count %s: %w", collection, err)
	}
	return CountResult{Count: n}, nil
}
