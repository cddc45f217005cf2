package docstore

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func newMemCollection(t *testing.T) (*InMemoryClient, Collection) {
	t.Helper()
	client := NewInMemoryClient()
	coll, err := client.OpenCollection(context.Background(), KnowledgeBase)
	if err != nil {
		t.Fatalf("OpenCollection: %v", err)
	}
	return client, coll
}

func TestInMemory_AddGetPreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, coll := newMemCollection(t)

	err := coll.Add(ctx,
		[]string{"first", "second", "third"},
		[]Metadata{{Source: "a"}, {Source: "b"}, {Source: "c"}},
		[]string{"id-1", "id-2", "id-3"},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Upsert keeps the original position.
	if err := coll.Add(ctx, []string{"second v2"}, []Metadata{{Source: "b"}}, []string{"id-2"}); err != nil {
		t.Fatalf("Add upsert: %v", err)
	}

	res, err := coll.Get(ctx, GetRequest{Include: IncludeAll})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if want := []string{"id-1", "id-2", "id-3"}; !slices.Equal(res.IDs, want) {
		t.Errorf("IDs = %v, want %v", res.IDs, want)
	}
	if res.Documents[1] != "second v2" {
		t.Errorf("Documents[1] = %q, want upserted body", res.Documents[1])
	}

	n, err := coll.Count(ctx)
	if err != nil || n != 3 {
		t.Errorf("Count = %d, %v; want 3", n, err)
	}
}

func TestInMemory_GetIncludeAndLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, coll := newMemCollection(t)
	_ = coll.Add(ctx, []string{"a", "b"}, []Metadata{{}, {}}, []string{"1", "2"})

	res, err := coll.Get(ctx, GetRequest{Include: IncludeMetadatas, Limit: 1})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.Len() != 1 {
		t.Errorf("Len = %d, want 1", res.Len())
	}
	if res.Documents != nil {
		t.Error("Documents should be nil when not included")
	}
	if len(res.Metadatas) != 1 {
		t.Errorf("len(Metadatas) = %d, want 1", len(res.Metadatas))
	}
}

func TestInMemory_AddRejectsMismatchedLengths(t *testing.T) {
	t.Parallel()

	_, coll := newMemCollection(t)
	err := coll.Add(context.Background(), []string{"a"}, nil, []string{"1"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	if KindOf(err) != KindInvalidArgument {
		t.Errorf("KindOf = %v, want invalid_argument", KindOf(err))
	}
}

func TestInMemory_QueryRanksAndFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, coll := newMemCollection(t)
	_ = coll.Add(ctx,
		[]string{"go channels and goroutines", "goroutines only", "unrelated text"},
		[]Metadata{{Persona: "a"}, {Persona: "b"}, {Persona: "a"}},
		[]string{"x", "y", "z"},
	)

	res, err := coll.Query(ctx, QueryRequest{Text: "Goroutines channels", NResults: 5})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if want := []string{"x", "y"}; !slices.Equal(res.IDs, want) {
		t.Errorf("IDs = %v, want %v", res.IDs, want)
	}

	res, err = coll.Query(ctx, QueryRequest{Text: "goroutines", NResults: 5, Where: Where{KeyPersona: "b"}})
	if err != nil {
		t.Fatalf("Query filtered: %v", err)
	}
	if want := []string{"y"}; !slices.Equal(res.IDs, want) {
		t.Errorf("filtered IDs = %v, want %v", res.IDs, want)
	}

	if _, err := coll.Query(ctx, QueryRequest{Text: "x", NResults: 1, Where: Where{"bad key": "v"}}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("bad filter key err = %v, want ErrInvalidArgument", err)
	}
}

func TestInMemory_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, coll := newMemCollection(t)
	_ = coll.Add(ctx,
		[]string{"1", "2", "3", "4"},
		[]Metadata{{Source: "a.md"}, {Source: "b.md"}, {Source: "a.md"}, {Source: "c.md"}},
		[]string{"a-0", "b-0", "a-1", "c-0"},
	)

	if err := coll.Delete(ctx, DeleteRequest{Where: Where{KeySource: "a.md"}}); err != nil {
		t.Fatalf("Delete by source: %v", err)
	}
	if err := coll.Delete(ctx, DeleteRequest{IDs: []string{"c-0", "missing"}}); err != nil {
		t.Fatalf("Delete by ids: %v", err)
	}

	res, _ := coll.Get(ctx, GetRequest{})
	if want := []string{"b-0"}; !slices.Equal(res.IDs, want) {
		t.Errorf("IDs = %v, want %v", res.IDs, want)
	}

	if err := coll.Delete(ctx, DeleteRequest{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty delete err = %v, want ErrInvalidArgument", err)
	}
}

func TestInMemory_DeleteCollection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, coll := newMemCollection(t)
	_ = coll.Add(ctx, []string{"doc"}, []Metadata{{}}, []string{"1"})

	if err := client.DeleteCollection(ctx, KnowledgeBase); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
	if _, err := coll.Count(ctx); KindOf(err) != KindNotFound {
		t.Errorf("stale handle Count err = %v, want not found", err)
	}
	if err := client.DeleteCollection(ctx, KnowledgeBase); !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("second DeleteCollection err = %v, want ErrCollectionNotFound", err)
	}

	fresh, err := client.OpenCollection(ctx, KnowledgeBase)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if n, _ := fresh.Count(ctx); n != 0 {
		t.Errorf("fresh Count = %d, want 0", n)
	}
}

func TestInMemory_Closed(t *testing.T) {
	t.Parallel()

	client := NewInMemoryClient()
	_ = client.Close()
	if _, err := client.OpenCollection(context.Background(), ChatHistory); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestNewError(t *testing.T) {
	t.Parallel()

	if NewError("op", "c", nil) != nil {
		t.Error("NewError(nil) should be nil")
	}

	inner := NewError("get", "kb", ErrCollectionNotFound)
	outer := NewError("list", "kb", inner)
	if outer != inner {
		t.Error("an existing *StoreError should pass through")
	}
	if got := inner.Error(); got != "docstore: get kb: collection not found" {
		t.Errorf("Error() = %q", got)
	}
	if KindOf(errors.New("boom")) != KindTransport {
		t.Error("plain errors classify as transport")
	}
}
