package assembler_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/applymytech/openElara/internal/assembler"
	"github.com/applymytech/openElara/internal/docstore"
)

// baseMs is 2023-11-14T22:13:20Z in epoch milliseconds.
const baseMs = 1700000000000

var errDiskOnFire = errors.New("disk on fire")

func transportErr(op string) error {
	return docstore.NewError(op, "test", errDiskOnFire)
}

// faultyClient wraps the in-memory store, optionally failing OpenCollection
// or wrapping every opened collection.
type faultyClient struct {
	*docstore.InMemoryClient
	openErr error
	spy     *spyCollection
}

func (f *faultyClient) OpenCollection(ctx context.Context, name string) (docstore.Collection, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	c, err := f.InMemoryClient.OpenCollection(ctx, name)
	if err != nil || f.spy == nil {
		return c, err
	}
	f.spy.Collection = c
	return f.spy, nil
}

// spyCollection records queries and injects failures.
type spyCollection struct {
	docstore.Collection
	getErr    func(docstore.GetRequest) error
	queryErr  error
	countErr  error
	lastQuery docstore.QueryRequest
	queries   int
}

func (s *spyCollection) Get(ctx context.Context, req docstore.GetRequest) (docstore.GetResult, error) {
	if s.getErr != nil {
		if err := s.getErr(req); err != nil {
			return docstore.GetResult{}, err
		}
	}
	return s.Collection.Get(ctx, req)
}

func (s *spyCollection) Query(ctx context.Context, req docstore.QueryRequest) (docstore.QueryResult, error) {
	s.lastQuery = req
	s.queries++
	if s.queryErr != nil {
		return docstore.QueryResult{}, s.queryErr
	}
	return s.Collection.Query(ctx, req)
}

func (s *spyCollection) Count(ctx context.Context) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.Collection.Count(ctx)
}

func newTestAssembler(t *testing.T, client docstore.Client) *assembler.Assembler {
	t.Helper()
	return assembler.New(client, assembler.WithLocation(time.UTC))
}

func newFaulty() *faultyClient {
	return &faultyClient{InMemoryClient: docstore.NewInMemoryClient()}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type wireTurn struct {
	ID        string        `json:"id"`
	Timestamp int64         `json:"timestamp"`
	Persona   string        `json:"persona,omitempty"`
	History   []wireMessage `json:"history"`
}

func turnJSON(t *testing.T, turn wireTurn) []byte {
	t.Helper()
	b, err := json.Marshal(turn)
	if err != nil {
		t.Fatalf("marshal turn: %v", err)
	}
	return b
}

// saveTurn stores a single-message user turn and fails the test on error.
func saveTurn(t *testing.T, a *assembler.Assembler, id string, ts int64, persona, content string) {
	t.Helper()
	res := a.AddChatTurn(context.Background(), turnJSON(t, wireTurn{
		ID:        id,
		Timestamp: ts,
		Persona:   persona,
		History:   []wireMessage{{Role: "user", Content: content}},
	}))
	if !res.Success {
		t.Fatalf("save turn %s: %+v", id, res)
	}
}

func countOf(t *testing.T, a *assembler.Assembler, collection string) int {
	t.Helper()
	res, err := a.Count(context.Background(), collection)
	if err != nil {
		t.Fatalf("count %s: %v", collection, err)
	}
	return res.Count
}

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }
