package assembler_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/applymytech/openElara/internal/assembler"
	"github.com/applymytech/openElara/internal/docstore"
	"github.com/applymytech/openElara/internal/sanitize"
)

func TestParseChatTurn_Render(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"id": 42,
		"timestamp": 1700000000999,
		"persona": "Elara",
		"history": [
			{"role": "user", "content": "  Hi there  "},
			{"role": "assistant", "content": ""},
			{"content": [{"type": "text", "text": "hello"}]},
			{"role": "assistant", "content": null}
		]
	}`)

	turn, err := assembler.ParseChatTurn(raw)
	if err != nil {
		t.Fatalf("ParseChatTurn: %v", err)
	}
	if turn.ID != "42" || turn.Persona != "Elara" {
		t.Errorf("ID/Persona = %q/%q", turn.ID, turn.Persona)
	}

	want := "[2023-11-14T22:13:20] [USER]: Hi there\n\n" +
		`[2023-11-14T22:13:20] [UNKNOWN]: [{"type":"text","text":"hello"}]`
	if got := turn.Render(time.UTC); got != want {
		t.Errorf("Render =\n%q\nwant\n%q", got, want)
	}

	meta := turn.Metadata()
	if meta.Source != "42" {
		t.Errorf("metadata source = %q", meta.Source)
	}
	if f, ok := meta.Timestamp.Float(); !ok || f != 1700000000999 {
		t.Errorf("metadata timestamp = %v, %v", f, ok)
	}
}

func TestParseChatTurn_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr error
		wantMsg string
	}{
		{name: "not_json", raw: `{"id":`, wantErr: assembler.ErrInvalidTurnJSON, wantMsg: "Invalid JSON input for chat turn: "},
		{name: "empty", raw: ``, wantErr: assembler.ErrInvalidTurnJSON, wantMsg: "Invalid JSON input for chat turn: "},
		{name: "missing_id", raw: `{"timestamp": 1}`, wantErr: assembler.ErrMalformedTurn, wantMsg: "Chat turn object is malformed (missing id or timestamp)."},
		{name: "missing_timestamp", raw: `{"id": "a"}`, wantErr: assembler.ErrMalformedTurn},
		{name: "null_timestamp", raw: `{"id": "a", "timestamp": null}`, wantErr: assembler.ErrMalformedTurn},
		{name: "array", raw: `[1,2]`, wantErr: assembler.ErrMalformedTurn},
		{name: "timestamp_too_large", raw: `{"id": "a", "timestamp": 1e300}`, wantErr: assembler.ErrMalformedTurn},
		{name: "timestamp_past_year_9999", raw: `{"id": "a", "timestamp": 253402300800000}`, wantErr: assembler.ErrMalformedTurn},
		{name: "timestamp_before_year_1", raw: `{"id": "a", "timestamp": -1e17}`, wantErr: assembler.ErrMalformedTurn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := assembler.ParseChatTurn([]byte(tt.raw))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.HasPrefix(err.Error(), tt.wantMsg) {
				t.Errorf("message = %q, want prefix %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParseChatTurn_PersonaTruthiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		persona string
		want    string
	}{
		{persona: `"Coach"`, want: "Coach"},
		{persona: `""`, want: ""},
		{persona: `null`, want: ""},
		{persona: `0`, want: ""},
		{persona: `7`, want: "7"},
		{persona: `false`, want: ""},
	}
	for _, tt := range tests {
		turn, err := assembler.ParseChatTurn([]byte(`{"id":"a","timestamp":1,"persona":` + tt.persona + `}`))
		if err != nil {
			t.Fatalf("persona %s: %v", tt.persona, err)
		}
		if turn.Persona != tt.want {
			t.Errorf("persona %s parsed as %q, want %q", tt.persona, turn.Persona, tt.want)
		}
	}
}

func TestAddChatTurn_EmptyTurnIsNoOp(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(t, docstore.NewInMemoryClient())
	before := countOf(t, a, docstore.ChatHistory)

	res := a.AddChatTurn(context.Background(), turnJSON(t, wireTurn{
		ID:        "empty",
		Timestamp: baseMs,
		History:   []wireMessage{{Role: "user", Content: "   "}, {Role: "assistant", Content: nil}},
	}))

	if !res.Success || res.Error != "" {
		t.Fatalf("res = %+v, want success", res)
	}
	if after := countOf(t, a, docstore.ChatHistory); after != before {
		t.Errorf("count changed from %d to %d", before, after)
	}
}

func TestAddChatTurn_EmptyAfterSanitization(t *testing.T) {
	t.Parallel()

	// A pipeline that wipes everything.
	wipe := sanitize.New(sanitize.Step{Name: "wipe", Apply: func(string) (string, error) { return "", nil }})
	a := assembler.New(docstore.NewInMemoryClient(), assembler.WithSanitizer(wipe))

	res := a.AddChatTurn(context.Background(), turnJSON(t, wireTurn{
		ID: "x", Timestamp: baseMs, History: []wireMessage{{Role: "user", Content: "hello"}},
	}))
	if !res.Success || res.Message != "Document empty after sanitization, skipped." {
		t.Errorf("res = %+v", res)
	}
	if n := countOf(t, a, docstore.ChatHistory); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

func TestAddChatTurn_StripsHTML(t *testing.T) {
	t.Parallel()

	client := docstore.NewInMemoryClient()
	a := newTestAssembler(t, client)
	saveTurn(t, a, "html", baseMs, "", "<script>alert(1)</script>Hello")

	coll, _ := client.OpenCollection(context.Background(), docstore.ChatHistory)
	got, err := coll.Get(context.Background(), docstore.GetRequest{IDs: []string{"html"}, Include: docstore.IncludeDocuments})
	if err != nil || got.Len() != 1 {
		t.Fatalf("get: %v, %+v", err, got)
	}

	doc := got.Documents[0]
	if !strings.Contains(doc, "Hello") {
		t.Errorf("document %q lost its text", doc)
	}
	for _, frag := range []string{"<", ">", "script>", "</"} {
		if strings.Contains(doc, frag) {
			t.Errorf("document %q contains tag fragment %q", doc, frag)
		}
	}
}

func TestAddChatTurn_SanitizerFailureStoresPlaceholder(t *testing.T) {
	t.Parallel()

	broken := sanitize.New(sanitize.Step{Name: "broken", Apply: func(string) (string, error) { return "", errors.New("nope") }})
	client := docstore.NewInMemoryClient()
	a := assembler.New(client, assembler.WithSanitizer(broken))

	res := a.AddChatTurn(context.Background(), turnJSON(t, wireTurn{
		ID: "p", Timestamp: baseMs, History: []wireMessage{{Role: "user", Content: "hello"}},
	}))
	if !res.Success {
		t.Fatalf("res = %+v", res)
	}

	coll, _ := client.OpenCollection(context.Background(), docstore.ChatHistory)
	got, _ := coll.Get(context.Background(), docstore.GetRequest{Include: docstore.IncludeDocuments})
	if got.Len() != 1 || got.Documents[0] != sanitize.Placeholder {
		t.Errorf("stored %+v, want placeholder", got)
	}
}

func TestAddChatTurn_Results(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(t, docstore.NewInMemoryClient())

	res := a.AddChatTurn(context.Background(), []byte(`{"id":"t-1","timestamp":1700000000000,"history":[{"role":"user","content":"hi"}]}`))
	if !res.Success || res.Message != "Saved chat turn t-1." {
		t.Errorf("save = %+v", res)
	}

	res = a.AddChatTurn(context.Background(), []byte(`not json`))
	if res.Success || !strings.HasPrefix(res.Error, "Invalid JSON input for chat turn:") {
		t.Errorf("invalid json = %+v", res)
	}

	res = a.AddChatTurn(context.Background(), []byte(`{"history":[]}`))
	if res.Success || res.Error != "Chat turn object is malformed (missing id or timestamp)." {
		t.Errorf("malformed = %+v", res)
	}

	res = a.AddChatTurn(context.Background(), []byte(`{"id":"x","timestamp":1e300,"history":[{"role":"user","content":"hi"}]}`))
	if res.Success || res.Error != "Chat turn object is malformed (missing id or timestamp)." {
		t.Errorf("out of range timestamp = %+v", res)
	}
}

func TestAddChatTurn_StoreFailure(t *testing.T) {
	t.Parallel()

	f := newFaulty()
	f.openErr = transportErr("open collection")
	a := newTestAssembler(t, f)

	res := a.AddChatTurn(context.Background(), []byte(`{"id":"t","timestamp":1,"history":[{"role":"user","content":"hi"}]}`))
	if res.Success || !strings.Contains(res.Error, "disk on fire") {
		t.Errorf("res = %+v", res)
	}
}
