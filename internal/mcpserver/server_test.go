package mcpserver

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/applymytech/openElara/internal/assembler"
	"github.com/applymytech/openElara/internal/docstore"
)

func newTestServer(t *testing.T) (*Server, *docstore.InMemoryClient) {
	t.Helper()
	client := docstore.NewInMemoryClient()
	asm := assembler.New(client, assembler.WithLocation(time.UTC))
	return New(asm, "test"), client
}

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("content = %d items, want 1", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want mcp.TextContent", res.Content[0])
	}
	return text.Text, res.IsError
}

const turn = `{"id":"t1","timestamp":1700000000000,"persona":"Elara",` +
	`"history":[{"role":"user","content":"where is the lighthouse"}]}`

func TestTools_Registered(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	want := []string{ToolSearch, ToolRecentTurns, ToolSaveTurn, ToolListItems, ToolCount}
	if got := s.Tools(); !slices.Equal(got, want) {
		t.Errorf("Tools() = %v, want %v", got, want)
	}
	if s.MCP() == nil {
		t.Error("MCP() = nil")
	}
}

func TestSaveThenRecall(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	out, isErr := call(t, s.handleSaveTurn, map[string]any{"turn": turn})
	if isErr {
		t.Fatalf("save returned tool error: %s", out)
	}
	var saved assembler.MutationResult
	if err := json.Unmarshal([]byte(out), &saved); err != nil {
		t.Fatal(err)
	}
	if !saved.Success || saved.Message != "Saved chat turn t1." {
		t.Fatalf("save = %+v", saved)
	}

	out, _ = call(t, s.handleRecentTurns, map[string]any{"n_turns": float64(3), "token_limit": float64(500)})
	var recent assembler.RecentTurnsResult
	if err := json.Unmarshal([]byte(out), &recent); err != nil {
		t.Fatal(err)
	}
	if len(recent.Turns) != 1 || !strings.Contains(recent.Turns[0], "[USER]: where is the lighthouse") {
		t.Errorf("recent = %+v", recent)
	}

	out, _ = call(t, s.handleSearch, map[string]any{
		"collection":  docstore.ChatHistory,
		"query":       "lighthouse",
		"token_limit": float64(500),
		"persona":     "Elara",
	})
	var chunks []string
	if err := json.Unmarshal([]byte(out), &chunks); err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Errorf("search chunks = %v", chunks)
	}

	out, _ = call(t, s.handleCount, map[string]any{"collection": docstore.ChatHistory})
	if out != `{"count":1}` {
		t.Errorf("count = %s", out)
	}
}

func TestSearch_DefaultsToKnowledgeBase(t *testing.T) {
	t.Parallel()

	s, client := newTestServer(t)
	coll, err := client.OpenCollection(context.Background(), docstore.KnowledgeBase)
	if err != nil {
		t.Fatal(err)
	}
	if err := coll.Add(context.Background(),
		[]string{"the lighthouse keeper's log"},
		[]docstore.Metadata{{Source: "log.md"}},
		[]string{"log.md-0"},
	); err != nil {
		t.Fatal(err)
	}

	out, _ := call(t, s.handleSearch, map[string]any{"query": "lighthouse", "token_limit": float64(100)})
	if out != `["the lighthouse keeper's log"]` {
		t.Errorf("search = %s", out)
	}
}

func TestListItems(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	call(t, s.handleSaveTurn, map[string]any{"turn": turn})

	out, _ := call(t, s.handleListItems, map[string]any{"collection": docstore.ChatHistory, "limit": float64(10)})
	var list assembler.ListResult
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatal(err)
	}
	if list.TotalCount != 1 || len(list.IDs) != 1 || list.IDs[0] != "t1" {
		t.Errorf("list = %+v", list)
	}
	if list.Documents != nil {
		t.Errorf("documents present without full_content: %v", list.Documents)
	}
}

func TestMissingArguments(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	tests := []struct {
		name string
		h    func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args map[string]any
	}{
		{"search without query", s.handleSearch, map[string]any{"token_limit": float64(10)}},
		{"search without budget", s.handleSearch, map[string]any{"query": "x"}},
		{"recent without budget", s.handleRecentTurns, map[string]any{"n_turns": float64(1)}},
		{"save without turn", s.handleSaveTurn, map[string]any{}},
		{"list without collection", s.handleListItems, map[string]any{}},
		{"count without collection", s.handleCount, map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, isErr := call(t, tt.h, tt.args); !isErr {
				t.Error("expected a tool error result")
			}
		})
	}
}

func TestSaveTurn_Invalid(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	out, isErr := call(t, s.handleSaveTurn, map[string]any{"turn": "{not json"})
	if isErr {
		t.Fatalf("invalid turn should be a result, got tool error %s", out)
	}
	var res assembler.MutationResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Error == "" {
		t.Errorf("result = %+v, want failure", res)
	}
}
