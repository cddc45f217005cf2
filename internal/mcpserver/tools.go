package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/applymytech/openElara/internal/assembler"
	"github.com/applymytech/openElara/internal/docstore"
)

func searchTool() mcp.Tool {
	return mcp.NewTool(ToolSearch,
		mcp.WithDescription("Similarity search over a collection, packed to a token budget. Returns a JSON array of chunks."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithNumber("token_limit", mcp.Required(), mcp.Description("Maximum estimated tokens to return")),
		mcp.WithString("collection", mcp.Description("knowledge_base (default) or chat_history")),
		mcp.WithNumber("n_results", mcp.Description("Candidate count for chat_history searches")),
		mcp.WithString("persona", mcp.Description("Restrict chat_history results to one persona")),
	)
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	budget, err := req.RequireInt("token_limit")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.asm.SearchKnowledge(ctx, assembler.SearchRequest{
		Collection:  collectionArg(req, docstore.KnowledgeBase),
		Query:       query,
		TokenBudget: budget,
		NResults:    req.GetInt("n_results", 0),
		Persona:     optionalString(req, "persona"),
	}))
}

func recentTurnsTool() mcp.Tool {
	return mcp.NewTool(ToolRecentTurns,
		mcp.WithDescription("Most recent chat turns, oldest first, packed to a token budget."),
		mcp.WithNumber("n_turns", mcp.Required(), mcp.Description("How many recent turns to consider")),
		mcp.WithNumber("token_limit", mcp.Required(), mcp.Description("Maximum estimated tokens to return")),
		mcp.WithString("persona", mcp.Description("Case-insensitive persona filter. Empty selects turns without a persona")),
	)
}

func (s *Server) handleRecentTurns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := req.RequireInt("n_turns")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	budget, err := req.RequireInt("token_limit")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.asm.RecentTurns(ctx, assembler.RecentTurnsRequest{
		NTurns:      n,
		TokenBudget: budget,
		Persona:     optionalString(req, "persona"),
	}))
}

func saveTurnTool() mcp.Tool {
	return mcp.NewTool(ToolSaveTurn,
		mcp.WithDescription("Store one chat turn in chat_history."),
		mcp.WithString("turn", mcp.Required(),
			mcp.Description(`Chat turn JSON: {"id", "timestamp" (epoch ms), "persona", "history": [{"role", "content"}]}`)),
	)
}

func (s *Server) handleSaveTurn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("turn")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := s.asm.AddChatTurn(ctx, []byte(raw))
	if !res.Success {
		s.logger.Warn("save_chat_turn rejected", "error", res.Error)
	}
	return jsonResult(res)
}

func listItemsTool() mcp.Tool {
	return mcp.NewTool(ToolListItems,
		mcp.WithDescription("Page through a collection, newest first."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
		mcp.WithNumber("limit", mcp.Description("Page size")),
		mcp.WithNumber("offset", mcp.Description("Items to skip")),
		mcp.WithBoolean("full_content", mcp.Description("Include full documents instead of previews only")),
	)
}

func (s *Server) handleListItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lr := assembler.ListRequest{
		Collection:  collection,
		Offset:      req.GetInt("offset", 0),
		FullContent: req.GetBool("full_content", false),
	}
	if _, ok := req.GetArguments()["limit"]; ok {
		limit := req.GetInt("limit", 0)
		lr.Limit = &limit
	}
	return jsonResult(s.asm.ListItems(ctx, lr))
}

func countTool() mcp.Tool {
	return mcp.NewTool(ToolCount,
		mcp.WithDescription("Number of documents in a collection."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
	)
}

func (s *Server) handleCount(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.asm.Count(ctx, collection)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}
