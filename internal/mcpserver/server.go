// Package mcpserver exposes the context assembler as Model Context Protocol
// tools, so agent hosts can pull chat history and knowledge chunks without
// spawning the CLI per call.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/applymytech/openElara/internal/assembler"
)

// Name is the server name announced during initialization.
const Name = "elara-rag"

// Tool names.
const (
	ToolSearch      = "search_knowledge"
	ToolRecentTurns = "get_recent_turns"
	ToolSaveTurn    = "save_chat_turn"
	ToolListItems   = "list_items"
	ToolCount       = "get_collection_count"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wraps an MCP server bound to one assembler.
type Server struct {
	asm    *assembler.Assembler
	mcp    *server.MCPServer
	logger *slog.Logger
	tools  []string
}

// New builds a server with every tool registered.
func New(asm *assembler.Assembler, version string, opts ...Option) *Server {
	s := &Server{
		asm:    asm,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(Name, version, server.WithToolCapabilities(false))
	s.register(searchTool(), s.handleSearch)
	s.register(recentTurnsTool(), s.handleRecentTurns)
	s.register(saveTurnTool(), s.handleSaveTurn)
	s.register(listItemsTool(), s.handleListItems)
	s.register(countTool(), s.handleCount)
	return s
}

func (s *Server) register(tool mcp.Tool, h server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, h)
	s.tools = append(s.tools, tool.Name)
}

// Tools returns the registered tool names.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio speaks MCP over in/out until ctx is done or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp server listening on stdio", "tools", len(s.tools))
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// jsonResult encodes v as the text payload of a tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("encode result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// optionalString returns a pointer to args[key] when it is a string.
func optionalString(req mcp.CallToolRequest, key string) *string {
	if v, ok := req.GetArguments()[key].(string); ok {
		return &v
	}
	return nil
}

func collectionArg(req mcp.CallToolRequest, fallback string) string {
	if c := req.GetString("collection", ""); c != "" {
		return c
	}
	return fallback
}
