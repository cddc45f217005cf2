package assembler

import "github.com/applymytech/openElara/internal/docstore"

// RecentTurnsRequest asks for the latest chat turns.
type RecentTurnsRequest struct {
	NTurns      int
	TokenBudget int

	// Persona filters turns case-insensitively. Nil means no filter; an
	// empty string selects turns stored without a persona.
	Persona *string
}

// RecentTurnsResult holds turns oldest first.
type RecentTurnsResult struct {
	Turns        []string `json:"turns"`
	TotalTokens  int      `json:"total_tokens"`
	WasTruncated bool     `json:"was_truncated"`
}

// SearchRequest is a similarity search over one collection.
type SearchRequest struct {
	Collection  string
	Query       string
	TokenBudget int

	// NResults is the candidate count. Values <= 0 use the default.
	// Ignored for knowledge_base.
	NResults int

	// Persona scopes chat_history searches by exact match. Nil or empty
	// means no filter.
	Persona *string
}

// ListRequest pages through a collection.
type ListRequest struct {
	Collection  string   `json:"-"`
	Limit       *int     `json:"limit"`
	Offset      int      `json:"offset"`
	FullContent bool     `json:"full_content"`
	IDs         []string `json:"ids"`
}

// ListResult is one page of a collection, newest first.
type ListResult struct {
	IDs        []string            `json:"ids"`
	Metadatas  []docstore.Metadata `json:"metadatas"`
	Documents  []string            `json:"documents,omitempty"`
	Previews   []string            `json:"previews"`
	TotalCount int                 `json:"total_count"`
	Offset     int                 `json:"offset"`
	Limit      int                 `json:"limit"`
}

func emptyList() ListResult {
	return ListResult{
		IDs:       []string{},
		Metadatas: []docstore.Metadata{},
		Previews:  []string{},
	}
}

// MutationResult reports the outcome of a write. Exactly one of Message
// and Error is set.
type MutationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func succeeded(msg string) MutationResult { return MutationResult{Success: true, Message: msg} }

func failed(err error) MutationResult { return MutationResult{Error: err.Error()} }

// CountResult is the document count of a collection.
type CountResult struct {
	Count int `json:"count"`
}
