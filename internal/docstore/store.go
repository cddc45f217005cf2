// Package docstore defines the client contract for the external document
// store that holds the knowledge_base and chat_history collections, together
// with an in-memory implementation.
package docstore

import "context"

// Well-known collection names.
const (
	KnowledgeBase = "knowledge_base"
	ChatHistory   = "chat_history"
)

// Include selects which parallel arrays a Get call fills.
type Include uint8

const (
	// IncludeDocuments fetches document bodies.
	IncludeDocuments Include = 1 << iota
	// IncludeMetadatas fetches metadata.
	IncludeMetadatas
)

// IncludeAll fetches both documents and metadata.
const IncludeAll = IncludeDocuments | IncludeMetadatas

// Has reports whether i selects f.
func (i Include) Has(f Include) bool { return i&f == f }

// Where is an exact-match metadata filter. Every key must equal its value.
type Where map[string]string

// GetRequest selects documents without ranking.
type GetRequest struct {
	// IDs restricts the result to these ids. Empty means the whole collection.
	IDs []string

	// Include selects documents and/or metadatas. Ids are always returned.
	Include Include

	// Limit caps the number of rows. 0 means no limit.
	Limit int
}

// GetResult holds parallel arrays in insertion order.
// Documents and Metadatas are nil when not requested.
type GetResult struct {
	IDs       []string
	Documents []string
	Metadatas []Metadata
}

// Len returns the number of rows in the result.
func (r GetResult) Len() int { return len(r.IDs) }

// QueryRequest is a similarity search.
type QueryRequest struct {
	Text     string
	NResults int
	Where    Where
}

// QueryResult holds ranked candidates, best match first.
type QueryResult struct {
	IDs       []string
	Documents []string
	Metadatas []Metadata
}

// DeleteRequest removes documents by id or by metadata filter.
// Exactly one of IDs and Where must be set.
type DeleteRequest struct {
	IDs   []string
	Where Where
}

// Collection is a named bucket of documents.
// Implementations must be safe for concurrent use.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// Add stores documents with their metadata under the given ids.
	// The three slices must have equal length. An existing id is replaced.
	// Either every document is stored or none is.
	Add(ctx context.Context, documents []string, metadatas []Metadata, ids []string) error

	// Get fetches documents without ranking.
	Get(ctx context.Context, req GetRequest) (GetResult, error)

	// Query runs a similarity search.
	Query(ctx context.Context, req QueryRequest) (QueryResult, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Delete removes documents by id or by metadata filter.
	Delete(ctx context.Context, req DeleteRequest) error
}

// Client opens and drops collections.
type Client interface {
	// OpenCollection returns the named collection, creating it if needed.
	OpenCollection(ctx context.Context, name string) (Collection, error)

	// DeleteCollection drops the named collection and all its documents.
	// Returns an error wrapping ErrCollectionNotFound if it does not exist.
	DeleteCollection(ctx context.Context, name string) error

	// Close releases the underlying resources.
	Close() error
}
