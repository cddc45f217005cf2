package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/applymytech/openElara/internal/docstore"
)

// Compile-time interface guards.
var (
	_ docstore.Client     = (*Client)(nil)
	_ docstore.Collection = (*collection)(nil)
)

// Client is a docstore.Client backed by one SQLite database.
type Client struct {
	db     *sql.DB
	logger *slog.Logger
	path   string

	closeOnce sync.Once
	closeErr  error
}

// Path returns the database file path.
func (c *Client) Path() string { return c.path }

// Ping checks that the database and its FTS5 index are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT count(*) FROM documents_fts").Scan(&n); err != nil {
		return fmt.Errorf("sqlite: FTS5 not available: %w", err)
	}
	return nil
}

// OpenCollection implements docstore.Client. The collection row is
// created with a fresh UUID on first use.
func (c *Client) OpenCollection(ctx context.Context, name string) (docstore.Collection, error) {
	const op = "open collection"
	if err := docstore.ValidateName(name); err != nil {
		return nil, docstore.NewError(op, name, err)
	}

	if _, err := c.db.ExecContext(ctx,
		"INSERT INTO collections (id, name) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		uuid.NewString(), name,
	); err != nil {
		return nil, docstore.NewError(op, name, fmt.Errorf("sqlite: create collection: %w", err))
	}

	var id string
	if err := c.db.QueryRowContext(ctx, "SELECT id FROM collections WHERE name = ?", name).Scan(&id); err != nil {
		return nil, docstore.NewError(op, name, fmt.Errorf("sqlite: read collection: %w", err))
	}

	return &collection{db: c.db, id: id, name: name}, nil
}

// DeleteCollection implements docstore.Client.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	const op = "delete collection"

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return docstore.NewError(op, name, fmt.Errorf("sqlite: begin: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx, "SELECT id FROM collections WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.NewError(op, name, fmt.Errorf("%w: %s", docstore.ErrCollectionNotFound, name))
	}
	if err != nil {
		return docstore.NewError(op, name, fmt.Errorf("sqlite: read collection: %w", err))
	}

	// Explicit delete so the FTS triggers see every row.
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE collection_id = ?", id); err != nil {
		return docstore.NewError(op, name, fmt.Errorf("sqlite: delete documents: %w", err))
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE id = ?", id); err != nil {
		return docstore.NewError(op, name, fmt.Errorf("sqlite: delete collection: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return docstore.NewError(op, name, fmt.Errorf("sqlite: commit: %w", err))
	}
	c.logger.Debug("collection dropped", "collection", name, "collection_id", id)
	return nil
}

// Close implements docstore.Client. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.db.Close()
	})
	return c.closeErr
}
