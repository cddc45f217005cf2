package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/applymytech/openElara/internal/docstore"
)

// collection is a handle on one row of the collections table. It goes
// stale when the collection is dropped; calls then report not found.
type collection struct {
	db   *sql.DB
	id   string
	name string
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Name implements docstore.Collection.
func (c *collection) Name() string { return c.name }

func (c *collection) fail(op string, err error) error {
	return docstore.NewError(op, c.name, err)
}

// checkLive reports ErrCollectionNotFound when the collection was dropped
// after this handle was opened.
func (c *collection) checkLive(ctx context.Context, q queryer) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM collections WHERE id = ?", c.id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", docstore.ErrCollectionNotFound, c.name)
	}
	if err != nil {
		return fmt.Errorf("sqlite: check collection: %w", err)
	}
	return nil
}

// Add implements docstore.Collection. All rows are written in one
// transaction; an existing id is updated in place.
func (c *collection) Add(ctx context.Context, documents []string, metadatas []docstore.Metadata, ids []string) error {
	const op = "add"
	if err := docstore.ValidateAdd(documents, metadatas, ids); err != nil {
		return c.fail(op, err)
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return c.fail(op, fmt.Errorf("sqlite: begin: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := c.checkLive(ctx, tx); err != nil {
		return c.fail(op, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (collection_id, id, content, metadata)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection_id, id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata`)
	if err != nil {
		return c.fail(op, fmt.Errorf("sqlite: prepare add: %w", err))
	}
	defer func() { _ = stmt.Close() }()

	for i, id := range ids {
		metaJSON, err := json.Marshal(metadatas[i])
		if err != nil {
			return c.fail(op, fmt.Errorf("sqlite: marshal metadata: %w", err))
		}
		if _, err := stmt.ExecContext(ctx, c.id, id, documents[i], string(metaJSON)); err != nil {
			return c.fail(op, fmt.Errorf("sqlite: add document %s: %w", id, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return c.fail(op, fmt.Errorf("sqlite: commit: %w", err))
	}
	return nil
}

// Get implements docstore.Collection.
func (c *collection) Get(ctx context.Context, req docstore.GetRequest) (docstore.GetResult, error) {
	const op = "get"
	if err := c.checkLive(ctx, c.db); err != nil {
		return docstore.GetResult{}, c.fail(op, err)
	}

	var (
		b    strings.Builder
		args = []any{c.id}
	)
	b.WriteString("SELECT id, content, metadata FROM documents WHERE collection_id = ?")
	if len(req.IDs) > 0 {
		b.WriteString(" AND id IN (" + placeholders(len(req.IDs)) + ")")
		for _, id := range req.IDs {
			args = append(args, id)
		}
	}
	b.WriteString(" ORDER BY seq")
	if req.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, req.Limit)
	}

	rows, err := c.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return docstore.GetResult{}, c.fail(op, fmt.Errorf("sqlite: get documents: %w", err))
	}
	defer func() { _ = rows.Close() }()

	docs, err := scanDocuments(rows)
	if err != nil {
		return docstore.GetResult{}, c.fail(op, err)
	}

	res := docstore.GetResult{IDs: make([]string, 0, len(docs))}
	if req.Include.Has(docstore.IncludeDocuments) {
		res.Documents = make([]string, 0, len(docs))
	}
	if req.Include.Has(docstore.IncludeMetadatas) {
		res.Metadatas = make([]docstore.Metadata, 0, len(docs))
	}
	for _, d := range docs {
		res.IDs = append(res.IDs, d.id)
		if res.Documents != nil {
			res.Documents = append(res.Documents, d.content)
		}
		if res.Metadatas != nil {
			res.Metadatas = append(res.Metadatas, d.metadata)
		}
	}
	return res, nil
}

// Query implements docstore.Collection. Candidates are ranked by FTS5 bm25
// over the OR of the query terms.
func (c *collection) Query(ctx context.Context, req docstore.QueryRequest) (docstore.QueryResult, error) {
	const op = "query"
	if err := docstore.ValidateWhere(req.Where); err != nil {
		return docstore.QueryResult{}, c.fail(op, err)
	}
	if err := c.checkLive(ctx, c.db); err != nil {
		return docstore.QueryResult{}, c.fail(op, err)
	}

	match := matchExpr(req.Text)
	if match == "" || req.NResults <= 0 {
		return docstore.QueryResult{}, nil
	}

	var b strings.Builder
	b.WriteString(`
		SELECT d.id, d.content, d.metadata
		FROM documents_fts
		JOIN documents d ON d.seq = documents_fts.rowid
		WHERE documents_fts MATCH ? AND d.collection_id = ?`)
	args := []any{match, c.id}
	whereSQL, whereArgs := whereClause("d.metadata", req.Where)
	b.WriteString(whereSQL)
	args = append(args, whereArgs...)
	b.WriteString(" ORDER BY rank LIMIT ?")
	args = append(args, req.NResults)

	rows, err := c.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return docstore.QueryResult{}, c.fail(op, fmt.Errorf("sqlite: query documents: %w", err))
	}
	defer func() { _ = rows.Close() }()

	docs, err := scanDocuments(rows)
	if err != nil {
		return docstore.QueryResult{}, c.fail(op, err)
	}

	res := docstore.QueryResult{
		IDs:       make([]string, 0, len(docs)),
		Documents: make([]string, 0, len(docs)),
		Metadatas: make([]docstore.Metadata, 0, len(docs)),
	}
	for _, d := range docs {
		res.IDs = append(res.IDs, d.id)
		res.Documents = append(res.Documents, d.content)
		res.Metadatas = append(res.Metadatas, d.metadata)
	}
	return res, nil
}

// Count implements docstore.Collection.
func (c *collection) Count(ctx context.Context) (int, error) {
	const op = "count"
	if err := c.checkLive(ctx, c.db); err != nil {
		return 0, c.fail(op, err)
	}
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE collection_id = ?", c.id).Scan(&n); err != nil {
		return 0, c.fail(op, fmt.Errorf("sqlite: count documents: %w", err))
	}
	return n, nil
}

// Delete implements docstore.Collection.
func (c *collection) Delete(ctx context.Context, req docstore.DeleteRequest) error {
	const op = "delete"
	if err := docstore.ValidateDelete(req); err != nil {
		return c.fail(op, err)
	}
	if err := c.checkLive(ctx, c.db); err != nil {
		return c.fail(op, err)
	}

	query := "DELETE FROM documents WHERE collection_id = ?"
	args := []any{c.id}
	if len(req.IDs) > 0 {
		query += " AND id IN (" + placeholders(len(req.IDs)) + ")"
		for _, id := range req.IDs {
			args = append(args, id)
		}
	} else {
		whereSQL, whereArgs := whereClause("metadata", req.Where)
		query += whereSQL
		args = append(args, whereArgs...)
	}

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return c.fail(op, fmt.Errorf("sqlite: delete documents: %w", err))
	}
	return nil
}

type document struct {
	id       string
	content  string
	metadata docstore.Metadata
}

func scanDocuments(rows *sql.Rows) ([]document, error) {
	var docs []document
	for rows.Next() {
		var (
			d        document
			metaJSON string
		)
		if err := rows.Scan(&d.id, &d.content, &metaJSON); err != nil {
			return nil, fmt.Errorf("sqlite: scan document: %w", err)
		}
		if metaJSON != "" && metaJSON != "{}" && metaJSON != "null" {
			if err := json.Unmarshal([]byte(metaJSON), &d.metadata); err != nil {
				return nil, fmt.Errorf("sqlite: unmarshal metadata of %s: %w", d.id, err)
			}
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan documents rows: %w", err)
	}
	return docs, nil
}

// matchExpr builds an FTS5 query matching any of the text's terms.
func matchExpr(text string) string {
	terms := docstore.Terms(text)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

// whereClause renders an exact-match metadata filter. Keys are sorted so
// the generated SQL is stable. Keys were validated as identifiers.
func whereClause(column string, w docstore.Where) (string, []any) {
	if len(w) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		b    strings.Builder
		args = make([]any, 0, 2*len(keys))
	)
	for _, k := range keys {
		b.WriteString(" AND CAST(json_extract(" + column + ", ?) AS TEXT) = ?")
		args = append(args, "$."+k, w[k])
	}
	return b.String(), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
