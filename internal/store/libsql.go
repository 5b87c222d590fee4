package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/scenario/pkg/schema"
)

// LibSQLStore implements DocumentStore using libSQL (embedded SQLite fork).
// Contents are stored as JSON text and filtered with json_extract.
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a store.
// The path should be a file URI, e.g. "file:/path/to/scenario.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

func (s *LibSQLStore) Get(ctx context.Context, collection, tag string) (*schema.Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT contents FROM documents WHERE collection = ? AND tag = ?`, collection, tag,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(collection, tag)
	}
	if err != nil {
		return nil, storeErr("get", err)
	}
	contents, err := decodeContents(raw)
	if err != nil {
		return nil, err
	}
	return &schema.Document{Tag: tag, Contents: contents}, nil
}

func (s *LibSQLStore) Query(ctx context.Context, collection string, filters []schema.Filter, limit int) ([]schema.Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	where := []string{"collection = ?"}
	args := []any{collection}
	for _, f := range filters {
		clause, clauseArgs := sqlClause(f)
		where = append(where, clause)
		args = append(args, clauseArgs...)
	}

	query := `SELECT tag, contents FROM documents WHERE ` + strings.Join(where, " AND ") + ` ORDER BY tag`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query", err)
	}
	defer rows.Close()

	var docs []schema.Document
	for rows.Next() {
		var tag, raw string
		if err := rows.Scan(&tag, &raw); err != nil {
			return nil, storeErr("scan", err)
		}
		contents, err := decodeContents(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, schema.Document{Tag: tag, Contents: contents})
	}
	return docs, rows.Err()
}

func (s *LibSQLStore) WriteBatch(ctx context.Context, collection string, docs []schema.Document) error {
	if err := checkBatch(collection, docs); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin write", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, d := range docs {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM documents WHERE collection = ? AND tag = ?`, collection, d.Tag,
		).Scan(&exists)
		if err != nil {
			return storeErr("write", err)
		}
		if exists > 0 {
			return alreadyExists(collection, d.Tag)
		}
		raw, err := json.Marshal(d.Contents)
		if err != nil {
			return schema.NewErrorf(schema.ErrCodeValidation, "marshal document %q: %v", d.Tag, err).WithCause(err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, tag, contents) VALUES (?, ?, ?)`, collection, d.Tag, string(raw),
		); err != nil {
			return storeErr("write", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit write", err)
	}
	return nil
}

func (s *LibSQLStore) Update(ctx context.Context, collection, tag string, partial map[string]any) (*schema.Document, error) {
	var updated map[string]any
	err := s.rewrite(ctx, collection, tag, func(contents map[string]any) (map[string]any, error) {
		updated = mergeTop(contents, partial)
		return updated, nil
	})
	if err != nil {
		return nil, err
	}
	return &schema.Document{Tag: tag, Contents: updated}, nil
}

func (s *LibSQLStore) DeleteField(ctx context.Context, collection, tag, field string) error {
	return s.rewrite(ctx, collection, tag, func(contents map[string]any) (map[string]any, error) {
		if !removeField(contents, field) {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound, "field %q not found in document %q", field, tag).
				WithDetails(map[string]any{"collection": collection, "document_tag": tag, "field": field})
		}
		return contents, nil
	})
}

func (s *LibSQLStore) DeleteDocument(ctx context.Context, collection, tag string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND tag = ?`, collection, tag)
	if err != nil {
		return storeErr("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("delete", err)
	}
	if n == 0 {
		return notFound(collection, tag)
	}
	return nil
}

func (s *LibSQLStore) DeleteBatch(ctx context.Context, collection string, limit int) (int, error) {
	if limit <= 0 {
		return 0, schema.NewErrorf(schema.ErrCodeValidation, "delete batch size must be positive, got %d", limit)
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE rowid IN (SELECT rowid FROM documents WHERE collection = ? ORDER BY tag LIMIT ?)`,
		collection, limit,
	)
	if err != nil {
		return 0, storeErr("delete batch", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("delete batch", err)
	}
	return int(n), nil
}

func (s *LibSQLStore) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT collection FROM documents ORDER BY collection`)
	if err != nil {
		return nil, storeErr("collections", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, storeErr("collections", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// rewrite loads a document, applies fn and stores the result in one transaction.
func (s *LibSQLStore) rewrite(ctx context.Context, collection, tag string, fn func(map[string]any) (map[string]any, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin update", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT contents FROM documents WHERE collection = ? AND tag = ?`, collection, tag,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(collection, tag)
	}
	if err != nil {
		return storeErr("update", err)
	}
	contents, err := decodeContents(raw)
	if err != nil {
		return err
	}
	next, err := fn(contents)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(next)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "marshal document %q: %v", tag, err).WithCause(err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET contents = ?, updated_at = CURRENT_TIMESTAMP WHERE collection = ? AND tag = ?`,
		string(encoded), collection, tag,
	); err != nil {
		return storeErr("update", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit update", err)
	}
	return nil
}

func decodeContents(raw string) (map[string]any, error) {
	contents := map[string]any{}
	if raw == "" {
		return contents, nil
	}
	if err := json.Unmarshal([]byte(raw), &contents); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "corrupt document contents: %v", err).WithCause(err)
	}
	return contents, nil
}

func storeErr(op string, err error) *schema.ScenarioError {
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %v", op, err).WithCause(err)
}

var _ DocumentStore = (*LibSQLStore)(nil)
