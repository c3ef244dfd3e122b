package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/michaelbrown/execbridge/internal/storage"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements storage.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database; nothing then outlives the process.
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Every pooled connection to ":memory:" would get its own database.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) PutDocument(ctx context.Context, d *storage.Document) error {
	if d.Name == "" {
		return errors.New("document name is required")
	}

	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (name, kind, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			kind = excluded.kind, content = excluded.content, updated_at = excluded.updated_at`,
		d.Name, d.Kind, d.Content,
		d.CreatedAt.Format(time.RFC3339Nano), d.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storing document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, name string) (*storage.Document, error) {
	// Try exact match first, then prefix match
	d, err := s.getDocumentExact(ctx, name)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("querying document: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, kind, content, created_at, updated_at
		FROM documents WHERE substr(name, 1, length(?)) = ?`, name, name)
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}
	defer rows.Close()

	var matches []*storage.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous document prefix %q matches %d documents", name, len(matches))
	}
}

func (s *SQLiteStore) getDocumentExact(ctx context.Context, name string) (*storage.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, kind, content, created_at, updated_at
		FROM documents WHERE name = ?`, name)
	return scanDocument(row)
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, opts storage.ListOptions) ([]storage.Document, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = 50
	}
	if limit < 0 {
		limit = -1 // SQLite: no limit
	}

	query := `SELECT name, kind, content, created_at, updated_at FROM documents`
	var args []any

	if opts.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, opts.Kind)
	}

	query += ` ORDER BY updated_at DESC, name ASC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []storage.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, name string) error {
	// Resolve prefix first
	d, err := s.GetDocument(ctx, name)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM documents WHERE name = ?`, d.Name)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Scanner interface to work with both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*storage.Document, error) {
	var d storage.Document
	var createdAt, updatedAt string
	if err := s.Scan(&d.Name, &d.Kind, &d.Content, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &d, nil
}
