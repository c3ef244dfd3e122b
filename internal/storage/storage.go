package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no document matches a name or prefix.
var ErrNotFound = errors.New("document not found")

// Document is a named text artifact owned by the interactive session, such as
// a score in the domain notation or a rendered fragment.
type Document struct {
	Name      string    `json:"name" yaml:"name"`
	Kind      string    `json:"kind" yaml:"kind"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// ListOptions controls filtering and pagination for ListDocuments. A zero
// Limit means 50; a negative Limit returns everything.
type ListOptions struct {
	Kind   string
	Limit  int
	Offset int
}

// Store is the persistence interface for session documents.
type Store interface {
	// PutDocument inserts or replaces a document. The Name field must be set.
	PutDocument(ctx context.Context, d *Document) error

	// GetDocument returns a document by name or unique name prefix.
	GetDocument(ctx context.Context, name string) (*Document, error)

	// ListDocuments returns documents ordered by updated_at descending.
	ListDocuments(ctx context.Context, opts ListOptions) ([]Document, error)

	// DeleteDocument removes a document.
	DeleteDocument(ctx context.Context, name string) error

	// Close releases resources.
	Close() error
}
