package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/michaelbrown/execbridge/internal/storage"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening memory db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndGetDocument(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	d := &storage.Document{
		Name:    "score-main",
		Kind:    "notation",
		Content: "c'4 d'4",
	}
	if err := s.PutDocument(ctx, d); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}

	got, err := s.GetDocument(ctx, "score-main")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Content != "c'4 d'4" {
		t.Errorf("content = %q, want %q", got.Content, "c'4 d'4")
	}
	if got.Kind != "notation" {
		t.Errorf("kind = %q, want %q", got.Kind, "notation")
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at should not be zero")
	}
}

func TestPutDocumentReplaces(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.PutDocument(ctx, &storage.Document{Name: "a", Content: "one"}); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}
	if err := s.PutDocument(ctx, &storage.Document{Name: "a", Content: "two"}); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}

	got, err := s.GetDocument(ctx, "a")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Content != "two" {
		t.Errorf("content = %q, want %q", got.Content, "two")
	}

	docs, err := s.ListDocuments(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("got %d documents, want 1", len(docs))
	}
}

func TestPutDocumentRequiresName(t *testing.T) {
	s := testStore(t)
	if err := s.PutDocument(context.Background(), &storage.Document{Content: "x"}); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestGetDocumentByPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.PutDocument(ctx, &storage.Document{Name: "movement-1"}); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}

	got, err := s.GetDocument(ctx, "move")
	if err != nil {
		t.Fatalf("GetDocument by prefix: %v", err)
	}
	if got.Name != "movement-1" {
		t.Errorf("got name %q, want %q", got.Name, "movement-1")
	}
}

func TestGetDocumentAmbiguousPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, name := range []string{"part-a", "part-b"} {
		if err := s.PutDocument(ctx, &storage.Document{Name: name}); err != nil {
			t.Fatalf("PutDocument: %v", err)
		}
	}

	if _, err := s.GetDocument(ctx, "part"); err == nil {
		t.Fatal("expected error for ambiguous prefix")
	}
}

func TestGetDocumentPrefixIsLiteral(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, name := range []string{"ab", "a%c"} {
		if err := s.PutDocument(ctx, &storage.Document{Name: name}); err != nil {
			t.Fatalf("PutDocument: %v", err)
		}
	}

	if _, err := s.GetDocument(ctx, "a_"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetDocument(a_) err = %v, want ErrNotFound", err)
	}
	got, err := s.GetDocument(ctx, "a%")
	if err != nil {
		t.Fatalf("GetDocument(a%%): %v", err)
	}
	if got.Name != "a%c" {
		t.Errorf("got name %q, want %q", got.Name, "a%c")
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.GetDocument(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListDocumentsFilterByKind(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, d := range []storage.Document{
		{Name: "a", Kind: "notation"},
		{Name: "b", Kind: "render"},
		{Name: "c", Kind: "notation"},
	} {
		d := d
		if err := s.PutDocument(ctx, &d); err != nil {
			t.Fatalf("PutDocument: %v", err)
		}
	}

	docs, err := s.ListDocuments(ctx, storage.ListOptions{Kind: "notation"})
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("got %d notation documents, want 2", len(docs))
	}
}

func TestListDocumentsPagination(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		if err := s.PutDocument(ctx, &storage.Document{Name: name}); err != nil {
			t.Fatalf("PutDocument: %v", err)
		}
	}

	page1, err := s.ListDocuments(ctx, storage.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(page1) != 2 {
		t.Errorf("page 1: got %d, want 2", len(page1))
	}

	page3, err := s.ListDocuments(ctx, storage.ListOptions{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(page3) != 1 {
		t.Errorf("page 3: got %d, want 1", len(page3))
	}
}

func TestDeleteDocument(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.PutDocument(ctx, &storage.Document{Name: "doomed", Content: "x"}); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}
	if err := s.DeleteDocument(ctx, "doom"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := s.GetDocument(ctx, "doomed"); err == nil {
		t.Fatal("expected error after delete")
	}
	if err := s.DeleteDocument(ctx, "doomed"); err == nil {
		t.Fatal("expected error deleting a missing document")
	}
}

func TestOpenFileReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bridge.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.PutDocument(ctx, &storage.Document{Name: "kept", Content: "yes"}); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}
	s.Close()

	// Migrations must be idempotent on an existing database.
	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.GetDocument(ctx, "kept")
	if err != nil {
		t.Fatalf("GetDocument after reopen: %v", err)
	}
	if got.Content != "yes" {
		t.Errorf("content = %q, want %q", got.Content, "yes")
	}
}

func TestListDocumentsNegativeLimitReturnsAll(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		name := "doc-" + string(rune('A'+i/26)) + string(rune('a'+i%26))
		if err := s.PutDocument(ctx, &storage.Document{Name: name}); err != nil {
			t.Fatalf("PutDocument: %v", err)
		}
	}

	def, err := s.ListDocuments(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(def) != 50 {
		t.Errorf("default limit: got %d, want 50", len(def))
	}

	all, err := s.ListDocuments(ctx, storage.ListOptions{Limit: -1})
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(all) != 60 {
		t.Errorf("no limit: got %d, want 60", len(all))
	}
}
