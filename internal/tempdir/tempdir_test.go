package tempdir

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestGetIsLazyAndStable(t *testing.T) {
	r := NewRegistry(t.TempDir(), "bridge-", nil)
	defer r.RemoveAll()

	if tags := r.Tags(); len(tags) != 0 {
		t.Fatalf("Tags() = %v, want none", tags)
	}

	a1, err := r.Get("a")
	if err != nil {
		t.Fatalf("Get(a): %v", err)
	}
	a2, err := r.Get("a")
	if err != nil {
		t.Fatalf("Get(a) again: %v", err)
	}
	b, err := r.Get("b")
	if err != nil {
		t.Fatalf("Get(b): %v", err)
	}

	if a1 != a2 {
		t.Errorf("Get(a) = %s then %s, want the same directory", a1, a2)
	}
	if a1 == b {
		t.Errorf("tags a and b share %s", a1)
	}
	if got, want := r.Tags(), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Tags() = %v, want %v", got, want)
	}

	info, err := os.Stat(a1)
	if err != nil {
		t.Fatalf("stat %s: %v", a1, err)
	}
	if !info.IsDir() {
		t.Errorf("%s is not a directory", a1)
	}
	if !strings.HasPrefix(filepath.Base(a1), "bridge-a-") {
		t.Errorf("%s does not start with bridge-a-", filepath.Base(a1))
	}
}

func TestGetSanitizesTag(t *testing.T) {
	r := NewRegistry(t.TempDir(), "", nil)
	defer r.RemoveAll()

	dir, err := r.Get("../escape/me")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if filepath.Dir(dir) != r.base {
		t.Errorf("%s escaped %s", dir, r.base)
	}
}

func TestGetLongTag(t *testing.T) {
	r := NewRegistry(t.TempDir(), "bridge-", nil)
	defer r.RemoveAll()

	long := strings.Repeat("a", 300)
	dir, err := r.Get(long)
	if err != nil {
		t.Fatalf("Get(long tag): %v", err)
	}
	if n := len(filepath.Base(dir)); n > 255 {
		t.Errorf("directory name is %d bytes", n)
	}

	// Tags sharing the truncated prefix still get their own directory.
	other, err := r.Get(long + "b")
	if err != nil {
		t.Fatalf("Get(long tag + b): %v", err)
	}
	if other == dir {
		t.Errorf("distinct tags share %s", dir)
	}
	again, _ := r.Get(long)
	if again != dir {
		t.Errorf("Get(long tag) = %s, want %s", again, dir)
	}
}

func TestRemoveAllOnce(t *testing.T) {
	r := NewRegistry(t.TempDir(), "", nil)

	a, err := r.Get("a")
	if err != nil {
		t.Fatalf("Get(a): %v", err)
	}
	if err := os.WriteFile(filepath.Join(a, "out.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := r.Get("b")
	if err != nil {
		t.Fatalf("Get(b): %v", err)
	}

	if err := r.RemoveAll(); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	for _, dir := range []string{a, b} {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("%s should be removed, stat err = %v", dir, err)
		}
	}

	// Second call is a no-op, and the registry refuses new tags.
	if err := r.RemoveAll(); err != nil {
		t.Errorf("second RemoveAll: %v", err)
	}
	if _, err := r.Get("c"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after RemoveAll err = %v, want ErrClosed", err)
	}
}

func TestRemoveAllContinuesPastMissingDirs(t *testing.T) {
	r := NewRegistry(t.TempDir(), "", nil)

	a, err := r.Get("a")
	if err != nil {
		t.Fatalf("Get(a): %v", err)
	}
	b, err := r.Get("b")
	if err != nil {
		t.Fatalf("Get(b): %v", err)
	}

	// Already gone: os.RemoveAll treats this as success.
	if err := os.RemoveAll(a); err != nil {
		t.Fatal(err)
	}

	if err := r.RemoveAll(); err != nil {
		t.Errorf("RemoveAll: %v", err)
	}
	if _, err := os.Stat(b); !os.IsNotExist(err) {
		t.Errorf("%s should be removed, stat err = %v", b, err)
	}
}

func TestGetFailsWhenBaseUnusable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(file, "", nil)
	if _, err := r.Get("a"); err == nil {
		t.Error("Get under a regular file succeeded")
	}
}
