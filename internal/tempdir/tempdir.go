// Package tempdir provisions scratch directories keyed by an arbitrary tag.
//
// Executed code and signal handlers use these directories for the files they
// produce. A directory is created the first time its tag is requested and
// lives until RemoveAll runs at shutdown.
package tempdir

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned by Get once the registry has been torn down.
var ErrClosed = errors.New("tempdir registry closed")

// Registry maps tags to directories.
type Registry struct {
	base   string
	prefix string
	log    *zap.Logger

	mu     sync.Mutex
	dirs   map[string]string
	closed bool
	once   sync.Once
}

// NewRegistry returns an empty registry. Directories are created under base,
// or under the system temp directory when base is empty.
func NewRegistry(base, prefix string, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		base:   base,
		prefix: prefix,
		log:    log,
		dirs:   make(map[string]string),
	}
}

// Get returns the directory for tag, creating it on first use.
func (r *Registry) Get(tag string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", ErrClosed
	}
	if dir, ok := r.dirs[tag]; ok {
		return dir, nil
	}

	if r.base != "" {
		if err := os.MkdirAll(r.base, 0o755); err != nil {
			return "", fmt.Errorf("creating tempdir base %s: %w", r.base, err)
		}
	}
	dir, err := os.MkdirTemp(r.base, r.prefix+sanitize(tag)+"-*")
	if err != nil {
		return "", fmt.Errorf("creating tempdir for %q: %w", tag, err)
	}

	r.dirs[tag] = dir
	r.log.Debug("tempdir created", zap.String("tag", tag), zap.String("path", dir))
	return dir, nil
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tags := make([]string, 0, len(r.dirs))
	for tag := range r.dirs {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// RemoveAll recursively deletes every registered directory. Only the first
// call does any work. A failure is logged and the remaining directories are
// still removed; all failures are returned joined.
func (r *Registry) RemoveAll() error {
	var errs []error
	r.once.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.closed = true
		for tag, dir := range r.dirs {
			if err := os.RemoveAll(dir); err != nil {
				r.log.Warn("removing tempdir", zap.String("tag", tag), zap.String("path", dir), zap.Error(err))
				errs = append(errs, fmt.Errorf("removing %s: %w", dir, err))
				continue
			}
			r.log.Debug("tempdir removed", zap.String("tag", tag), zap.String("path", dir))
		}
		r.dirs = make(map[string]string)
	})
	return errors.Join(errs...)
}

// maxTagLen bounds the part of a directory name taken from the tag. The
// random suffix keeps truncated tags apart.
const maxTagLen = 32

// sanitize keeps tags usable as a directory name fragment.
func sanitize(tag string) string {
	if len(tag) > maxTagLen {
		tag = tag[:maxTagLen]
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, tag)
}
