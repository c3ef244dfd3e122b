// Package render is the rendering capability exposed to executed code. It
// turns values into notation files inside the bridge-managed output directory
// and tells the front-end where to find them.
package render

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/michaelbrown/execbridge/internal/session"
)

// Configuration keys accepted by Configure.
const (
	KeyOutputDirectory = "output_directory"
	KeyExtension       = "extension"
)

// DefaultExtension is the file extension used for rendered output.
const DefaultExtension = "ly"

// ErrNotConfigured is returned by Show before an output directory is set.
var ErrNotConfigured = errors.New("render output directory not configured")

// Rendered is the message pushed after a successful Show.
type Rendered struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// Renderer writes rendered output for one session.
type Renderer struct {
	sess *session.Session

	mu  sync.Mutex
	dir string
	ext string
	seq int
}

// New returns a Renderer that announces output through sess.
func New(sess *session.Session) *Renderer {
	return &Renderer{sess: sess, ext: DefaultExtension}
}

// Configure sets a rendering option.
func (r *Renderer) Configure(key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch key {
	case KeyOutputDirectory:
		info, err := os.Stat(value)
		if err != nil {
			return fmt.Errorf("output directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("output directory %s is not a directory", value)
		}
		r.dir = value
	case KeyExtension:
		ext := strings.TrimPrefix(value, ".")
		if ext == "" {
			return errors.New("extension must not be empty")
		}
		r.ext = ext
	default:
		return fmt.Errorf("unknown render option %q", key)
	}
	return nil
}

// OutputDir returns the configured output directory.
func (r *Renderer) OutputDir() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir
}

// Show writes v to a new file in the output directory and notifies the
// front-end. The path is returned even when the notification fails.
func (r *Renderer) Show(v any) (string, error) {
	r.mu.Lock()
	if r.dir == "" {
		r.mu.Unlock()
		return "", ErrNotConfigured
	}
	r.seq++
	name := fmt.Sprintf("render-%04d.%s", r.seq, r.ext)
	path := filepath.Join(r.dir, name)
	r.mu.Unlock()

	if err := os.WriteFile(path, []byte(text(v)), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}

	if err := r.sess.Notify(Rendered{Type: "render", Name: name, Path: path}); err != nil {
		return path, fmt.Errorf("announcing %s: %w", name, err)
	}
	return path, nil
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
