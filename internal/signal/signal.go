// Package signal handles the structured messages a front-end sends over the
// streaming connection alongside code fragments.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/michaelbrown/execbridge/internal/push"
	"github.com/michaelbrown/execbridge/internal/session"
	"github.com/michaelbrown/execbridge/internal/tempdir"
)

// ErrUnknownSignal is returned for a signal type with no registered handler.
var ErrUnknownSignal = errors.New("unknown signal")

// Signal is a decoded structured message.
type Signal struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Raw is the message exactly as received.
	Raw string `json:"-"`
}

// Decode reports whether msg is a signal. A signal starts with '{' and is a
// JSON object; anything else is code.
func Decode(msg string) (Signal, bool) {
	if !strings.HasPrefix(msg, "{") {
		return Signal{}, false
	}
	var sig Signal
	if err := json.Unmarshal([]byte(msg), &sig); err != nil {
		return Signal{}, false
	}
	sig.Raw = msg
	return sig, true
}

// Processor handles signals received on conn.
type Processor interface {
	Process(ctx context.Context, conn push.Target, sig Signal, sess *session.Session, dirs *tempdir.Registry) error
}

// HandlerFunc handles one signal type.
type HandlerFunc func(ctx context.Context, conn push.Target, sig Signal, sess *session.Session, dirs *tempdir.Registry) error

// ErrorMessage is sent back when a signal fails.
type ErrorMessage struct {
	Type   string `json:"type"`
	Signal string `json:"signal"`
	Error  string `json:"error"`
}

// NewErrorMessage builds the reply for a failed signal.
func NewErrorMessage(sig Signal, err error) ErrorMessage {
	return ErrorMessage{Type: "error", Signal: sig.Type, Error: err.Error()}
}

// Router dispatches signals to handlers by type.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	log      *zap.Logger
}

// NewRouter returns a Router with the built-in handlers registered.
func NewRouter(log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{
		handlers: make(map[string]HandlerFunc),
		log:      log,
	}
	registerBuiltins(r)
	return r
}

// Register installs h for typ, replacing any existing handler.
func (r *Router) Register(typ string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[typ] = h
}

// Types lists the registered signal types.
func (r *Router) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}

// Process runs the handler registered for sig.Type.
func (r *Router) Process(ctx context.Context, conn push.Target, sig Signal, sess *session.Session, dirs *tempdir.Registry) error {
	r.mu.RLock()
	h, ok := r.handlers[sig.Type]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSignal, sig.Type)
	}

	r.log.Debug("processing signal", zap.String("type", sig.Type))
	if err := h(ctx, conn, sig, sess, dirs); err != nil {
		return fmt.Errorf("signal %s: %w", sig.Type, err)
	}
	return nil
}
