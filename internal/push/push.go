// Package push implements the single "active push target" slot through which
// executing code can send unsolicited messages to the front-end.
package push

import (
	"errors"

	"github.com/michaelbrown/execbridge/internal/namespace"
)

// ErrTargetUnavailable is returned when a message is pushed while no
// connection is registered, or when the registered connection has closed.
// It is distinct from a transport failure on an open connection.
var ErrTargetUnavailable = errors.New("push target unavailable")

// Target is a connection that accepts pushed messages.
type Target interface {
	// Send delivers v immediately. Strings and byte slices are sent as raw
	// text; anything else is encoded as JSON.
	Send(v any) error

	// IsOpen reports whether the connection can still accept messages.
	IsOpen() bool
}

// Slot is a one-slot registry for the active Target. The registration is
// mirrored into the execution context under namespace.KeyPushTarget so that
// executed code sees the same value.
type Slot struct {
	ns *namespace.Context
}

// NewSlot returns an empty Slot backed by ns.
func NewSlot(ns *namespace.Context) *Slot {
	return &Slot{ns: ns}
}

// Install registers t, overwriting any previous registration.
func (s *Slot) Install(t Target) {
	s.ns.Set(namespace.KeyPushTarget, t)
}

// Clear empties the slot if t is the registered target. A connection that was
// already replaced by a newer one does not disturb the newer registration.
func (s *Slot) Clear(t Target) {
	if t != nil {
		s.ns.CompareAndDelete(namespace.KeyPushTarget, t)
	}
}

// Current returns the registered target or nil.
func (s *Slot) Current() Target {
	v, ok := s.ns.Get(namespace.KeyPushTarget)
	if !ok {
		return nil
	}
	t, _ := v.(Target)
	return t
}

// Send pushes v to the registered target.
func (s *Slot) Send(v any) error {
	return Send(s.Current(), v)
}

// Send pushes v to t, reporting ErrTargetUnavailable for a nil or closed
// target.
func Send(t Target, v any) error {
	if t == nil || !t.IsOpen() {
		return ErrTargetUnavailable
	}
	return t.Send(v)
}
