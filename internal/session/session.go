// Package session provides the interactive session shared by every fragment
// and signal the bridge handles.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/michaelbrown/execbridge/internal/push"
	"github.com/michaelbrown/execbridge/internal/storage"
)

// Document change actions carried in notifications.
const (
	ActionPut    = "put"
	ActionDelete = "delete"
)

// Notification tells the front-end that a session document changed.
type Notification struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Action string `json:"action"`
}

// Session is the shared interactive session. It owns the documents produced
// during the process lifetime and a reference to the connection that should
// hear about changes to them.
type Session struct {
	ID string

	store storage.Store
	log   *zap.Logger

	mu     sync.RWMutex
	target push.Target
}

// New creates a session backed by store.
func New(store storage.Store, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.New().String()
	return &Session{
		ID:    id,
		store: store,
		log:   log.With(zap.String("session", id)),
	}
}

// SetPushTarget records the connection that receives session notifications.
func (s *Session) SetPushTarget(t push.Target) {
	s.mu.Lock()
	s.target = t
	s.mu.Unlock()
	s.log.Debug("push target updated", zap.Bool("set", t != nil))
}

// PushTarget returns the connection recorded by SetPushTarget.
func (s *Session) PushTarget() push.Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target
}

// Notify sends v to the session's push target. It returns
// push.ErrTargetUnavailable when there is none or it has closed.
func (s *Session) Notify(v any) error {
	return push.Send(s.PushTarget(), v)
}

// PutDocument stores a document and notifies the front-end.
func (s *Session) PutDocument(name, kind, content string) error {
	d := &storage.Document{Name: name, Kind: kind, Content: content}
	if err := s.store.PutDocument(context.Background(), d); err != nil {
		return fmt.Errorf("storing document %s: %w", name, err)
	}
	s.notifyChange(name, ActionPut)
	return nil
}

// Document returns the content of a stored document.
func (s *Session) Document(name string) (string, error) {
	d, err := s.store.GetDocument(context.Background(), name)
	if err != nil {
		return "", err
	}
	return d.Content, nil
}

// Documents returns the names of all stored documents, most recent first.
func (s *Session) Documents() ([]string, error) {
	docs, err := s.store.ListDocuments(context.Background(), storage.ListOptions{Limit: -1})
	if err != nil {
		return nil, err
	}
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Name
	}
	return names, nil
}

// DeleteDocument removes a document and notifies the front-end.
func (s *Session) DeleteDocument(name string) error {
	if err := s.store.DeleteDocument(context.Background(), name); err != nil {
		return fmt.Errorf("deleting document %s: %w", name, err)
	}
	s.notifyChange(name, ActionDelete)
	return nil
}

// notifyChange is best effort: with no front-end attached the change is
// simply not announced.
func (s *Session) notifyChange(name, action string) {
	err := s.Notify(Notification{Type: "document", Name: name, Action: action})
	switch {
	case err == nil, errors.Is(err, push.ErrTargetUnavailable):
	default:
		s.log.Warn("document notification failed", zap.String("name", name), zap.Error(err))
	}
}
