package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/michaelbrown/execbridge/internal/push"
	"github.com/michaelbrown/execbridge/internal/session"
	"github.com/michaelbrown/execbridge/internal/tempdir"
)

// Built-in signal types.
const (
	TypePing           = "ping"
	TypeTempDir        = "tempdir"
	TypeDocumentPut    = "document.put"
	TypeDocumentGet    = "document.get"
	TypeDocumentList   = "document.list"
	TypeDocumentDelete = "document.delete"
)

type tempDirPayload struct {
	Tag string `json:"tag"`
}

type tempDirReply struct {
	Type string `json:"type"`
	Tag  string `json:"tag"`
	Path string `json:"path"`
}

type documentPayload struct {
	Name    string `json:"name"`
	Kind    string `json:"kind,omitempty"`
	Content string `json:"content,omitempty"`
}

type documentReply struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content,omitempty"`
}

type documentListReply struct {
	Type  string   `json:"type"`
	Names []string `json:"names"`
}

func registerBuiltins(r *Router) {
	r.Register(TypePing, handlePing)
	r.Register(TypeTempDir, handleTempDir)
	r.Register(TypeDocumentPut, handleDocumentPut)
	r.Register(TypeDocumentGet, handleDocumentGet)
	r.Register(TypeDocumentList, handleDocumentList)
	r.Register(TypeDocumentDelete, handleDocumentDelete)
}

func decodePayload(sig Signal, v any) error {
	if len(sig.Payload) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(sig.Payload, v); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}

func documentName(sig Signal) (documentPayload, error) {
	var p documentPayload
	if err := decodePayload(sig, &p); err != nil {
		return p, err
	}
	if p.Name == "" {
		return p, errors.New("document name is required")
	}
	return p, nil
}

func handlePing(_ context.Context, conn push.Target, _ Signal, _ *session.Session, _ *tempdir.Registry) error {
	return push.Send(conn, map[string]string{"type": "pong"})
}

func handleTempDir(_ context.Context, conn push.Target, sig Signal, _ *session.Session, dirs *tempdir.Registry) error {
	var p tempDirPayload
	if err := decodePayload(sig, &p); err != nil {
		return err
	}
	if p.Tag == "" {
		return errors.New("tag is required")
	}
	if dirs == nil {
		return errors.New("no temp-directory registry")
	}
	path, err := dirs.Get(p.Tag)
	if err != nil {
		return err
	}
	return push.Send(conn, tempDirReply{Type: TypeTempDir, Tag: p.Tag, Path: path})
}

func handleDocumentPut(_ context.Context, conn push.Target, sig Signal, sess *session.Session, _ *tempdir.Registry) error {
	p, err := documentName(sig)
	if err != nil {
		return err
	}
	if err := sess.PutDocument(p.Name, p.Kind, p.Content); err != nil {
		return err
	}
	return push.Send(conn, documentReply{Type: TypeDocumentPut, Name: p.Name})
}

func handleDocumentGet(_ context.Context, conn push.Target, sig Signal, sess *session.Session, _ *tempdir.Registry) error {
	p, err := documentName(sig)
	if err != nil {
		return err
	}
	content, err := sess.Document(p.Name)
	if err != nil {
		return err
	}
	return push.Send(conn, documentReply{Type: TypeDocumentGet, Name: p.Name, Content: content})
}

func handleDocumentList(_ context.Context, conn push.Target, _ Signal, sess *session.Session, _ *tempdir.Registry) error {
	names, err := sess.Documents()
	if err != nil {
		return err
	}
	return push.Send(conn, documentListReply{Type: TypeDocumentList, Names: names})
}

func handleDocumentDelete(_ context.Context, conn push.Target, sig Signal, sess *session.Session, _ *tempdir.Registry) error {
	p, err := documentName(sig)
	if err != nil {
		return err
	}
	if err := sess.DeleteDocument(p.Name); err != nil {
		return err
	}
	return push.Send(conn, documentReply{Type: TypeDocumentDelete, Name: p.Name})
}
