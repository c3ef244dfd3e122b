package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/michaelbrown/execbridge/internal/push"
	"github.com/michaelbrown/execbridge/internal/signal"
)

// openFragment runs when a connection opens so that the session knows where
// to send its notifications.
const openFragment = `bridge.Session().SetPushTarget(bridge.PushTarget())`

// wsConn is a streaming connection. It is a push.Target.
type wsConn struct {
	id   string
	conn *websocket.Conn
	open atomic.Bool
	mu   sync.Mutex // serializes writes
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{id: uuid.New().String(), conn: conn}
}

// IsOpen reports whether the connection can still be written to.
func (c *wsConn) IsOpen() bool {
	return c.open.Load()
}

// Send writes v as one text message. Strings and byte slices are sent as is;
// anything else is encoded as JSON.
func (c *wsConn) Send(v any) error {
	if !c.IsOpen() {
		return push.ErrTargetUnavailable
	}

	var data []byte
	switch t := v.(type) {
	case string:
		data = []byte(t)
	case []byte:
		data = t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding message: %w", err)
		}
		data = b
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing to connection %s: %w", c.id, err)
	}
	return nil
}

func (c *wsConn) close() error {
	c.open.Store(false)
	return c.conn.Close()
}

// checkOrigin accepts requests without an Origin header, which come from
// local non-browser clients, and browser requests from an allowed prefix.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, prefix := range s.cfg.WebSocket.AllowedOrigins {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	s.log.Debug("websocket origin rejected", zap.String("origin", origin))
	return false
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade answers 403 itself when the origin is rejected.
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newWSConn(conn)
	log := s.log.With(zap.String("conn", c.id))
	s.conns.Add(c)
	defer func() {
		c.open.Store(false)
		if err := s.loop.Do(context.Background(), func() { s.onClose(c) }); err != nil {
			log.Debug("close not processed", zap.Error(err))
		}
		conn.Close()
		s.conns.Remove(c.id)
	}()

	ctx := r.Context()
	if err := s.loop.Do(ctx, func() { s.onOpen(c, log) }); err != nil {
		log.Debug("open not processed", zap.Error(err))
		return
	}

	// Each message is fully handled before the next is read.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		msg := string(data)
		if err := s.loop.Do(ctx, func() { s.onMessage(ctx, c, msg, log) }); err != nil {
			log.Debug("message not processed", zap.Error(err))
			return
		}
	}
}

func (s *Server) onOpen(c *wsConn, log *zap.Logger) {
	if tcp, ok := c.conn.NetConn().(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			log.Debug("setting TCP_NODELAY", zap.Error(err))
		}
	}
	c.open.Store(true)
	if s.slot != nil {
		s.slot.Install(c)
	}

	if res := s.exec.Execute(openFragment); res.Failed() {
		log.Warn("registering push target failed", zap.String("traceback", res.Traceback))
	}
	log.Info("websocket opened", zap.String("remote", c.conn.RemoteAddr().String()))
}

func (s *Server) onMessage(ctx context.Context, c *wsConn, msg string, log *zap.Logger) {
	if sig, ok := signal.Decode(msg); ok {
		s.onSignal(ctx, c, sig, log)
		return
	}

	res := s.exec.Execute(msg)
	if !res.Failed() && !res.HasOutput() {
		return
	}
	if err := c.Send(res); err != nil {
		log.Warn("sending result", zap.Error(err))
	}
}

func (s *Server) onSignal(ctx context.Context, c *wsConn, sig signal.Signal, log *zap.Logger) {
	err := signal.ErrUnknownSignal
	if s.signals != nil {
		err = s.signals.Process(ctx, c, sig, s.sess, s.dirs)
	}
	if err == nil {
		return
	}

	log.Warn("signal failed", zap.String("type", sig.Type), zap.Error(err))
	if sendErr := c.Send(signal.NewErrorMessage(sig, err)); sendErr != nil && !errors.Is(sendErr, push.ErrTargetUnavailable) {
		log.Debug("reporting signal failure", zap.Error(sendErr))
	}
}

func (s *Server) onClose(c *wsConn) {
	c.open.Store(false)
	if s.slot != nil {
		s.slot.Clear(c)
	}
	s.log.Info("websocket closed", zap.String("conn", c.id))
}
