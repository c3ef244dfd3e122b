package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Stream is a WebSocket connection to a bridge. Results and pushed messages
// arrive on Messages in the order the bridge sent them.
type Stream struct {
	conn     *websocket.Conn
	messages chan string
	done     chan struct{}

	mu  sync.Mutex // serializes writes
	err error
}

// Dial opens a stream to the bridge at baseURL.
func Dial(ctx context.Context, baseURL string) (*Stream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, WebSocketURL(baseURL), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing bridge: %w", err)
	}
	s := &Stream{
		conn:     conn,
		messages: make(chan string, 64),
		done:     make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *Stream) readLoop() {
	defer close(s.messages)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			return
		}
		select {
		case s.messages <- string(data):
		case <-s.done:
			return
		}
	}
}

// Send writes a fragment or signal.
func (s *Stream) Send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return fmt.Errorf("sending: %w", err)
	}
	return nil
}

// Messages is closed when the connection ends.
func (s *Stream) Messages() <-chan string {
	return s.messages
}

// Err returns the error that ended the stream, if it ended abnormally.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close sends a close frame and releases the connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return nil
	default:
		close(s.done)
	}
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.mu.Unlock()
	return s.conn.Close()
}
