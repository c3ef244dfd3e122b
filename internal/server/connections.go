package server

import (
	"context"
	"sync"
	"time"
)

// ConnManager tracks open WebSocket connections so they can be closed on
// shutdown. http.Server.Shutdown does not close hijacked connections.
type ConnManager struct {
	mu    sync.RWMutex
	conns map[string]*wsConn
}

// NewConnManager creates a new ConnManager.
func NewConnManager() *ConnManager {
	return &ConnManager{
		conns: make(map[string]*wsConn),
	}
}

// Add starts tracking c.
func (cm *ConnManager) Add(c *wsConn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conns[c.id] = c
}

// Remove stops tracking the connection with id.
func (cm *ConnManager) Remove(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.conns, id)
}

// Len returns the number of tracked connections.
func (cm *ConnManager) Len() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.conns)
}

// CloseAll closes every tracked connection. Handlers notice on their next
// read and remove themselves.
func (cm *ConnManager) CloseAll() {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for _, c := range cm.conns {
		c.close()
	}
}

// Wait blocks until no connections are tracked or ctx ends.
func (cm *ConnManager) Wait(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for cm.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
