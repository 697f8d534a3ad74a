package server

import (
	"sync"

	"github.com/coder/websocket"
)

// ConnectionManager tracks live websockets and which session token each one
// authenticated as. One token maps to at most one connection: a reconnect
// from a second device evicts the first.
type ConnectionManager struct {
	connections map[string]*websocket.Conn // connectionID -> socket
	tokens      map[string]string          // connectionID -> token
	byToken     map[string]string          // token -> connectionID
	mu          sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
		tokens:      make(map[string]string),
		byToken:     make(map[string]string),
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = conn
}

// BindToken associates a connection with a session token and returns the
// connection that previously held the token, if any, so the caller can
// close it.
func (cm *ConnectionManager) BindToken(connectionID string, conn *websocket.Conn, token string) (oldConnectionID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[connectionID] = conn

	if old, exists := cm.byToken[token]; exists && old != connectionID {
		oldConnectionID = old
		delete(cm.tokens, old)
	}

	cm.tokens[connectionID] = token
	cm.byToken[token] = connectionID
	return oldConnectionID
}

func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	delete(cm.connections, id)
	if token, exists := cm.tokens[id]; exists {
		delete(cm.tokens, id)
		if cm.byToken[token] == id {
			delete(cm.byToken, token)
		}
	}
}

func (cm *ConnectionManager) GetTokenByConnection(connectionID string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.tokens[connectionID]
}

func (cm *ConnectionManager) GetConnectionByToken(token string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	connID, exists := cm.byToken[token]
	if !exists {
		return nil
	}
	return cm.connections[connID]
}

func (cm *ConnectionManager) GetConnection(connectionID string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.connections[connectionID]
}
