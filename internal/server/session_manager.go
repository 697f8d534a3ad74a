package server

import (
	"context"
	"errors"
	"log"
	"sync"
)

type SessionInfo struct {
	Token    string `json:"token"`
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

// SessionManager maps tokens to room membership. The in-memory map is the
// source of truth; when a SessionStore is attached every write goes through
// to Redis so sessions outlive a process restart.
type SessionManager struct {
	sessions map[string]SessionInfo
	store    *SessionStore
	mu       sync.RWMutex
}

func NewSessionManager(store *SessionStore) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]SessionInfo),
		store:    store,
	}
}

func (sm *SessionManager) StoreSession(info SessionInfo) {
	sm.mu.Lock()
	sm.sessions[info.Token] = info
	sm.mu.Unlock()

	if err := sm.store.Save(context.Background(), info); err != nil {
		log.Printf("Failed to persist session %s: %v", shortToken(info.Token), err)
	}
}

func (sm *SessionManager) GetSession(token string) (SessionInfo, error) {
	sm.mu.RLock()
	session, exists := sm.sessions[token]
	sm.mu.RUnlock()
	if exists {
		return session, nil
	}

	// Miss can mean the process restarted: check the durable store.
	session, err := sm.store.Get(context.Background(), token)
	if err != nil {
		return SessionInfo{}, errors.New("TOKEN_NOT_FOUND: Invalid session token")
	}

	sm.mu.Lock()
	sm.sessions[token] = session
	sm.mu.Unlock()
	return session, nil
}

// RemoveSession is used for players who intentionally leave.
func (sm *SessionManager) RemoveSession(token string) {
	sm.mu.Lock()
	delete(sm.sessions, token)
	sm.mu.Unlock()

	if err := sm.store.Delete(context.Background(), token); err != nil {
		log.Printf("Failed to delete session %s: %v", shortToken(token), err)
	}
}

// RemoveSessionsForRoom clears every session pointing at a deleted room.
func (sm *SessionManager) RemoveSessionsForRoom(roomCode string) {
	sm.mu.Lock()
	var tokens []string
	for token, session := range sm.sessions {
		if session.RoomCode == roomCode {
			tokens = append(tokens, token)
		}
	}
	for _, token := range tokens {
		delete(sm.sessions, token)
	}
	sm.mu.Unlock()

	for _, token := range tokens {
		if err := sm.store.Delete(context.Background(), token); err != nil {
			log.Printf("Failed to delete session %s: %v", shortToken(token), err)
		}
	}
}

func (sm *SessionManager) GetAllSessions() []SessionInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sessions := make([]SessionInfo, 0, len(sm.sessions))
	for _, session := range sm.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// shortToken keeps full tokens out of logs.
func shortToken(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
