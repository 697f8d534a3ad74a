package server

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// RateLimiter implements per-connection rate limiting using a sliding
// window. Why per-connection: one abusive client shouldn't affect others.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	requests    map[string][]time.Time // connectionID -> recent request times
	mu          sync.Mutex
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
	}
}

// Allow reports whether a connection may send another message. Timestamps
// outside the window are dropped on every check so the per-connection list
// stays bounded.
func (r *RateLimiter) Allow(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	timestamps := r.requests[connectionID]
	valid := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= r.maxRequests {
		r.requests[connectionID] = valid
		return false
	}

	valid = append(valid, now)
	r.requests[connectionID] = valid
	return true
}

// Cleanup removes connections with no activity inside the window.
// Disconnected clients otherwise leave their timestamp lists behind.
func (r *RateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.window)
	for connID, timestamps := range r.requests {
		active := false
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				active = true
				break
			}
		}
		if !active {
			delete(r.requests, connID)
		}
	}
}

// RemoveConnection should be called when a websocket disconnects.
func (r *RateLimiter) RemoveConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, connectionID)
}

var validMessageTypes = map[string]bool{
	"ping":             true,
	"create_room":      true,
	"join_room":        true,
	"reconnect":        true,
	"leave_room":       true,
	"start_game":       true,
	"hit":              true,
	"stay":             true,
	"play_action_card": true,
	"next_round":       true,
	"get_state":        true,
}

// ValidateMessageType returns a clear error for typos and unknown types.
func ValidateMessageType(msgType string) error {
	if !validMessageTypes[msgType] {
		return fmt.Errorf("INVALID_MESSAGE_TYPE: Unknown message type '%s'", msgType)
	}
	return nil
}

func ValidatePlayerName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("NAME_INVALID: Player name cannot be empty")
	}
	if len(name) > 20 {
		return fmt.Errorf("NAME_INVALID: Player name too long (max 20 characters)")
	}
	return nil
}
