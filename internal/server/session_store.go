package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "flip7:session:"

// SessionStore keeps sessions in Redis with a TTL so stale tokens age out
// on their own. A nil store is valid and turns every call into a no-op,
// which lets the server run without Redis in development and tests.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Save(ctx context.Context, info SessionInfo) error {
	if s == nil || s.client == nil {
		return nil
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+info.Token, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (SessionInfo, error) {
	if s == nil || s.client == nil {
		return SessionInfo{}, errors.New("TOKEN_NOT_FOUND: Invalid session token")
	}

	data, err := s.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return SessionInfo{}, errors.New("TOKEN_NOT_FOUND: Invalid session token")
	}
	if err != nil {
		return SessionInfo{}, fmt.Errorf("load session: %w", err)
	}

	var info SessionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return SessionInfo{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return info, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// LoadAll returns every stored session, used on startup to rewarm the
// in-memory map.
func (s *SessionStore) LoadAll(ctx context.Context) ([]SessionInfo, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}

	var sessions []SessionInfo
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var info SessionInfo
		if err := json.Unmarshal(data, &info); err != nil {
			continue
		}
		sessions = append(sessions, info)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return sessions, nil
}
