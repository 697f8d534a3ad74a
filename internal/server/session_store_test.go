package server

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSessionStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewSessionStore(client, time.Hour), mr
}

func TestSessionStoreSaveAndGet(t *testing.T) {
	assert := assert.New(t)
	store, _ := setupSessionStore(t)
	ctx := context.Background()

	info := SessionInfo{Token: "tok-1", RoomCode: "ABCD", PlayerID: "player_0", Name: "Alice"}
	require.NoError(t, store.Save(ctx, info))

	got, err := store.Get(ctx, "tok-1")
	assert.NoError(err)
	assert.Equal(info, got)

	_, err = store.Get(ctx, "missing")
	assert.Error(err)
	assert.Equal("TOKEN_NOT_FOUND", ErrorCode(err.Error()))
}

func TestSessionStoreTTL(t *testing.T) {
	assert := assert.New(t)
	store, mr := setupSessionStore(t)
	ctx := context.Background()

	info := SessionInfo{Token: "tok-1", RoomCode: "ABCD", PlayerID: "player_0", Name: "Alice"}
	require.NoError(t, store.Save(ctx, info))

	assert.Equal(time.Hour, mr.TTL(sessionKeyPrefix+"tok-1"))

	// Sessions age out on their own.
	mr.FastForward(2 * time.Hour)
	_, err := store.Get(ctx, "tok-1")
	assert.Error(err)
}

func TestSessionStoreDelete(t *testing.T) {
	assert := assert.New(t)
	store, _ := setupSessionStore(t)
	ctx := context.Background()

	info := SessionInfo{Token: "tok-1", RoomCode: "ABCD", PlayerID: "player_0", Name: "Alice"}
	require.NoError(t, store.Save(ctx, info))
	require.NoError(t, store.Delete(ctx, "tok-1"))

	_, err := store.Get(ctx, "tok-1")
	assert.Error(err)
}

func TestSessionStoreLoadAll(t *testing.T) {
	assert := assert.New(t)
	store, mr := setupSessionStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, SessionInfo{Token: "tok-1", RoomCode: "ABCD", PlayerID: "player_0", Name: "Alice"}))
	require.NoError(t, store.Save(ctx, SessionInfo{Token: "tok-2", RoomCode: "WXYZ", PlayerID: "player_0", Name: "Bob"}))

	// Unrelated keys are ignored by the prefix scan.
	mr.Set("other:key", "value")

	sessions, err := store.LoadAll(ctx)
	assert.NoError(err)
	assert.Len(sessions, 2)

	names := []string{sessions[0].Name, sessions[1].Name}
	assert.ElementsMatch([]string{"Alice", "Bob"}, names)
}

func TestSessionStoreNilIsNoOp(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var store *SessionStore
	assert.NoError(store.Save(ctx, SessionInfo{Token: "tok-1"}))
	assert.NoError(store.Delete(ctx, "tok-1"))

	_, err := store.Get(ctx, "tok-1")
	assert.Error(err)

	sessions, err := store.LoadAll(ctx)
	assert.NoError(err)
	assert.Nil(sessions)
}

func TestSessionManagerFallsBackToStore(t *testing.T) {
	assert := assert.New(t)
	store, _ := setupSessionStore(t)
	ctx := context.Background()

	// Simulate a restart: the session lives only in Redis.
	info := SessionInfo{Token: "tok-1", RoomCode: "ABCD", PlayerID: "player_0", Name: "Alice"}
	require.NoError(t, store.Save(ctx, info))

	sm := NewSessionManager(store)
	got, err := sm.GetSession("tok-1")
	assert.NoError(err)
	assert.Equal(info, got)

	// The hit is rewarmed into the in-memory map.
	sm.mu.RLock()
	_, cached := sm.sessions["tok-1"]
	sm.mu.RUnlock()
	assert.True(cached)
}
