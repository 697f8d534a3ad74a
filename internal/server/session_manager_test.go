package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionManagerStoreAndGet(t *testing.T) {
	assert := assert.New(t)
	sm := NewSessionManager(NewSessionStore(nil, 0))

	info := SessionInfo{Token: "tok-1", RoomCode: "ABCD", PlayerID: "player_0", Name: "Alice"}
	sm.StoreSession(info)

	got, err := sm.GetSession("tok-1")
	assert.NoError(err)
	assert.Equal(info, got)

	_, err = sm.GetSession("missing")
	assert.Error(err)
	assert.Equal("TOKEN_NOT_FOUND", ErrorCode(err.Error()))
}

func TestSessionManagerRemove(t *testing.T) {
	assert := assert.New(t)
	sm := NewSessionManager(NewSessionStore(nil, 0))

	sm.StoreSession(SessionInfo{Token: "tok-1", RoomCode: "ABCD", PlayerID: "player_0", Name: "Alice"})
	sm.RemoveSession("tok-1")

	_, err := sm.GetSession("tok-1")
	assert.Error(err)
}

func TestRemoveSessionsForRoom(t *testing.T) {
	assert := assert.New(t)
	sm := NewSessionManager(NewSessionStore(nil, 0))

	sm.StoreSession(SessionInfo{Token: "tok-1", RoomCode: "ABCD", PlayerID: "player_0", Name: "Alice"})
	sm.StoreSession(SessionInfo{Token: "tok-2", RoomCode: "ABCD", PlayerID: "player_1", Name: "Bob"})
	sm.StoreSession(SessionInfo{Token: "tok-3", RoomCode: "WXYZ", PlayerID: "player_0", Name: "Carol"})

	sm.RemoveSessionsForRoom("ABCD")

	_, err := sm.GetSession("tok-1")
	assert.Error(err)
	_, err = sm.GetSession("tok-2")
	assert.Error(err)

	got, err := sm.GetSession("tok-3")
	assert.NoError(err)
	assert.Equal("Carol", got.Name)

	assert.Len(sm.GetAllSessions(), 1)
}

func TestShortToken(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("12345678", shortToken("1234567890abcdef"))
	assert.Equal("abc", shortToken("abc"))
	assert.Equal("", shortToken(""))
}
