package server

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"flip7-server/internal/flip7"
)

func TestCreateRoom(t *testing.T) {
	assert := assert.New(t)
	gm := NewGameManager()

	room, session, err := gm.CreateRoom("Alice", 0)
	assert.NoError(err)
	assert.Len(room.Code, 4)
	assert.Equal(RoomWaiting, room.Status)
	assert.Equal(8, room.MaxPlayers, "zero maxPlayers falls back to the default")
	assert.Equal("player_0", session.PlayerID)
	assert.True(session.IsHost)
	assert.True(session.Connected)
	assert.NotEmpty(session.Token)

	_, _, err = gm.CreateRoom("  ", 4)
	assert.Error(err)
	assert.Equal("NAME_INVALID", ErrorCode(err.Error()))
}

func TestCreateRoomUniqueCodes(t *testing.T) {
	assert := assert.New(t)
	gm := NewGameManager()

	seen := make(map[string]bool)
	for range 50 {
		room, _, err := gm.CreateRoom("Alice", 4)
		assert.NoError(err)
		assert.False(seen[room.Code], "room codes must be unique while in use")
		seen[room.Code] = true
	}
}

func TestJoinRoom(t *testing.T) {
	assert := assert.New(t)
	gm := NewGameManager()

	room, _, err := gm.CreateRoom("Alice", 4)
	assert.NoError(err)

	// Codes are case-insensitive on the way in.
	joined, session, err := gm.JoinRoom(" "+strings.ToLower(room.Code)+" ", "Bob")
	assert.NoError(err)
	assert.Equal(room.Code, joined.Code)
	assert.Equal("player_1", session.PlayerID)
	assert.False(session.IsHost)

	_, _, err = gm.JoinRoom(room.Code, "bob")
	assert.Error(err)
	assert.Equal("NAME_TAKEN", ErrorCode(err.Error()))

	_, _, err = gm.JoinRoom("QQQQ", "Carol")
	assert.Error(err)
	assert.Equal("ROOM_NOT_FOUND", ErrorCode(err.Error()))

	_, _, err = gm.JoinRoom("toolongcode", "Carol")
	assert.Error(err)
	assert.Equal("INVALID_ROOM_CODE", ErrorCode(err.Error()))
}

func TestJoinRoomIgnoresMaxPlayers(t *testing.T) {
	assert := assert.New(t)
	gm := NewGameManager()

	room, _, err := gm.CreateRoom("Alice", 2)
	assert.NoError(err)

	// MaxPlayers is advisory: the room records it for clients but the deck
	// scales with the table, so nobody is turned away.
	_, _, err = gm.JoinRoom(room.Code, "Bob")
	assert.NoError(err)
	_, _, err = gm.JoinRoom(room.Code, "Carol")
	assert.NoError(err)
	assert.Len(room.Sessions, 3)
	assert.Equal(2, room.MaxPlayers)
}

func TestJoinRoomAfterStart(t *testing.T) {
	assert := assert.New(t)
	gm := NewGameManager()

	room, host, err := gm.CreateRoom("Alice", 4)
	assert.NoError(err)
	_, _, err = gm.JoinRoom(room.Code, "Bob")
	assert.NoError(err)

	_, err = gm.StartGame(room.Code, host.Token, nil)
	assert.NoError(err)

	_, _, err = gm.JoinRoom(room.Code, "Carol")
	assert.Error(err)
	assert.Equal("GAME_ALREADY_STARTED", ErrorCode(err.Error()))
}

func TestLeaveRoom(t *testing.T) {
	assert := assert.New(t)
	gm := NewGameManager()

	room, host, err := gm.CreateRoom("Alice", 4)
	assert.NoError(err)
	_, bob, err := gm.JoinRoom(room.Code, "Bob")
	assert.NoError(err)
	_, carol, err := gm.JoinRoom(room.Code, "Carol")
	assert.NoError(err)

	// Middle seat leaves: the remaining seats are renumbered.
	_, err = gm.LeaveRoom(room.Code, bob.Token)
	assert.NoError(err)
	assert.Len(room.Sessions, 2)
	assert.Equal("player_0", room.Sessions[0].PlayerID)
	assert.Equal("player_1", room.Sessions[1].PlayerID)
	assert.Equal("Carol", room.Sessions[1].Name)

	// Host leaves: Carol is promoted.
	_, err = gm.LeaveRoom(room.Code, host.Token)
	assert.NoError(err)
	assert.Len(room.Sessions, 1)
	assert.True(room.Sessions[0].IsHost)
	assert.Equal("player_0", room.Sessions[0].PlayerID)

	_, err = gm.LeaveRoom(room.Code, "bogus-token")
	assert.Error(err)
	assert.Equal("NOT_IN_ROOM", ErrorCode(err.Error()))

	// Last player out deletes the room and frees the code.
	_, err = gm.LeaveRoom(room.Code, carol.Token)
	assert.NoError(err)
	_, err = gm.GetRoom(room.Code)
	assert.Error(err)

	gm.mu.RLock()
	assert.False(gm.usedCodes[room.Code])
	gm.mu.RUnlock()
}

func TestStartGame(t *testing.T) {
	assert := assert.New(t)
	gm := NewGameManager()

	room, host, err := gm.CreateRoom("Alice", 4)
	assert.NoError(err)
	_, bob, err := gm.JoinRoom(room.Code, "Bob")
	assert.NoError(err)

	_, err = gm.StartGame(room.Code, bob.Token, nil)
	assert.Error(err)
	assert.Equal("NOT_HOST", ErrorCode(err.Error()))

	started, err := gm.StartGame(room.Code, host.Token, nil)
	assert.NoError(err)
	assert.Equal(RoomPlaying, started.Status)
	assert.NotNil(started.Game)
	assert.Equal(flip7.StatusPlaying, started.Game.GameStatus)
	assert.Len(started.Game.Players, 2)
	assert.Equal("Alice", started.Game.Players[0].Name)
	assert.Equal("Bob", started.Game.Players[1].Name)

	// Starting twice is rejected.
	_, err = gm.StartGame(room.Code, host.Token, nil)
	assert.Error(err)
	assert.Equal("INVALID_STATUS", ErrorCode(err.Error()))
}

func TestStartGameWithBots(t *testing.T) {
	assert := assert.New(t)
	gm := NewGameManager()

	room, host, err := gm.CreateRoom("Alice", 4)
	assert.NoError(err)

	// One human alone is not a game.
	_, err = gm.StartGame(room.Code, host.Token, nil)
	assert.Error(err)
	assert.Equal("NOT_ENOUGH_PLAYERS", ErrorCode(err.Error()))

	// One human plus two bots is.
	started, err := gm.StartGame(room.Code, host.Token, []AIPlayerSpec{
		{Difficulty: "conservative"},
		{Name: "Shark", Difficulty: "aggressive"},
	})
	assert.NoError(err)
	assert.Len(started.Game.Players, 3)

	// Humans occupy the low seats so engine IDs line up with sessions.
	assert.False(started.Game.Players[0].IsAI)
	assert.True(started.Game.Players[1].IsAI)
	assert.Equal("Bot 1", started.Game.Players[1].Name)
	assert.Equal(flip7.Conservative, started.Game.Players[1].AIDifficulty)
	assert.Equal("Shark", started.Game.Players[2].Name)
	assert.Equal(flip7.Aggressive, started.Game.Players[2].AIDifficulty)
}

func TestGetRoomByToken(t *testing.T) {
	assert := assert.New(t)
	gm := NewGameManager()

	room, host, err := gm.CreateRoom("Alice", 4)
	assert.NoError(err)

	found, session, err := gm.GetRoomByToken(host.Token)
	assert.NoError(err)
	assert.Equal(room.Code, found.Code)
	assert.Equal("Alice", session.Name)

	_, _, err = gm.GetRoomByToken("missing")
	assert.Error(err)
	assert.Equal("TOKEN_NOT_FOUND", ErrorCode(err.Error()))
}

// Token lookups run on the message path while joins mutate the roster; the
// scan has to hold the room lock. Pinned under the race detector.
func TestGetRoomByTokenDuringJoins(t *testing.T) {
	assert := assert.New(t)
	gm := NewGameManager()

	room, host, err := gm.CreateRoom("Alice", 4)
	assert.NoError(err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 50 {
			gm.JoinRoom(room.Code, fmt.Sprintf("Guest%d", i))
		}
	}()

	for range 200 {
		found, session, err := gm.GetRoomByToken(host.Token)
		assert.NoError(err)
		assert.Equal(room.Code, found.Code)
		assert.Equal("Alice", session.Name)
	}
	<-done
}

func TestDisconnectAndReconnect(t *testing.T) {
	assert := assert.New(t)
	gm := NewGameManager()

	_, host, err := gm.CreateRoom("Alice", 4)
	assert.NoError(err)

	_, session, err := gm.MarkPlayerDisconnected(host.Token)
	assert.NoError(err)
	assert.False(session.Connected)
	assert.False(session.DisconnectedAt.IsZero())

	_, session, err = gm.ReconnectPlayer(host.Token)
	assert.NoError(err)
	assert.True(session.Connected)
	assert.True(session.DisconnectedAt.IsZero())
}

func TestCleanupExpiredRooms(t *testing.T) {
	assert := assert.New(t)
	gm := NewGameManager()

	idle, _, err := gm.CreateRoom("Idle", 4)
	assert.NoError(err)
	abandoned, ghost, err := gm.CreateRoom("Ghost", 4)
	assert.NoError(err)
	fresh, _, err := gm.CreateRoom("Fresh", 4)
	assert.NoError(err)

	idle.Lock()
	idle.UpdatedAt = time.Now().Add(-time.Hour)
	idle.Unlock()

	_, _, err = gm.MarkPlayerDisconnected(ghost.Token)
	assert.NoError(err)
	abandoned.Lock()
	abandoned.Sessions[0].DisconnectedAt = time.Now().Add(-10 * time.Minute)
	abandoned.Unlock()

	deleted := gm.CleanupExpiredRooms(30*time.Minute, 2*time.Minute)
	assert.ElementsMatch([]string{idle.Code, abandoned.Code}, deleted)

	_, err = gm.GetRoom(fresh.Code)
	assert.NoError(err)
	_, err = gm.GetRoom(idle.Code)
	assert.Error(err)
	_, err = gm.GetRoom(abandoned.Code)
	assert.Error(err)
}

func TestParseAIDifficulty(t *testing.T) {
	assert := assert.New(t)

	d, err := parseAIDifficulty("Conservative")
	assert.NoError(err)
	assert.Equal(flip7.Conservative, d)

	d, err = parseAIDifficulty("")
	assert.NoError(err)
	assert.Equal(flip7.Moderate, d, "empty difficulty defaults to moderate")

	d, err = parseAIDifficulty(" AGGRESSIVE ")
	assert.NoError(err)
	assert.Equal(flip7.Aggressive, d)

	_, err = parseAIDifficulty("brutal")
	assert.Error(err)
	assert.Equal("INVALID_DIFFICULTY", ErrorCode(err.Error()))
}
