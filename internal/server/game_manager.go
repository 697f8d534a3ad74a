package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"flip7-server/internal/flip7"
)

type RoomStatus string

const (
	RoomWaiting RoomStatus = "waiting"
	RoomPlaying RoomStatus = "playing"
	RoomEnded   RoomStatus = "ended"
)

// RoomSession is one human seat in a room. AI players live only inside the
// game engine and never get a session.
type RoomSession struct {
	Token          string    `json:"token"`
	PlayerID       string    `json:"playerId"`
	Name           string    `json:"name"`
	IsHost         bool      `json:"isHost"`
	Connected      bool      `json:"connected"`
	JoinedAt       time.Time `json:"joinedAt"`
	DisconnectedAt time.Time `json:"disconnectedAt,omitempty"`
}

// Room couples the lobby roster with a running game. The room mutex
// serializes every call into the game engine: engine methods are not
// internally synchronized and rely on exactly this.
type Room struct {
	Code       string         `json:"code"`
	Status     RoomStatus     `json:"status"`
	MaxPlayers int            `json:"maxPlayers"`
	Sessions   []*RoomSession `json:"sessions"`
	Game       *flip7.Game    `json:"game,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`

	mu sync.Mutex
}

// Lock takes the room's game lock. Callers hold it across a whole operation
// plus whatever broadcast snapshot they take, so clients never observe a
// half-applied move.
func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

func (r *Room) findSessionByToken(token string) *RoomSession {
	for _, sess := range r.Sessions {
		if sess.Token == token {
			return sess
		}
	}
	return nil
}

func (r *Room) findSessionByPlayerID(playerID string) *RoomSession {
	for _, sess := range r.Sessions {
		if sess.PlayerID == playerID {
			return sess
		}
	}
	return nil
}

// GameManager owns every active room. Its own lock only guards the maps;
// per-room state is guarded by the room mutex.
type GameManager struct {
	rooms     map[string]*Room
	usedCodes map[string]bool
	mu        sync.RWMutex
}

func NewGameManager() *GameManager {
	return &GameManager{
		rooms:     make(map[string]*Room),
		usedCodes: make(map[string]bool),
	}
}

func (gm *GameManager) CreateRoom(playerName string, maxPlayers int) (*Room, *RoomSession, error) {
	if err := ValidatePlayerName(playerName); err != nil {
		return nil, nil, err
	}
	if maxPlayers <= 0 {
		maxPlayers = 8
	}

	gm.mu.Lock()
	roomCode, err := GenerateRoomCode(gm.usedCodes)
	if err != nil {
		gm.mu.Unlock()
		return nil, nil, err
	}
	gm.usedCodes[roomCode] = true
	gm.mu.Unlock()

	now := time.Now()
	session := &RoomSession{
		Token:     uuid.New().String(),
		PlayerID:  "player_0",
		Name:      strings.TrimSpace(playerName),
		IsHost:    true,
		Connected: true,
		JoinedAt:  now,
	}
	room := &Room{
		Code:       roomCode,
		Status:     RoomWaiting,
		MaxPlayers: maxPlayers,
		Sessions:   []*RoomSession{session},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	gm.mu.Lock()
	gm.rooms[roomCode] = room
	gm.mu.Unlock()

	return room, session, nil
}

// JoinRoom seats a player in a waiting room. MaxPlayers is advisory: the
// room records it for clients but nobody is turned away over it.
func (gm *GameManager) JoinRoom(roomCode, playerName string) (*Room, *RoomSession, error) {
	roomCode = NormalizeRoomCode(roomCode)
	if err := ValidateRoomCode(roomCode); err != nil {
		return nil, nil, err
	}
	if err := ValidatePlayerName(playerName); err != nil {
		return nil, nil, err
	}

	room, err := gm.GetRoom(roomCode)
	if err != nil {
		return nil, nil, err
	}

	room.Lock()
	defer room.Unlock()

	if room.Status != RoomWaiting {
		return nil, nil, errors.New("GAME_ALREADY_STARTED: Cannot join a room in progress")
	}

	name := strings.TrimSpace(playerName)
	for _, sess := range room.Sessions {
		if strings.EqualFold(sess.Name, name) {
			return nil, nil, errors.New("NAME_TAKEN: Player name already taken in this room")
		}
	}

	now := time.Now()
	session := &RoomSession{
		Token:     uuid.New().String(),
		PlayerID:  fmt.Sprintf("player_%d", len(room.Sessions)),
		Name:      name,
		Connected: true,
		JoinedAt:  now,
	}
	room.Sessions = append(room.Sessions, session)
	room.UpdatedAt = now

	return room, session, nil
}

// LeaveRoom removes a player from a waiting room. Once the game has started
// players disconnect instead; their seat stays for reconnection.
func (gm *GameManager) LeaveRoom(roomCode, token string) (*Room, error) {
	room, err := gm.GetRoom(roomCode)
	if err != nil {
		return nil, err
	}

	room.Lock()
	defer room.Unlock()

	if room.Status != RoomWaiting {
		return nil, errors.New("GAME_STARTED: Use disconnect for rooms in progress")
	}

	idx := -1
	for i, sess := range room.Sessions {
		if sess.Token == token {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, errors.New("NOT_IN_ROOM: Invalid token for this room")
	}

	wasHost := room.Sessions[idx].IsHost
	room.Sessions = append(room.Sessions[:idx], room.Sessions[idx+1:]...)
	room.UpdatedAt = time.Now()

	if len(room.Sessions) == 0 {
		gm.deleteRoom(room.Code)
		return room, nil
	}

	// Seat IDs track join order while the room is still forming.
	for i, sess := range room.Sessions {
		sess.PlayerID = fmt.Sprintf("player_%d", i)
	}
	if wasHost {
		gm.promoteNewHost(room)
	}

	return room, nil
}

// StartGame builds the engine game from the seated players plus any
// requested bots and deals the first round. Host only.
func (gm *GameManager) StartGame(roomCode, token string, aiPlayers []AIPlayerSpec) (*Room, error) {
	room, err := gm.GetRoom(roomCode)
	if err != nil {
		return nil, err
	}

	room.Lock()
	defer room.Unlock()

	session := room.findSessionByToken(token)
	if session == nil {
		return nil, errors.New("NOT_IN_ROOM: Invalid token for this room")
	}
	if !session.IsHost {
		return nil, errors.New("NOT_HOST: Only the host can start the game")
	}
	if room.Status != RoomWaiting {
		return nil, errors.New("INVALID_STATUS: Game already started")
	}
	if len(room.Sessions)+len(aiPlayers) < 2 {
		return nil, errors.New("NOT_ENOUGH_PLAYERS: Need at least 2 players to start")
	}

	names := make([]string, 0, len(room.Sessions)+len(aiPlayers))
	for _, sess := range room.Sessions {
		names = append(names, sess.Name)
	}
	difficulties := make([]flip7.AIDifficulty, 0, len(aiPlayers))
	for i, spec := range aiPlayers {
		difficulty, err := parseAIDifficulty(spec.Difficulty)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			name = fmt.Sprintf("Bot %d", i+1)
		}
		names = append(names, name)
		difficulties = append(difficulties, difficulty)
	}

	game, err := flip7.NewGame(names, difficulties)
	if err != nil {
		return nil, err
	}
	if err := game.StartRound(); err != nil {
		return nil, err
	}

	// Engine player IDs follow seat order, which matches session order
	// because humans were passed first.
	for i, sess := range room.Sessions {
		sess.PlayerID = fmt.Sprintf("player_%d", i)
	}

	room.Game = game
	room.Status = RoomPlaying
	room.UpdatedAt = time.Now()

	return room, nil
}

func (gm *GameManager) GetRoom(roomCode string) (*Room, error) {
	gm.mu.RLock()
	defer gm.mu.RUnlock()

	room, exists := gm.rooms[NormalizeRoomCode(roomCode)]
	if !exists {
		return nil, errors.New("ROOM_NOT_FOUND: Room not found")
	}
	return room, nil
}

func (gm *GameManager) GetRoomByToken(token string) (*Room, *RoomSession, error) {
	gm.mu.RLock()
	rooms := make([]*Room, 0, len(gm.rooms))
	for _, room := range gm.rooms {
		rooms = append(rooms, room)
	}
	gm.mu.RUnlock()

	// The per-room lock guards Sessions; joins and leaves mutate the slice
	// under it, so the scan must hold it too.
	for _, room := range rooms {
		room.Lock()
		sess := room.findSessionByToken(token)
		room.Unlock()
		if sess != nil {
			return room, sess, nil
		}
	}
	return nil, nil, errors.New("TOKEN_NOT_FOUND: Invalid session token")
}

func (gm *GameManager) ReconnectPlayer(token string) (*Room, *RoomSession, error) {
	room, session, err := gm.GetRoomByToken(token)
	if err != nil {
		return nil, nil, err
	}

	room.Lock()
	session.Connected = true
	session.DisconnectedAt = time.Time{}
	room.UpdatedAt = time.Now()
	room.Unlock()

	return room, session, nil
}

func (gm *GameManager) MarkPlayerDisconnected(token string) (*Room, *RoomSession, error) {
	room, session, err := gm.GetRoomByToken(token)
	if err != nil {
		return nil, nil, err
	}

	room.Lock()
	session.Connected = false
	session.DisconnectedAt = time.Now()
	room.UpdatedAt = time.Now()
	room.Unlock()

	return room, session, nil
}

// CleanupExpiredRooms drops rooms nobody has touched within idleTimeout and
// waiting rooms where every seat has been empty past the disconnect grace.
// Returns the codes of deleted rooms so callers can clear sessions and
// persisted snapshots.
func (gm *GameManager) CleanupExpiredRooms(idleTimeout, disconnectGrace time.Duration) []string {
	gm.mu.RLock()
	candidates := make([]*Room, 0, len(gm.rooms))
	for _, room := range gm.rooms {
		candidates = append(candidates, room)
	}
	gm.mu.RUnlock()

	now := time.Now()
	var deleted []string
	for _, room := range candidates {
		room.Lock()
		expired := now.Sub(room.UpdatedAt) > idleTimeout
		if !expired && room.Status == RoomWaiting {
			abandoned := true
			for _, sess := range room.Sessions {
				if sess.Connected || now.Sub(sess.DisconnectedAt) < disconnectGrace {
					abandoned = false
					break
				}
			}
			expired = abandoned
		}
		room.Unlock()

		if expired {
			gm.deleteRoom(room.Code)
			deleted = append(deleted, room.Code)
		}
	}
	return deleted
}

// deleteRoom removes the room and frees its code for reuse.
func (gm *GameManager) deleteRoom(roomCode string) {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	delete(gm.rooms, roomCode)
	delete(gm.usedCodes, roomCode)
}

// promoteNewHost hands the room to the longest-seated connected player, or
// failing that the longest-seated player. Caller holds the room lock.
func (gm *GameManager) promoteNewHost(room *Room) {
	for _, sess := range room.Sessions {
		sess.IsHost = false
	}
	for _, sess := range room.Sessions {
		if sess.Connected {
			sess.IsHost = true
			return
		}
	}
	if len(room.Sessions) > 0 {
		room.Sessions[0].IsHost = true
	}
}

// restoreRoom reinstates a persisted room, used on startup.
func (gm *GameManager) restoreRoom(room *Room) {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	gm.rooms[room.Code] = room
	gm.usedCodes[room.Code] = true
}

func parseAIDifficulty(raw string) (flip7.AIDifficulty, error) {
	switch flip7.AIDifficulty(strings.ToLower(strings.TrimSpace(raw))) {
	case flip7.Conservative:
		return flip7.Conservative, nil
	case flip7.Moderate, "":
		return flip7.Moderate, nil
	case flip7.Aggressive:
		return flip7.Aggressive, nil
	default:
		return "", fmt.Errorf("INVALID_DIFFICULTY: Unknown AI difficulty %q", raw)
	}
}
