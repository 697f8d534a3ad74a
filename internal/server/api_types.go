package server

import "flip7-server/internal/flip7"

// ============================================================================
// ERROR RESPONSES
// ============================================================================
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ============================================================================
// CREATE ROOM (create_room)
// ============================================================================
type CreateRoomRequest struct {
	PlayerName string `json:"playerName"`
	MaxPlayers int    `json:"maxPlayers,omitempty"`
}

type CreateRoomResponse struct {
	RoomCode string `json:"roomCode"`
	Token    string `json:"token"`
	PlayerID string `json:"playerId"`
}

// ============================================================================
// JOIN ROOM (join_room)
// ============================================================================
type JoinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type JoinRoomResponse struct {
	Success  bool   `json:"success"`
	RoomCode string `json:"roomCode"`
	Token    string `json:"token"`
	PlayerID string `json:"playerId"`
	Message  string `json:"message,omitempty"`
}

// ============================================================================
// RECONNECT (reconnect)
// ============================================================================
type ReconnectRequest struct {
	Token string `json:"token"`
}

type ReconnectResponse struct {
	Success  bool   `json:"success"`
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	Message  string `json:"message,omitempty"`
}

// ============================================================================
// START GAME (start_game)
// ============================================================================
type AIPlayerSpec struct {
	Name       string `json:"name,omitempty"`
	Difficulty string `json:"difficulty"`
}

type StartGameRequest struct {
	AIPlayers []AIPlayerSpec `json:"aiPlayers,omitempty"`
}

// ============================================================================
// GAME ACTIONS (hit / stay have no payload)
// ============================================================================
type PlayActionCardRequest struct {
	CardID         int    `json:"cardId"`
	TargetPlayerID string `json:"targetPlayerId,omitempty"`
}

// ============================================================================
// ROOM STATE (room_update broadcast)
// ============================================================================
type RoomPlayer struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
	Connected bool   `json:"connected"`
	IsYou     bool   `json:"isYou"` // Personalized for each client
}

type RoomState struct {
	RoomCode    string       `json:"roomCode"`
	Status      string       `json:"status"`
	MaxPlayers  int          `json:"maxPlayers"`
	PlayerCount int          `json:"playerCount"`
	Players     []RoomPlayer `json:"players"`
}

// ============================================================================
// GAME STATE (game_state broadcast)
// ============================================================================
// All hands in Flip 7 are face up, so every client receives the same
// unfiltered state.
type GameStateMessage struct {
	RoomCode string      `json:"roomCode"`
	Status   string      `json:"status"`
	State    *flip7.Game `json:"state,omitempty"`
}

// ============================================================================
// NOTIFICATIONS
// ============================================================================
type PlayerStatusNotification struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

type RoundEndedNotification struct {
	Round       int                       `json:"round"`
	RoundScores map[string]int            `json:"roundScores"`
	TotalScores map[string]int            `json:"totalScores"`
	GameOver    bool                      `json:"gameOver"`
	Results     []flip7.PlayerRoundResult `json:"results"`
}

type GameEndedNotification struct {
	WinnerID    string         `json:"winnerId"`
	WinnerName  string         `json:"winnerName"`
	TotalScores map[string]int `json:"totalScores"`
	Rounds      int            `json:"rounds"`
}
