package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PersistenceManager snapshots rooms and sessions to Postgres so the server
// can restart without dropping games. A nil manager (or nil pool) disables
// persistence; every method becomes a no-op that reports nothing stored.
type PersistenceManager struct {
	pool *pgxpool.Pool
}

func NewPersistenceManager(pool *pgxpool.Pool) *PersistenceManager {
	return &PersistenceManager{pool: pool}
}

func (pm *PersistenceManager) enabled() bool {
	return pm != nil && pm.pool != nil
}

// EnsureSchema creates the tables on startup. Rooms are stored as whole
// JSON documents: the state is read and written as a unit, nothing ever
// queries inside a snapshot.
func (pm *PersistenceManager) EnsureSchema(ctx context.Context) error {
	if !pm.enabled() {
		return nil
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			room_code  TEXT PRIMARY KEY,
			status     TEXT NOT NULL,
			room_data  JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token      TEXT PRIMARY KEY,
			room_code  TEXT NOT NULL,
			player_id  TEXT NOT NULL,
			name       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS sessions_room_code_idx ON sessions (room_code)`,
	}
	for _, stmt := range statements {
		if _, err := pm.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (pm *PersistenceManager) SaveRoom(ctx context.Context, room *Room) error {
	if !pm.enabled() {
		return nil
	}

	roomData, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to serialize room %s: %w", room.Code, err)
	}

	query := `
		INSERT INTO rooms (room_code, status, room_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_code) DO UPDATE
		SET status = EXCLUDED.status,
		    room_data = EXCLUDED.room_data,
		    updated_at = EXCLUDED.updated_at
	`
	_, err = pm.pool.Exec(ctx, query,
		room.Code, string(room.Status), roomData, room.CreatedAt, room.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save room %s: %w", room.Code, err)
	}
	return nil
}

func (pm *PersistenceManager) LoadRoom(ctx context.Context, roomCode string) (*Room, error) {
	if !pm.enabled() {
		return nil, errors.New("ROOM_NOT_FOUND: Persistence disabled")
	}

	var roomData []byte
	err := pm.pool.QueryRow(ctx,
		`SELECT room_data FROM rooms WHERE room_code = $1`, roomCode).Scan(&roomData)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ROOM_NOT_FOUND: No snapshot for room %s", roomCode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room %s: %w", roomCode, err)
	}

	var room Room
	if err := json.Unmarshal(roomData, &room); err != nil {
		return nil, fmt.Errorf("failed to deserialize room %s: %w", roomCode, err)
	}
	return &room, nil
}

// LoadAllActiveRooms returns every room that hasn't ended, used on startup
// to restore in-memory state.
func (pm *PersistenceManager) LoadAllActiveRooms(ctx context.Context) ([]*Room, error) {
	if !pm.enabled() {
		return nil, nil
	}

	rows, err := pm.pool.Query(ctx,
		`SELECT room_data FROM rooms WHERE status != $1 ORDER BY updated_at DESC`,
		string(RoomEnded))
	if err != nil {
		return nil, fmt.Errorf("failed to query active rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*Room
	for rows.Next() {
		var roomData []byte
		if err := rows.Scan(&roomData); err != nil {
			return nil, fmt.Errorf("failed to scan room row: %w", err)
		}

		var room Room
		if err := json.Unmarshal(roomData, &room); err != nil {
			// A corrupt snapshot shouldn't block the rest from loading.
			log.Printf("Warning: failed to deserialize room snapshot: %v", err)
			continue
		}
		rooms = append(rooms, &room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating room rows: %w", err)
	}
	return rooms, nil
}

func (pm *PersistenceManager) DeleteRoom(ctx context.Context, roomCode string) error {
	if !pm.enabled() {
		return nil
	}

	// Sessions for the room go with it.
	if _, err := pm.pool.Exec(ctx,
		`DELETE FROM sessions WHERE room_code = $1`, roomCode); err != nil {
		return fmt.Errorf("failed to delete sessions for room %s: %w", roomCode, err)
	}
	if _, err := pm.pool.Exec(ctx,
		`DELETE FROM rooms WHERE room_code = $1`, roomCode); err != nil {
		return fmt.Errorf("failed to delete room %s: %w", roomCode, err)
	}
	return nil
}

// CleanupOldRooms deletes ended rooms whose last update is older than the
// cutoff. Returns how many were removed.
func (pm *PersistenceManager) CleanupOldRooms(ctx context.Context, olderThan time.Duration) (int, error) {
	if !pm.enabled() {
		return 0, nil
	}

	cutoff := time.Now().Add(-olderThan)
	tag, err := pm.pool.Exec(ctx,
		`DELETE FROM rooms WHERE status = $1 AND updated_at < $2`,
		string(RoomEnded), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old rooms: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (pm *PersistenceManager) SaveSession(ctx context.Context, session SessionInfo) error {
	if !pm.enabled() {
		return nil
	}

	query := `
		INSERT INTO sessions (token, room_code, player_id, name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token) DO UPDATE
		SET room_code = EXCLUDED.room_code,
		    player_id = EXCLUDED.player_id,
		    name = EXCLUDED.name
	`
	_, err := pm.pool.Exec(ctx, query,
		session.Token, session.RoomCode, session.PlayerID, session.Name, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", shortToken(session.Token), err)
	}
	return nil
}

func (pm *PersistenceManager) LoadAllSessions(ctx context.Context) ([]SessionInfo, error) {
	if !pm.enabled() {
		return nil, nil
	}

	rows, err := pm.pool.Query(ctx,
		`SELECT token, room_code, player_id, name FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionInfo
	for rows.Next() {
		var session SessionInfo
		if err := rows.Scan(&session.Token, &session.RoomCode, &session.PlayerID, &session.Name); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return sessions, nil
}

func (pm *PersistenceManager) DeleteSession(ctx context.Context, token string) error {
	if !pm.enabled() {
		return nil
	}

	if _, err := pm.pool.Exec(ctx,
		`DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", shortToken(token), err)
	}
	return nil
}
