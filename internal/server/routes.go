package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"flip7-server/internal/flip7"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/websocket", s.websocketHandler)

	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := json.Marshal(s.healthStatus(r.Context()))
	if err != nil {
		http.Error(w, "Failed to marshal health check response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: restrict to the deployed client origin
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	log.Printf("New connection: %s", connectionID)
	s.connectionManager.AddConnection(connectionID, socket)

	defer func() {
		token := s.connectionManager.GetTokenByConnection(connectionID)

		s.connectionManager.RemoveConnection(connectionID)
		s.rateLimiter.RemoveConnection(connectionID)
		log.Printf("Connection closed: %s", connectionID)

		if token == "" {
			return
		}

		room, session, err := s.gameManager.MarkPlayerDisconnected(token)
		if err != nil {
			// Player may have left on purpose before the socket dropped.
			if err.Error() != "TOKEN_NOT_FOUND: Invalid session token" {
				log.Printf("Error marking player disconnected: %v", err)
			}
			return
		}

		log.Printf("Player %s (%s) disconnected from room %s",
			session.PlayerID, session.Name, room.Code)

		s.broadcastToRoom(room, "player_disconnected", PlayerStatusNotification{
			PlayerID:  session.PlayerID,
			Name:      session.Name,
			Connected: false,
		})
		s.broadcastRoomUpdate(room)
	}()

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			log.Printf("Connection %s read error: %v", connectionID, err)
			return
		}

		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", connectionID)
			continue
		}

		if !s.rateLimiter.Allow(connectionID) {
			s.sendError(socket, ctx, "RATE_LIMITED: Too many messages, slow down")
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid JSON from %s: %v", connectionID, err)
			s.sendError(socket, ctx, "Invalid JSON")
			continue
		}

		if err := ValidateMessageType(msg.Type); err != nil {
			s.sendError(socket, ctx, err.Error())
			continue
		}

		log.Printf("Message Type '%s' from %s", msg.Type, connectionID)

		switch msg.Type {
		case "ping":
			s.handlePing(socket, ctx, connectionID)
		case "create_room":
			s.handleCreateRoom(socket, ctx, connectionID, msg.Payload)
		case "join_room":
			s.handleJoinRoom(socket, ctx, connectionID, msg.Payload)
		case "reconnect":
			s.handleReconnect(socket, ctx, connectionID, msg.Payload)
		case "leave_room":
			s.handleLeaveRoom(socket, ctx, connectionID)
		case "start_game":
			s.handleStartGame(socket, ctx, connectionID, msg.Payload)
		case "hit":
			s.handleGameAction(socket, ctx, connectionID, "hit", nil)
		case "stay":
			s.handleGameAction(socket, ctx, connectionID, "stay", nil)
		case "play_action_card":
			s.handleGameAction(socket, ctx, connectionID, "play_action_card", msg.Payload)
		case "next_round":
			s.handleNextRound(socket, ctx, connectionID)
		case "get_state":
			s.handleGetState(socket, ctx, connectionID)
		}
	}
}

func (s *Server) handlePing(socket *websocket.Conn, ctx context.Context, connectionID string) {
	response := ServerMessage{
		Type:    "pong",
		Payload: struct{}{},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send pong to %s: %v", connectionID, err)
	}
}

func (s *Server) sendMessage(socket *websocket.Conn, ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	return socket.Write(ctx, websocket.MessageText, data)
}

func (s *Server) sendError(socket *websocket.Conn, ctx context.Context, msg string) {
	response := ServerMessage{
		Type: "error",
		Payload: ErrorMessage{
			Message: msg,
			Code:    ErrorCode(msg),
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send error message: %v", err)
	}
}

func (s *Server) handleCreateRoom(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req CreateRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid create_room payload")
		return
	}

	room, session, err := s.gameManager.CreateRoom(req.PlayerName, req.MaxPlayers)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.sessionManager.StoreSession(SessionInfo{
		Token:    session.Token,
		RoomCode: room.Code,
		PlayerID: session.PlayerID,
		Name:     session.Name,
	})
	s.connectionManager.BindToken(connectionID, socket, session.Token)

	response := ServerMessage{
		Type: "room_created",
		Payload: CreateRoomResponse{
			RoomCode: room.Code,
			Token:    session.Token,
			PlayerID: session.PlayerID,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send room_created: %v", err)
		return
	}

	s.broadcastRoomUpdate(room)
}

func (s *Server) handleJoinRoom(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req JoinRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid join_room payload")
		return
	}

	room, session, err := s.gameManager.JoinRoom(req.RoomCode, req.PlayerName)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.sessionManager.StoreSession(SessionInfo{
		Token:    session.Token,
		RoomCode: room.Code,
		PlayerID: session.PlayerID,
		Name:     session.Name,
	})
	s.connectionManager.BindToken(connectionID, socket, session.Token)

	response := ServerMessage{
		Type: "room_joined",
		Payload: JoinRoomResponse{
			Success:  true,
			RoomCode: room.Code,
			Token:    session.Token,
			PlayerID: session.PlayerID,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send room_joined: %v", err)
		return
	}

	s.broadcastRoomUpdate(room)
}

func (s *Server) handleReconnect(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req ReconnectRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid reconnect payload")
		return
	}

	info, err := s.sessionManager.GetSession(req.Token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	// A token can only drive one socket. The previous device gets told why
	// it lost the session.
	oldConnectionID := s.connectionManager.BindToken(connectionID, socket, req.Token)
	if oldConnectionID != "" {
		oldConn := s.connectionManager.GetConnection(oldConnectionID)
		if oldConn != nil {
			s.sendMessage(oldConn, context.Background(), ServerMessage{
				Type: "disconnected_elsewhere",
				Payload: struct {
					Message string `json:"message"`
				}{
					Message: "You connected on another device",
				},
			})
			oldConn.Close(websocket.StatusNormalClosure, "Connected from another device")
		}
		s.connectionManager.RemoveConnection(oldConnectionID)
	}

	room, roomSession, err := s.gameManager.ReconnectPlayer(req.Token)
	if err != nil {
		// The session outlived its room: the room expired or was cleaned
		// up while the player was away. Drop the stale token.
		s.sessionManager.RemoveSession(req.Token)
		s.sendError(socket, ctx, fmt.Sprintf("ROOM_NOT_FOUND: Room %s no longer exists", info.RoomCode))
		return
	}

	response := ServerMessage{
		Type: "reconnected",
		Payload: ReconnectResponse{
			Success:  true,
			RoomCode: room.Code,
			PlayerID: roomSession.PlayerID,
			Message:  "Successfully reconnected",
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send reconnected response: %v", err)
	}

	s.broadcastToRoom(room, "player_reconnected", PlayerStatusNotification{
		PlayerID:  roomSession.PlayerID,
		Name:      roomSession.Name,
		Connected: true,
	})

	// The returning player needs the full picture right away.
	if room.Status == RoomWaiting {
		s.sendMessage(socket, ctx, ServerMessage{
			Type:    "room_update",
			Payload: s.buildRoomState(room, req.Token),
		})
	} else {
		s.sendGameState(socket, ctx, room)
	}
	s.broadcastRoomUpdate(room)
}

func (s *Server) handleLeaveRoom(socket *websocket.Conn, ctx context.Context, connectionID string) {
	token := s.connectionManager.GetTokenByConnection(connectionID)
	if token == "" {
		s.sendError(socket, ctx, "NOT_IN_ROOM: No active room session")
		return
	}

	room, _, err := s.gameManager.GetRoomByToken(token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room, err = s.gameManager.LeaveRoom(room.Code, token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.sessionManager.RemoveSession(token)

	if len(room.Sessions) == 0 {
		// Last player out: the room is gone, drop the snapshot too.
		s.clearPendingTimer(room.Code)
		if err := s.persistenceManager.DeleteRoom(context.Background(), room.Code); err != nil {
			log.Printf("Failed to delete room snapshot %s: %v", room.Code, err)
		}
		return
	}

	s.broadcastRoomUpdate(room)
}

func (s *Server) handleStartGame(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req StartGameRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			s.sendError(socket, ctx, "Invalid start_game payload")
			return
		}
	}

	token := s.connectionManager.GetTokenByConnection(connectionID)
	if token == "" {
		s.sendError(socket, ctx, "NOT_IN_ROOM: No active room session")
		return
	}

	room, _, err := s.gameManager.GetRoomByToken(token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room, err = s.gameManager.StartGame(room.Code, token, req.AIPlayers)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.broadcastToRoom(room, "game_started", struct {
		Message string `json:"message"`
	}{
		Message: "Game is starting! Cards are on the table.",
	})
	s.broadcastGameState(room)
	s.driveGame(room)
}

// handleGameAction covers hit, stay and play_action_card: same session
// lookup, same turn checks, same broadcast-then-drive tail.
func (s *Server) handleGameAction(socket *websocket.Conn, ctx context.Context, connectionID, action string, payload json.RawMessage) {
	token := s.connectionManager.GetTokenByConnection(connectionID)
	if token == "" {
		s.sendError(socket, ctx, "NOT_IN_ROOM: No active room session")
		return
	}

	room, session, err := s.gameManager.GetRoomByToken(token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room.Lock()
	if room.Status != RoomPlaying || room.Game == nil {
		room.Unlock()
		s.sendError(socket, ctx, "GAME_NOT_STARTED: Game hasn't started yet")
		return
	}
	game := room.Game

	switch action {
	case "hit", "stay":
		// Turn order lives here, not in the engine.
		if game.GameStatus == flip7.StatusPlaying &&
			game.Players[game.CurrentPlayerIndex].ID != session.PlayerID {
			room.Unlock()
			s.sendError(socket, ctx, "NOT_YOUR_TURN: Wait for your turn")
			return
		}
		if action == "hit" {
			err = game.Hit(session.PlayerID)
		} else {
			err = game.Stay(session.PlayerID)
		}

	case "play_action_card":
		var req PlayActionCardRequest
		if jsonErr := json.Unmarshal(payload, &req); jsonErr != nil {
			room.Unlock()
			s.sendError(socket, ctx, "Invalid play_action_card payload")
			return
		}
		// Resolving your own pending card is always allowed, even out of
		// turn; a voluntary play has to wait for your turn.
		pending := game.PendingActionCard
		if (pending == nil || pending.PlayerID != session.PlayerID) &&
			game.GameStatus == flip7.StatusPlaying &&
			game.Players[game.CurrentPlayerIndex].ID != session.PlayerID {
			room.Unlock()
			s.sendError(socket, ctx, "NOT_YOUR_TURN: Wait for your turn")
			return
		}
		err = game.PlayActionCard(session.PlayerID, req.CardID, req.TargetPlayerID)
	}

	if err != nil {
		room.Unlock()
		s.sendError(socket, ctx, err.Error())
		return
	}
	room.UpdatedAt = time.Now()
	room.Unlock()

	s.broadcastGameState(room)
	s.driveGame(room)
}

func (s *Server) handleNextRound(socket *websocket.Conn, ctx context.Context, connectionID string) {
	token := s.connectionManager.GetTokenByConnection(connectionID)
	if token == "" {
		s.sendError(socket, ctx, "NOT_IN_ROOM: No active room session")
		return
	}

	room, _, err := s.gameManager.GetRoomByToken(token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room.Lock()
	if room.Status != RoomPlaying || room.Game == nil {
		room.Unlock()
		s.sendError(socket, ctx, "GAME_NOT_STARTED: Game hasn't started yet")
		return
	}
	if room.Game.GameStatus != flip7.StatusRoundEnd {
		room.Unlock()
		s.sendError(socket, ctx, "ROUND_NOT_OVER: The round is still in progress")
		return
	}
	err = room.Game.StartNextRound()
	if err == nil {
		room.UpdatedAt = time.Now()
	}
	room.Unlock()

	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.broadcastGameState(room)
	s.driveGame(room)
}

func (s *Server) handleGetState(socket *websocket.Conn, ctx context.Context, connectionID string) {
	token := s.connectionManager.GetTokenByConnection(connectionID)
	if token == "" {
		s.sendError(socket, ctx, "NOT_IN_ROOM: No active room session")
		return
	}

	room, _, err := s.gameManager.GetRoomByToken(token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	if room.Status == RoomWaiting {
		s.sendMessage(socket, ctx, ServerMessage{
			Type:    "room_update",
			Payload: s.buildRoomState(room, token),
		})
		return
	}
	s.sendGameState(socket, ctx, room)
}

// driveGame advances the game while bots are due to act, then settles
// whatever state the table landed in: arming the pending-action timer,
// announcing round end, or closing out the game.
func (s *Server) driveGame(room *Room) {
	// Generous bound; a single AI turn can't take more actions than this.
	for range 500 {
		room.Lock()
		if room.Status != RoomPlaying || room.Game == nil || room.Game.GameStatus != flip7.StatusPlaying {
			room.Unlock()
			break
		}
		game := room.Game

		// A pending action card preempts the regular turn.
		actorID := game.Players[game.CurrentPlayerIndex].ID
		if game.PendingActionCard != nil {
			actorID = game.PendingActionCard.PlayerID
		}
		actor := findGamePlayer(game, actorID)
		if actor == nil || !actor.IsAI {
			room.Unlock()
			break
		}

		decision, err := game.MakeAIDecision(actor.ID)
		if err == nil {
			switch decision.Action {
			case "hit":
				err = game.Hit(actor.ID)
			case "stay":
				err = game.Stay(actor.ID)
			case "playActionCard":
				err = game.PlayActionCard(actor.ID, decision.CardID, decision.TargetPlayerID)
			}
		}
		room.UpdatedAt = time.Now()
		room.Unlock()

		if err != nil {
			log.Printf("AI turn failed in room %s: %v", room.Code, err)
			break
		}
		s.broadcastGameState(room)
	}

	s.settleGameState(room)
}

// settleGameState inspects the game after a burst of actions and emits the
// lifecycle notifications.
func (s *Server) settleGameState(room *Room) {
	room.Lock()
	game := room.Game
	if game == nil {
		room.Unlock()
		return
	}

	switch game.GameStatus {
	case flip7.StatusPlaying:
		pending := game.PendingActionCard
		room.Unlock()
		if pending != nil {
			s.armPendingActionTimer(room, pending.CardID)
		} else {
			s.clearPendingTimer(room.Code)
		}
		return

	case flip7.StatusRoundEnd:
		note := buildRoundEndedNotification(game, false)
		room.Unlock()
		s.clearPendingTimer(room.Code)
		s.broadcastToRoom(room, "round_ended", note)
		return

	case flip7.StatusGameEnd:
		room.Status = RoomEnded
		room.UpdatedAt = time.Now()
		winner := gameWinner(game)
		roundNote := buildRoundEndedNotification(game, true)
		note := GameEndedNotification{
			TotalScores: totalScores(game),
			Rounds:      game.Round,
		}
		if winner != nil {
			note.WinnerID = winner.ID
			note.WinnerName = winner.Name
		}
		if err := s.persistenceManager.SaveRoom(context.Background(), room); err != nil {
			log.Printf("Failed to save finished room %s: %v", room.Code, err)
		}
		room.Unlock()

		s.clearPendingTimer(room.Code)
		s.broadcastToRoom(room, "round_ended", roundNote)
		s.broadcastToRoom(room, "game_ended", note)
		log.Printf("Game in room %s completed. Winner: %s", room.Code, note.WinnerName)
		return
	}
	room.Unlock()
}

// buildRoundEndedNotification copies the round scoring out of the game so the
// payload stays valid after the room lock is released. Caller holds the lock.
func buildRoundEndedNotification(game *flip7.Game, gameOver bool) RoundEndedNotification {
	roundScores := make(map[string]int, len(game.RoundScores))
	for id, score := range game.RoundScores {
		roundScores[id] = score
	}
	note := RoundEndedNotification{
		Round:       game.Round,
		RoundScores: roundScores,
		TotalScores: totalScores(game),
		GameOver:    gameOver,
	}
	if len(game.RoundHistory) > 0 {
		note.Results = game.RoundHistory[len(game.RoundHistory)-1].Results
	}
	return note
}

// armPendingActionTimer schedules a forced resolution of the given pending
// card. Re-arming for the same room replaces the previous timer.
func (s *Server) armPendingActionTimer(room *Room, cardID int) {
	timeout := s.pendingActionTimeout
	if timeout <= 0 {
		return
	}

	s.timerMu.Lock()
	if t, exists := s.pendingTimers[room.Code]; exists {
		t.Stop()
	}
	s.pendingTimers[room.Code] = time.AfterFunc(timeout, func() {
		s.resolvePendingTimeout(room, cardID)
	})
	s.timerMu.Unlock()
}

// clearPendingTimer stops and removes the room's pending-action timer, if any.
func (s *Server) clearPendingTimer(roomCode string) {
	s.timerMu.Lock()
	if t, exists := s.pendingTimers[roomCode]; exists {
		t.Stop()
		delete(s.pendingTimers, roomCode)
	}
	s.timerMu.Unlock()
}

func (s *Server) resolvePendingTimeout(room *Room, cardID int) {
	room.Lock()
	game := room.Game
	// Only fire if the very same card is still stuck.
	if room.Status != RoomPlaying || game == nil ||
		game.PendingActionCard == nil || game.PendingActionCard.CardID != cardID {
		room.Unlock()
		return
	}
	err := game.AutoResolvePendingAction()
	room.UpdatedAt = time.Now()
	room.Unlock()

	// This firing owned the room's timer slot; a re-armed timer would have
	// failed the card check above.
	s.clearPendingTimer(room.Code)

	if err != nil {
		log.Printf("Failed to auto-resolve pending action in room %s: %v", room.Code, err)
		return
	}

	log.Printf("Pending action card timed out in room %s, auto-resolved", room.Code)
	s.broadcastGameState(room)
	s.driveGame(room)
}

// broadcastToRoom sends the same message to every connected player.
func (s *Server) broadcastToRoom(room *Room, messageType string, payload interface{}) {
	room.Lock()
	tokens := make([]string, 0, len(room.Sessions))
	for _, sess := range room.Sessions {
		if sess.Connected {
			tokens = append(tokens, sess.Token)
		}
	}
	room.Unlock()

	msg := ServerMessage{Type: messageType, Payload: payload}
	for _, token := range tokens {
		conn := s.connectionManager.GetConnectionByToken(token)
		if conn == nil {
			continue
		}
		if err := s.sendMessage(conn, context.Background(), msg); err != nil {
			log.Printf("Failed to broadcast to room %s: %v", room.Code, err)
		}
	}
}

// broadcastRoomUpdate sends each player their personalized roster view.
func (s *Server) broadcastRoomUpdate(room *Room) {
	room.Lock()
	sessions := make([]*RoomSession, len(room.Sessions))
	copy(sessions, room.Sessions)
	room.Unlock()

	for _, sess := range sessions {
		if !sess.Connected {
			continue
		}
		conn := s.connectionManager.GetConnectionByToken(sess.Token)
		if conn == nil {
			continue
		}
		msg := ServerMessage{
			Type:    "room_update",
			Payload: s.buildRoomState(room, sess.Token),
		}
		if err := s.sendMessage(conn, context.Background(), msg); err != nil {
			log.Printf("Failed to broadcast room update to %s: %v", sess.Name, err)
		}
	}
}

// marshalGameState snapshots the game to wire bytes under the room lock so
// no reader can observe the engine mid-mutation.
func (s *Server) marshalGameState(room *Room) ([]byte, error) {
	room.Lock()
	defer room.Unlock()

	if room.Game == nil {
		return nil, fmt.Errorf("game not started in room %s", room.Code)
	}
	state := GameStateMessage{
		RoomCode: room.Code,
		Status:   string(room.Status),
		State:    room.Game,
	}
	return json.Marshal(ServerMessage{Type: "game_state", Payload: state})
}

// sendGameState delivers a consistent game snapshot to a single client.
func (s *Server) sendGameState(socket *websocket.Conn, ctx context.Context, room *Room) {
	data, err := s.marshalGameState(room)
	if err != nil {
		log.Printf("Failed to marshal game state for room %s: %v", room.Code, err)
		return
	}
	if err := socket.Write(ctx, websocket.MessageText, data); err != nil {
		log.Printf("Failed to send game state in room %s: %v", room.Code, err)
	}
}

// broadcastGameState sends the full game state to everyone. The snapshot is
// marshaled once so every client sees the same bytes.
func (s *Server) broadcastGameState(room *Room) {
	data, err := s.marshalGameState(room)
	if err != nil {
		log.Printf("Failed to marshal game state for room %s: %v", room.Code, err)
		return
	}

	room.Lock()
	tokens := make([]string, 0, len(room.Sessions))
	for _, sess := range room.Sessions {
		if sess.Connected {
			tokens = append(tokens, sess.Token)
		}
	}
	room.Unlock()

	for _, token := range tokens {
		conn := s.connectionManager.GetConnectionByToken(token)
		if conn == nil {
			continue
		}
		if err := conn.Write(context.Background(), websocket.MessageText, data); err != nil {
			log.Printf("Failed to broadcast game state in room %s: %v", room.Code, err)
		}
	}
}

func (s *Server) buildRoomState(room *Room, forToken string) RoomState {
	room.Lock()
	defer room.Unlock()

	players := make([]RoomPlayer, 0, len(room.Sessions))
	for _, sess := range room.Sessions {
		players = append(players, RoomPlayer{
			PlayerID:  sess.PlayerID,
			Name:      sess.Name,
			IsHost:    sess.IsHost,
			Connected: sess.Connected,
			IsYou:     sess.Token == forToken,
		})
	}

	return RoomState{
		RoomCode:    room.Code,
		Status:      string(room.Status),
		MaxPlayers:  room.MaxPlayers,
		PlayerCount: len(players),
		Players:     players,
	}
}

func findGamePlayer(game *flip7.Game, playerID string) *flip7.Player {
	for _, p := range game.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func totalScores(game *flip7.Game) map[string]int {
	scores := make(map[string]int, len(game.Players))
	for _, p := range game.Players {
		scores[p.ID] = p.Score
	}
	return scores
}

func gameWinner(game *flip7.Game) *flip7.Player {
	var winner *flip7.Player
	for _, p := range game.Players {
		if winner == nil || p.Score > winner.Score {
			winner = p
		}
	}
	return winner
}
