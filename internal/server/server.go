package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"flip7-server/internal/config"
)

type Server struct {
	cfg *config.Config

	pool        *pgxpool.Pool
	redisClient *redis.Client

	connectionManager  *ConnectionManager
	gameManager        *GameManager
	sessionManager     *SessionManager
	persistenceManager *PersistenceManager
	rateLimiter        *RateLimiter

	pendingActionTimeout time.Duration
	pendingTimers        map[string]*time.Timer
	timerMu              sync.Mutex

	stopTasks chan struct{}
	stopOnce  sync.Once
}

// New wires the server from configuration. Postgres and Redis are both
// optional: without DATABASE_URL games live only in memory, without
// REDIS_ADDR sessions do not survive a restart.
func New(cfg *config.Config) (*Server, error) {
	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	persistenceManager := NewPersistenceManager(pool)
	if err := persistenceManager.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	sessionStore := NewSessionStore(redisClient, cfg.Redis.SessionTTL.Std())
	gameManager := NewGameManager()
	sessionManager := NewSessionManager(sessionStore)

	s := &Server{
		cfg:                  cfg,
		pool:                 pool,
		redisClient:          redisClient,
		connectionManager:    NewConnectionManager(),
		gameManager:          gameManager,
		sessionManager:       sessionManager,
		persistenceManager:   persistenceManager,
		rateLimiter:          NewRateLimiter(20, time.Second),
		pendingActionTimeout: cfg.Game.PendingActionTimeout.Std(),
		pendingTimers:        make(map[string]*time.Timer),
		stopTasks:            make(chan struct{}),
	}

	if err := s.loadPersistedState(ctx); err != nil {
		// Don't fail startup over restore problems, just begin empty.
		log.Printf("Warning: failed to load persisted state: %v", err)
	}

	go s.periodicSaveTask()
	go s.cleanupTask()

	return s, nil
}

// HTTPServer wraps the routes in an http.Server ready to listen.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Shutdown stops background tasks and closes the storage clients.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() { close(s.stopTasks) })

	s.timerMu.Lock()
	for _, t := range s.pendingTimers {
		t.Stop()
	}
	s.timerMu.Unlock()

	if s.pool != nil {
		s.pool.Close()
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Printf("Failed to close redis client: %v", err)
		}
	}
}

// loadPersistedState restores rooms and sessions after a restart. Players
// come back marked disconnected; their reconnect flips them live again.
func (s *Server) loadPersistedState(ctx context.Context) error {
	rooms, err := s.persistenceManager.LoadAllActiveRooms(ctx)
	if err != nil {
		return err
	}
	for _, room := range rooms {
		for _, sess := range room.Sessions {
			sess.Connected = false
			if sess.DisconnectedAt.IsZero() {
				sess.DisconnectedAt = time.Now()
			}
		}
		s.gameManager.restoreRoom(room)
		log.Printf("Restored room: %s (status: %s)", room.Code, room.Status)
	}

	// Sessions live in Redis first, Postgres as fallback.
	sessions, err := s.sessionManager.store.LoadAll(ctx)
	if err != nil {
		log.Printf("Warning: failed to load sessions from redis: %v", err)
	}
	if len(sessions) == 0 {
		sessions, err = s.persistenceManager.LoadAllSessions(ctx)
		if err != nil {
			return err
		}
	}
	for _, session := range sessions {
		s.sessionManager.sessions[session.Token] = session
	}

	log.Printf("Loaded %d rooms, %d sessions", len(rooms), len(sessions))
	return nil
}

// periodicSaveTask snapshots every room on an interval. The per-room lock
// is held around the marshal so a concurrent move can't tear the snapshot.
func (s *Server) periodicSaveTask() {
	interval := s.cfg.Game.SaveInterval.Std()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopTasks:
			return
		case <-ticker.C:
		}

		s.gameManager.mu.RLock()
		rooms := make([]*Room, 0, len(s.gameManager.rooms))
		for _, room := range s.gameManager.rooms {
			rooms = append(rooms, room)
		}
		s.gameManager.mu.RUnlock()

		saved := 0
		for _, room := range rooms {
			room.Lock()
			err := s.persistenceManager.SaveRoom(context.Background(), room)
			room.Unlock()
			if err != nil {
				log.Printf("Periodic save failed for room %s: %v", room.Code, err)
				continue
			}
			saved++
		}

		if s.persistenceManager.enabled() {
			log.Printf("Periodic save completed: %d rooms persisted", saved)
		}
	}
}

// cleanupTask expires abandoned rooms and trims old finished snapshots.
func (s *Server) cleanupTask() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopTasks:
			return
		case <-ticker.C:
		}

		deleted := s.gameManager.CleanupExpiredRooms(
			s.cfg.Game.RoomIdleTimeout.Std(),
			s.cfg.Game.DisconnectGrace.Std(),
		)
		for _, code := range deleted {
			s.clearPendingTimer(code)
			s.sessionManager.RemoveSessionsForRoom(code)
			if err := s.persistenceManager.DeleteRoom(context.Background(), code); err != nil {
				log.Printf("Failed to delete room snapshot %s: %v", code, err)
			}
			log.Printf("Cleaned up expired room %s", code)
		}

		removed, err := s.persistenceManager.CleanupOldRooms(context.Background(), 24*time.Hour)
		if err != nil {
			log.Printf("Cleanup task failed: %v", err)
			continue
		}
		if removed > 0 {
			log.Printf("Cleanup task: deleted %d old finished rooms", removed)
		}

		s.rateLimiter.Cleanup()
	}
}

// healthStatus reports process liveness plus the state of the optional
// storage backends.
func (s *Server) healthStatus(ctx context.Context) map[string]string {
	status := map[string]string{"status": "up"}

	if s.pool != nil {
		if err := s.pool.Ping(ctx); err != nil {
			status["database"] = "down"
			status["status"] = "degraded"
		} else {
			status["database"] = "up"
		}
	} else {
		status["database"] = "disabled"
	}

	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx).Err(); err != nil {
			status["redis"] = "down"
			status["status"] = "degraded"
		} else {
			status["redis"] = "up"
		}
	} else {
		status["redis"] = "disabled"
	}

	return status
}
