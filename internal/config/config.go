// Package config loads server configuration from an optional YAML file with
// environment variable overrides for deploy-time values. A .env file is
// honored in development via godotenv.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "45s" or
// "2m" instead of nanosecond integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

func (s ServerConfig) Addr() string { return s.Host + ":" + s.Port }

// DatabaseConfig points at the Postgres instance used for game snapshots.
// An empty URL disables persistence entirely.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig points at the Redis instance used for session storage. An
// empty Addr falls back to in-memory sessions.
type RedisConfig struct {
	Addr       string   `yaml:"addr"`
	Password   string   `yaml:"password"`
	DB         int      `yaml:"db"`
	SessionTTL Duration `yaml:"sessionTtl"`
}

type GameConfig struct {
	// MaxPlayers is recorded on each room for clients to display; the
	// server does not turn players away at the door.
	MaxPlayers int `yaml:"maxPlayers"`

	// PendingActionTimeout bounds how long a player may sit on an
	// unresolved Freeze or Flip Three before the server resolves it.
	PendingActionTimeout Duration `yaml:"pendingActionTimeout"`

	// DisconnectGrace is how long a dropped player can reconnect before
	// cleanup may remove them.
	DisconnectGrace Duration `yaml:"disconnectGrace"`

	// RoomIdleTimeout is how long an untouched room survives.
	RoomIdleTimeout Duration `yaml:"roomIdleTimeout"`

	// SaveInterval is how often dirty rooms are snapshotted to Postgres.
	SaveInterval Duration `yaml:"saveInterval"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Game     GameConfig     `yaml:"game"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
		},
		Redis: RedisConfig{
			SessionTTL: Duration(24 * time.Hour),
		},
		Game: GameConfig{
			MaxPlayers:           8,
			PendingActionTimeout: Duration(45 * time.Second),
			DisconnectGrace:      Duration(2 * time.Minute),
			RoomIdleTimeout:      Duration(30 * time.Minute),
			SaveInterval:         Duration(30 * time.Second),
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path if one is given, then environment overrides. Pass "" to run on
// defaults and environment alone.
func Load(path string) (*Config, error) {
	// Missing .env is fine; it only exists in development.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.applyEnv()

	if cfg.Server.Port == "" {
		return nil, fmt.Errorf("server port must not be empty")
	}
	if cfg.Game.MaxPlayers < 1 {
		return nil, fmt.Errorf("game.maxPlayers must be at least 1, got %d", cfg.Game.MaxPlayers)
	}
	return cfg, nil
}

// applyEnv lets deploy environments override the file without editing it.
// Secrets in particular should come in this way rather than via YAML.
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
}
