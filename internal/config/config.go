package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            string `yaml:"port"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
		// AllowedOrigins limits websocket upgrades; empty accepts any origin.
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		// TTL applies to quizzes cached in Redis; empty falls back to quiz.ttl.
		TTL string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	Quiz struct {
		// TTL applies to the in-process quiz cache.
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Game struct {
		// RoomTTL bounds how long a room code stays claimed in Redis.
		RoomTTL    string `yaml:"room_ttl"`
		SendBuffer int    `yaml:"send_buffer"`
	} `yaml:"game"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Audit struct {
		// Sinks lists where audit records go: log, postgres, sqlite, rabbitmq.
		Sinks  []string `yaml:"sinks"`
		Buffer int      `yaml:"buffer"`
	} `yaml:"audit"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present:
// memory stores, log audit sink, port 8080.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.ShutdownTimeout = "5s"
	cfg.Quiz.TTL = "10m"
	cfg.Redis.TTL = "10m"
	cfg.Game.RoomTTL = "12h"
	cfg.Game.SendBuffer = 64
	cfg.Audit.Sinks = []string{"log"}
	cfg.Audit.Buffer = 256
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// Load reads YAML config from path over the defaults, then applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	for env, dst := range map[string]*string{
		"PORT":         &cfg.Server.Port,
		"JWT_SECRET":   &cfg.Auth.JWTSecret,
		"POSTGRES_URL": &cfg.Postgres.URL,
		"REDIS_ADDR":   &cfg.Redis.Addr,
		"RABBITMQ_URL": &cfg.RabbitMQ.URL,
		"SQLITE_PATH":  &cfg.SQLite.Path,
		"LOG_LEVEL":    &cfg.Log.Level,
	} {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*dst = v
		}
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
