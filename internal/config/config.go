package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// AppConfig is the full process configuration. Values come from defaults,
// then an optional YAML file (CONFIG_FILE), then environment variables,
// later sources winning.
type AppConfig struct {
	SocketAddr    string `yaml:"socket_addr"`
	APIAddr       string `yaml:"api_addr"`
	AllowedOrigin string `yaml:"allowed_origin"`

	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	FinishedRoomTTL time.Duration `yaml:"finished_room_ttl"`
	RoomQueueSize   int           `yaml:"room_queue_size"`

	MessageDir string `yaml:"message_dir"`
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		SocketAddr:      ":3001",
		APIAddr:         ":3002",
		AllowedOrigin:   "http://localhost:3000",
		FinishedRoomTTL: 30 * time.Minute,
		RoomQueueSize:   64,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// PORT wins over SOCKET_PORT for platform compatibility
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.SocketAddr = ":" + v
	} else if v := strings.TrimSpace(os.Getenv("SOCKET_PORT")); v != "" {
		cfg.SocketAddr = ":" + v
	}
	if v := strings.TrimSpace(os.Getenv("API_PORT")); v != "" {
		cfg.APIAddr = ":" + v
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGIN")); v != "" {
		cfg.AllowedOrigin = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("FINISHED_ROOM_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid FINISHED_ROOM_TTL: %q", v)
		}
		cfg.FinishedRoomTTL = d
	}
	if v := strings.TrimSpace(os.Getenv("ROOM_QUEUE_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RoomQueueSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MSG_DIR")); v != "" {
		cfg.MessageDir = v
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return cfg, nil
}
