package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	charmlog "github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Sweep    SweepConfig    `toml:"sweep"`
	Logging  LoggingConfig  `toml:"logging"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type ServerConfig struct {
	Bind        string `toml:"bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type SweepConfig struct {
	DueSoonWindowHours int `toml:"due_soon_window_hours"`
	UpcomingWindowDays int `toml:"upcoming_window_days"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Server: ServerConfig{
			Bind:        "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Sweep: SweepConfig{
			DueSoonWindowHours: 24,
			UpcomingWindowDays: 7,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server bind address is required")
	}
	if c.Sweep.DueSoonWindowHours <= 0 {
		return fmt.Errorf("sweep.due_soon_window_hours must be > 0, got %d", c.Sweep.DueSoonWindowHours)
	}
	if c.Sweep.UpcomingWindowDays <= 0 {
		return fmt.Errorf("sweep.upcoming_window_days must be > 0, got %d", c.Sweep.UpcomingWindowDays)
	}
	if level := strings.TrimSpace(c.Logging.Level); level != "" {
		if _, err := charmlog.ParseLevel(level); err != nil {
			return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
		}
	}
	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
