// Package config loads the settings of the questdemo command.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend selects the mailbox implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendSQLite Backend = "sqlite"
)

type Config struct {
	Backend       Backend       `yaml:"backend"`
	SQLiteDSN     string        `yaml:"sqlite_dsn"`
	Workers       int           `yaml:"workers"`
	MaxDeliveries int           `yaml:"max_deliveries"`
	Lease         time.Duration `yaml:"lease"`
	LogLevel      string        `yaml:"log_level"`
	Orders        []Order       `yaml:"orders"`
}

// Order is one demo message. Raw is posted verbatim so malformed input can be
// exercised.
type Order struct {
	Raw string `yaml:"raw"`
}

// DefaultSQLiteDSN opens a private in-memory database, so every demo run
// starts from an empty mailbox. Lock transactions begin IMMEDIATE to take the
// write lock before reading the next message.
const DefaultSQLiteDSN = "file::memory:?_pragma=busy_timeout(5000)&_txlock=immediate"

// Default returns the built-in demo configuration.
func Default() Config {
	return Config{
		Backend:       BackendMemory,
		SQLiteDSN:     DefaultSQLiteDSN,
		Workers:       2,
		MaxDeliveries: 3,
		Lease:         5 * time.Second,
		LogLevel:      "info",
		Orders: []Order{
			{Raw: "A-100:2:1250"},
			{Raw: "B-200:1:999"},
			{Raw: "C-300:0:500"},
			{Raw: "not-an-order"},
			{Raw: "D-400:3:200"},
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

// applyEnv overrides cfg from QUEST_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("QUEST_BACKEND"); v != "" {
		cfg.Backend = Backend(strings.ToLower(v))
	}
	if v := os.Getenv("QUEST_SQLITE_DSN"); v != "" {
		cfg.SQLiteDSN = v
	}
	if n := getEnvInt("QUEST_WORKERS"); n > 0 {
		cfg.Workers = n
	}
	if n := getEnvInt("QUEST_MAX_DELIVERIES"); n > 0 {
		cfg.MaxDeliveries = n
	}
	if v := os.Getenv("QUEST_LEASE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Lease = d
		}
	}
	if v := os.Getenv("QUEST_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func getEnvInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return num
}

// Validate reports settings the demo cannot run with.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLiteDSN == "" {
			return fmt.Errorf("config: sqlite backend requires sqlite_dsn")
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Workers)
	}
	if c.MaxDeliveries <= 0 {
		return fmt.Errorf("config: max_deliveries must be positive, got %d", c.MaxDeliveries)
	}
	if c.Lease <= 0 {
		return fmt.Errorf("config: lease must be positive, got %s", c.Lease)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to Info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
