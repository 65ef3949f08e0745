package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefault_SQLiteStartsEmpty(t *testing.T) {
	dsn := Default().SQLiteDSN
	require.True(t, strings.HasPrefix(dsn, "file::memory:"), "default database must not persist between runs: %s", dsn)
	require.Contains(t, dsn, "_txlock=immediate")
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: sqlite
sqlite_dsn: "file::memory:"
workers: 4
lease: 2s
orders:
  - raw: "X-1:1:100"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendSQLite, cfg.Backend)
	require.Equal(t, "file::memory:", cfg.SQLiteDSN)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, 2*time.Second, cfg.Lease)
	require.Equal(t, 3, cfg.MaxDeliveries, "unset fields keep defaults")
	require.Equal(t, []Order{{Raw: "X-1:1:100"}}, cfg.Orders)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("QUEST_BACKEND", "MEMORY")
	t.Setenv("QUEST_WORKERS", "8")
	t.Setenv("QUEST_MAX_DELIVERIES", "not-a-number")
	t.Setenv("QUEST_LEASE", "750ms")
	t.Setenv("QUEST_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, BackendMemory, cfg.Backend)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, 3, cfg.MaxDeliveries)
	require.Equal(t, 750*time.Millisecond, cfg.Lease)
	require.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Backend = "kafka" }},
		{"sqlite without dsn", func(c *Config) { c.Backend = BackendSQLite; c.SQLiteDSN = "" }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"no deliveries", func(c *Config) { c.MaxDeliveries = -1 }},
		{"no lease", func(c *Config) { c.Lease = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestSlogLevel_FallsBackToInfo(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "chatty"
	require.Equal(t, slog.LevelInfo, cfg.SlogLevel())

	cfg.LogLevel = "warn"
	require.Equal(t, slog.LevelWarn, cfg.SlogLevel())
}
