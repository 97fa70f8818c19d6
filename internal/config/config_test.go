package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "memory", cfg.Cache.Driver)
	require.Equal(t, 30*time.Second, cfg.Cache.TTL)
	require.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	require.True(t, cfg.Submission.AutoApprove)
	require.False(t, cfg.Submission.GatesVoting)
	require.NotEmpty(t, cfg.Auth.JWTSecret)
	require.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:showcase.db")
	t.Setenv("CACHE_TTL", "5s")
	t.Setenv("PROJECT_AUTO_APPROVE", "false")
	t.Setenv("DEADLINE_GATES_VOTING", "true")
	t.Setenv("SUBMISSION_DEADLINE", "2026-03-01T12:00:00+08:00")
	t.Setenv("CONSISTENCY_INTERVAL", "0")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "file:showcase.db", cfg.Database.URL)
	require.Equal(t, 5*time.Second, cfg.Cache.TTL)
	require.False(t, cfg.Submission.AutoApprove)
	require.True(t, cfg.Submission.GatesVoting)
	require.Equal(t, "2026-03-01T12:00:00+08:00", cfg.Submission.Deadline)
	require.Equal(t, time.Duration(0), cfg.Consistency.Interval)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "showcase.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\ncache:\n  driver: redis\nredis:\n  addr: cache:6379\n"), 0o600))
	t.Setenv("PORT", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "redis", cfg.Cache.Driver)
	require.Equal(t, "cache:6379", cfg.Redis.Addr)
}

func TestLoadValidation(t *testing.T) {
	t.Run("production needs secrets", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SECRET", "")
		_, err := Load("")
		require.Error(t, err)
	})
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "oracle")
		_, err := Load("")
		require.Error(t, err)
	})
	t.Run("bad deadline", func(t *testing.T) {
		t.Setenv("SUBMISSION_DEADLINE", "tomorrow")
		_, err := Load("")
		require.Error(t, err)
	})
}
