package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bookkeeping", cfg.AppName)
	assert.Equal(t, 10*time.Second, cfg.Posting.Timeout)
	assert.Equal(t, 5, cfg.Posting.MaxAttempts)
	assert.Equal(t, "open", cfg.Posting.MissingPeriodPolicy)
	assert.Equal(t, 5*time.Minute, cfg.VatCacheTTL)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, int64(1), cfg.NodeID)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("POSTING_TIMEOUT", "2s")
	t.Setenv("POSTING_MAX_ATTEMPTS", "0")
	t.Setenv("POSTING_MISSING_PERIOD_POLICY", " Closed ")
	t.Setenv("DATABASE_TYPE", "SQLITE")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RATELIMIT_ENABLED", "true")
	t.Setenv("RATELIMIT_POSTING_ORG_RATE", "2.5")
	t.Setenv("NODE_ID", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Posting.Timeout)
	assert.Equal(t, 1, cfg.Posting.MaxAttempts)
	assert.Equal(t, "closed", cfg.Posting.MissingPeriodPolicy)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.True(t, cfg.Redis.Enabled())
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 2.5, cfg.RateLimit.PostingOrgRate)
	assert.Equal(t, 40, cfg.RateLimit.PostingOrgBurst)
	assert.Equal(t, int64(7), cfg.NodeID)
}

func TestLoadFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bookkeeping.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\nposting:\n  max_attempts: 7\n"), 0o600))
	t.Setenv("BOOKKEEPING_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, 7, cfg.Posting.MaxAttempts)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestLoadFailsOnMissingConfigFile(t *testing.T) {
	t.Setenv("BOOKKEEPING_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)

	_, err = NewWatcher()
	assert.Error(t, err)
}

func TestLoadFailsOnMalformedConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookkeeping.yaml")
	require.NoError(t, os.WriteFile(path, []byte("posting:\n  missing_period_policy: closed\n\tbroken: [\n"), 0o600))
	t.Setenv("BOOKKEEPING_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestWatcherReadsNamedConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookkeeping.yaml")
	require.NoError(t, os.WriteFile(path, []byte("posting:\n  missing_period_policy: closed\n"), 0o600))
	t.Setenv("BOOKKEEPING_CONFIG", path)

	w, err := NewWatcher()
	require.NoError(t, err)
	assert.Equal(t, "closed", w.Config().Posting.MissingPeriodPolicy)
}
