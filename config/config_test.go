package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STATE_PATH", "/tmp/docai-state")

	cfg := Load()
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "sqlite", cfg.DataStoreDriver)
	assert.Equal(t, filepath.Join("/tmp/docai-state", "docai.db"), cfg.DataStoreDSN)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "docai-events", cfg.EventsChannel)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, "docai:ingest", cfg.IngestStream)
	assert.Equal(t, 64, cfg.IngestBuffer)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATASTORE_DRIVER", "POSTGRES")
	t.Setenv("POSTGRES_DSN", "postgres://docai@db/docai")
	t.Setenv("STREAM_DELAY", "5ms")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_TLS_ENABLED", "yes")

	cfg := Load()
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "postgres", cfg.DataStoreDriver)
	assert.Equal(t, "postgres://docai@db/docai", cfg.DataStoreDSN)
	assert.Equal(t, 5*time.Millisecond, cfg.StreamDelay)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.RedisTLSEnabled)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SESSION_TTL", "forever")
	t.Setenv("REDIS_DB", "zero")
	t.Setenv("REDIS_TLS_ENABLED", "maybe")

	cfg := Load()
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.False(t, cfg.RedisTLSEnabled)
}
