// Package config provides devserver configuration management.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all devserver configuration.
type Config struct {
	// Server configuration
	ServerPort string
	Version    string

	// Logging
	LogLevel  string
	LogFormat string

	// Persistence configuration
	StatePath       string
	DataStoreDriver string
	DataStoreDSN    string
	MaxUploadBytes  int64

	// Auth configuration
	AdminUsername string
	AdminPassword string
	SessionTTL    time.Duration

	// Chat streaming
	StreamDelay time.Duration

	// Redis / events configuration
	RedisAddr        string
	RedisUsername    string
	RedisPassword    string
	RedisDB          int
	RedisTLSEnabled  bool
	RedisTLSInsecure bool
	EventsChannel    string

	// Ingest queue (Redis stream when Redis is configured)
	IngestStream string
	IngestGroup  string
	IngestBuffer int
	IngestInline bool
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	statePath := getEnv("STATE_PATH", "./state")
	dataStoreDriver := strings.ToLower(getEnv("DATASTORE_DRIVER", "sqlite"))
	dataStoreDSN := getEnv("DATASTORE_DSN", "")
	if dataStoreDriver == "postgres" && dataStoreDSN == "" {
		dataStoreDSN = os.Getenv("POSTGRES_DSN")
	}
	if dataStoreDSN == "" {
		dataStoreDSN = filepath.Join(statePath, "docai.db")
	}
	return &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		Version:          getEnv("DOCAI_VERSION", "dev"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		StatePath:        statePath,
		DataStoreDriver:  dataStoreDriver,
		DataStoreDSN:     dataStoreDSN,
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", 32<<20)),
		AdminUsername:    getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:    getEnv("ADMIN_PASSWORD", "admin"),
		SessionTTL:       getEnvDuration("SESSION_TTL", 24*time.Hour),
		StreamDelay:      getEnvDuration("STREAM_DELAY", 25*time.Millisecond),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisUsername:    getEnv("REDIS_USERNAME", ""),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisTLSEnabled:  getEnvBool("REDIS_TLS_ENABLED", false),
		RedisTLSInsecure: getEnvBool("REDIS_TLS_INSECURE_SKIP_VERIFY", false),
		EventsChannel:    getEnv("EVENTS_CHANNEL", "docai-events"),
		IngestStream:     getEnv("INGEST_STREAM", "docai:ingest"),
		IngestGroup:      getEnv("INGEST_GROUP", "docai-ingest"),
		IngestBuffer:     getEnvInt("INGEST_BUFFER", 64),
		IngestInline:     getEnvBool("INGEST_INLINE", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s: %s, using default %s", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Invalid int for %s: %s, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "y":
			return true
		case "0", "false", "no", "n":
			return false
		default:
			log.Printf("Invalid bool for %s: %s, using default %t", key, value, defaultValue)
		}
	}
	return defaultValue
}
