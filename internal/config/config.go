package config

import (
	"encoding/base64"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Capacity bounds for a room. Requests outside this range are rejected.
const (
	MinCapacity = 2
	MaxCapacity = 50
)

// Config holds all configuration for the application.
type Config struct {
	Port      string
	Env       string
	PublicURL string // base for magic links, e.g. https://chat.example.com

	// Storage backend: postgres when DatabaseURL is set, otherwise SQLite.
	DatabaseURL string
	SQLitePath  string

	// Optional Redis for HTTP rate limiting.
	RedisURL string

	// Blob backend: "local" (default) or "gridfs".
	BlobBackend  string
	DataDir      string
	MongoURL     string
	GridFSBucket string

	// Archival encryption key, 32 bytes decoded. Empty means archives are
	// written in cleartext with that fact recorded in metadata.
	EncryptionKey []byte

	// Session tokens.
	SessionSecret string
	SessionTTL    time.Duration

	// Lifecycle.
	GracePeriod     time.Duration
	DefaultCapacity int

	MaxUploadBytes int64
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		PublicURL:       getEnv("PUBLIC_URL", "http://localhost:8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		SQLitePath:      getEnv("SQLITE_PATH", "./data/privatechat.db"),
		RedisURL:        os.Getenv("REDIS_URL"),
		BlobBackend:     getEnv("BLOB_BACKEND", "local"),
		DataDir:         getEnv("DATA_DIR", "./data"),
		MongoURL:        os.Getenv("MONGO_URL"),
		GridFSBucket:    getEnv("GRIDFS_BUCKET", "room_media"),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		SessionTTL:      getDuration("SESSION_TTL", 2*time.Hour),
		GracePeriod:     getDuration("GRACE_PERIOD", 5*time.Second),
		DefaultCapacity: getInt("DEFAULT_CAPACITY", 10),
		MaxUploadBytes:  getInt64("MAX_UPLOAD_BYTES", 50<<20),
	}

	if raw := os.Getenv("ENCRYPTION_KEY"); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil || len(key) != 32 {
			panic("ENCRYPTION_KEY must be 32 bytes, base64-encoded")
		}
		cfg.EncryptionKey = key
	}

	if cfg.Env == "production" {
		if cfg.SessionSecret == "" {
			panic("SESSION_SECRET is required in production")
		}
	}

	if cfg.DefaultCapacity < MinCapacity || cfg.DefaultCapacity > MaxCapacity {
		panic("DEFAULT_CAPACITY outside allowed bounds")
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
