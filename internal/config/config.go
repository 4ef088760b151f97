package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; DATABASE_URL and ENCRYPTION_KEY are
// required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Credential cipher (base64 or hex encoded master key)
	EncryptionKey string

	// Email workers
	WorkerCount int
	SMTPTimeout time.Duration

	// Maximum SMTP submissions per second across the pool
	SendRate int

	// Job queue
	QueueCapacity      int
	MaxAttempts        int
	BaseBackoff        time.Duration
	CompletedRetention time.Duration
	DeadRetention      time.Duration
	JanitorInterval    time.Duration

	// Aggregator settle sweep
	SweepInterval time.Duration
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	encKey := os.Getenv("ENCRYPTION_KEY")
	if encKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		EncryptionKey: encKey,

		WorkerCount: getInt("WORKER_CONCURRENCY", 5),
		SMTPTimeout: getDuration("SMTP_TIMEOUT", 10*time.Second),

		SendRate: getInt("SEND_RATE_PER_SECOND", 100),

		QueueCapacity:      getInt("QUEUE_CAPACITY", 10000),
		MaxAttempts:        getInt("QUEUE_MAX_ATTEMPTS", 3),
		BaseBackoff:        getDuration("QUEUE_BACKOFF_BASE", 2*time.Second),
		CompletedRetention: getDuration("QUEUE_COMPLETED_RETENTION", time.Hour),
		DeadRetention:      getDuration("QUEUE_DEAD_RETENTION", 24*time.Hour),
		JanitorInterval:    getDuration("QUEUE_JANITOR_INTERVAL", time.Minute),

		SweepInterval: getDuration("SWEEP_INTERVAL", 10*time.Second),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
