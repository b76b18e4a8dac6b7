package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the audit server needs from its environment.
type Config struct {
	Addr     string
	LogLevel string

	// DatabaseURL selects the postgres ledger when set; empty falls back to
	// the in-memory ledger (development only).
	DatabaseURL string

	Redis RedisConfig
	Kafka KafkaConfig

	// QueryTimeout bounds dashboard reads; writes are bounded by storage I/O.
	QueryTimeout time.Duration

	DefaultPageSize int
	MaxPageSize     int
}

// RedisConfig configures the optional recent-page cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional event mirror. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:        getenv("AUDIT_ADDR", ":8080"),
		LogLevel:    getenv("AUDIT_LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("AUDIT_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("AUDIT_REDIS_URL"),
			PoolSize:     getenvInt("AUDIT_REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("AUDIT_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getenvDuration("AUDIT_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("AUDIT_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getenvDuration("AUDIT_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("AUDIT_KAFKA_BROKERS")),
			Topic:   getenv("AUDIT_KAFKA_TOPIC", "audit.events"),
		},
		QueryTimeout:    getenvDuration("AUDIT_QUERY_TIMEOUT", 30*time.Second),
		DefaultPageSize: getenvInt("AUDIT_DEFAULT_PAGE_SIZE", 50),
		MaxPageSize:     getenvInt("AUDIT_MAX_PAGE_SIZE", 500),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
