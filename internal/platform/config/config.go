package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr string

	// Scan pacing. Steps is the number of discrete progress ticks per job;
	// TickInterval is the pause between ticks.
	ScanSteps        int
	ScanTickInterval time.Duration

	// Certificate signing.
	SigningKey     string
	IssuerIdentity string

	// Persistence. Empty PostgresURL selects the in-memory registry.
	PostgresURL string

	// Optional infrastructure. Empty values disable the feature.
	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string

	CertificateCacheTTL time.Duration
}

// RedisConfig carries tuning for the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                envOr("HEALTHCERT_ADDR", ":8080"),
		ScanSteps:           envInt("HEALTHCERT_SCAN_STEPS", 10),
		ScanTickInterval:    envDuration("HEALTHCERT_SCAN_TICK_INTERVAL", 200*time.Millisecond),
		SigningKey:          envOr("HEALTHCERT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		IssuerIdentity:      envOr("HEALTHCERT_ISSUER", "healthcert-dev"),
		PostgresURL:         os.Getenv("HEALTHCERT_POSTGRES_URL"),
		RedisURL:            os.Getenv("HEALTHCERT_REDIS_URL"),
		KafkaTopic:          envOr("HEALTHCERT_KAFKA_TOPIC", "healthcert.audit"),
		CertificateCacheTTL: envDuration("HEALTHCERT_CERT_CACHE_TTL", 5*time.Minute),
	}
	if brokers := os.Getenv("HEALTHCERT_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

// Redis derives a RedisConfig with pool defaults suitable for this service.
func (s Server) Redis() RedisConfig {
	return RedisConfig{
		URL:          s.RedisURL,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
