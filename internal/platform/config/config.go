// Package config reads runtime settings from the environment. Defaults are
// tuned for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"

	maxBatchSize = 50
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	AdminToken      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type Logging struct {
	Level  string
	Format string
}

// CacheConfig selects the decision cache backend.
type CacheConfig struct {
	Enabled bool
	Backend string
	TTL     time.Duration
}

// RedisConfig holds connection settings for the shared cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	URL string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// VerificationConfig tunes the orchestrator.
type VerificationConfig struct {
	RulesPath         string
	MaxBatchSize      int
	BatchConcurrency  int
	CitationLimit     int
	EnrichmentTimeout time.Duration
}

type Config struct {
	Server       Server
	Logging      Logging
	Cache        CacheConfig
	Redis        RedisConfig
	Database     DatabaseConfig
	Kafka        KafkaConfig
	Verification VerificationConfig
}

// FromEnv builds a Config from environment variables and validates it.
func FromEnv() (Config, error) {
	r := envReader{}
	cfg := Config{
		Server: Server{
			Addr:            r.str("PROCVERIFY_ADDR", ":8080"),
			AdminToken:      r.str("ADMIN_TOKEN", ""),
			RequestTimeout:  r.duration("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: r.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logging: Logging{
			Level:  strings.ToLower(r.str("LOG_LEVEL", "info")),
			Format: strings.ToLower(r.str("LOG_FORMAT", "json")),
		},
		Cache: CacheConfig{
			Enabled: r.boolean("CACHE_ENABLED", true),
			Backend: strings.ToLower(r.str("CACHE_BACKEND", CacheBackendMemory)),
			TTL:     r.duration("CACHE_TTL", 0),
		},
		Redis: RedisConfig{
			URL:          r.str("REDIS_URL", ""),
			PoolSize:     r.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: r.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Database: DatabaseConfig{
			URL: r.str("DATABASE_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers: r.list("KAFKA_BROKERS"),
			Topic:   r.str("KAFKA_TOPIC", "procverify.decisions"),
		},
		Verification: VerificationConfig{
			RulesPath:         r.str("POLICY_RULES_PATH", ""),
			MaxBatchSize:      r.integer("MAX_BATCH_SIZE", maxBatchSize),
			BatchConcurrency:  r.integer("BATCH_CONCURRENCY", 8),
			CitationLimit:     r.integer("CITATION_LIMIT", 5),
			EnrichmentTimeout: r.duration("ENRICHMENT_TIMEOUT", 2*time.Second),
		},
	}
	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects impossible combinations.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("PROCVERIFY_ADDR must not be empty"))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.Logging.Level))
	}
	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if c.Cache.Enabled && c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when CACHE_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be memory or redis, got %q", c.Cache.Backend))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("CACHE_TTL must not be negative"))
	}
	if c.Verification.MaxBatchSize < 1 || c.Verification.MaxBatchSize > maxBatchSize {
		errs = append(errs, fmt.Errorf("MAX_BATCH_SIZE must be between 1 and %d", maxBatchSize))
	}
	if c.Verification.BatchConcurrency < 1 {
		errs = append(errs, errors.New("BATCH_CONCURRENCY must be at least 1"))
	}
	if c.Verification.CitationLimit < 1 {
		errs = append(errs, errors.New("CITATION_LIMIT must be at least 1"))
	}
	if c.Verification.EnrichmentTimeout <= 0 {
		errs = append(errs, errors.New("ENRICHMENT_TIMEOUT must be positive"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}
	return errors.Join(errs...)
}

// envReader collects parse errors so every bad variable is reported at once.
type envReader struct {
	errs []error
}

func (r *envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *envReader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (r *envReader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

// duration accepts Go durations ("2s") and bare integers as seconds.
func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (r *envReader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(r.str(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
