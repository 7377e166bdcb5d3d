// Package config resolves service settings from .env, the environment and
// command line flags, in increasing order of precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/zombar/communityanalyzer/internal/patterns"
)

// Config holds the server settings
type Config struct {
	Port               string
	DatabaseDSN        string
	RedisAddr          string
	RedisPassword      string
	UseQueue           bool
	QueueConcurrency   int
	ExtractWorkers     int
	CustomPatternsFile string
	LogLevel           string
	OTLPEndpoint       string
}

// LoadEnvFile loads variables from the given .env files. Missing files are
// ignored. Variables already set in the environment win.
func LoadEnvFile(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds a Config from environment defaults overridden by args
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("communityanalyzer", flag.ContinueOnError)
	cfg := &Config{}

	fs.StringVar(&cfg.Port, "port", getEnv("PORT", "8080"), "Server port (env: PORT)")
	fs.StringVar(&cfg.DatabaseDSN, "db", getEnv("DB_DSN", "communityanalyzer.db"), "SQLite path or Postgres DSN (env: DB_DSN)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis address for the task queue (env: REDIS_ADDR)")
	fs.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password (env: REDIS_PASSWORD)")
	fs.BoolVar(&cfg.UseQueue, "use-queue", getEnvBool("USE_QUEUE", true), "Run analyses through the task queue (env: USE_QUEUE)")
	fs.IntVar(&cfg.QueueConcurrency, "queue-concurrency", getEnvInt("QUEUE_CONCURRENCY", 4), "Concurrent analysis tasks (env: QUEUE_CONCURRENCY)")
	fs.IntVar(&cfg.ExtractWorkers, "extract-workers", getEnvInt("EXTRACT_WORKERS", 0), "Feature extraction workers, 0 for NumCPU (env: EXTRACT_WORKERS)")
	fs.StringVar(&cfg.CustomPatternsFile, "custom-patterns", getEnv("CUSTOM_PATTERNS_FILE", ""), "YAML file of extra forbidden patterns (env: CUSTOM_PATTERNS_FILE)")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level (env: LOG_LEVEL)")
	fs.StringVar(&cfg.OTLPEndpoint, "otlp-endpoint", getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""), "OTLP gRPC collector endpoint (env: OTEL_EXPORTER_OTLP_ENDPOINT)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be defaulted
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.UseQueue && c.RedisAddr == "" {
		return fmt.Errorf("redis address is required when the queue is enabled")
	}
	if c.QueueConcurrency < 1 {
		return fmt.Errorf("queue concurrency must be positive, got %d", c.QueueConcurrency)
	}
	if c.ExtractWorkers < 0 {
		return fmt.Errorf("extract workers must not be negative, got %d", c.ExtractWorkers)
	}
	return nil
}

// CustomPatterns reads the configured custom pattern file, if any
func (c *Config) CustomPatterns() ([]patterns.CustomPattern, error) {
	if c.CustomPatternsFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.CustomPatternsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read custom patterns: %w", err)
	}
	return patterns.LoadCustomPatterns(data)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
