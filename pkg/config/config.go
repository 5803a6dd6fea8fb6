package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Gemini        GeminiConfig
	Embedding     EmbeddingConfig
	Email         EmailConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
}

type GeminiConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	// Requests per minute allowed against the Gemini API.
	RateLimitPerMinute int
	Timeout            time.Duration
}

type EmbeddingConfig struct {
	// How often the backfill job polls for transactions without embeddings.
	PollInterval time.Duration
	BatchSize    int
}

type EmailConfig struct {
	ResendAPIKey string
	FromAddress  string
	DigestCron   string
	// Comma separated "uuid:email" pairs to receive the weekly digest.
	DigestRecipients string
}

type StorageConfig struct {
	Type      string // "local" or "s3"
	LocalPath string
	S3Bucket  string
	S3Region  string
}

type ServerConfig struct {
	Host               string
	Port               int
	BaseURL            string
	RateLimitPerSecond int
	RateLimitBurst     int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

type ProfilingConfig struct {
	Enabled bool
	Port    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 100),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 200),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "pennypilot-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Gemini: GeminiConfig{
			APIKey:             getEnv("GEMINI_API_KEY", ""),
			Model:              getEnv("GEMINI_MODEL", ""),
			EmbeddingModel:     getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
			RateLimitPerMinute: getEnvAsInt("GEMINI_RATE_LIMIT_PER_MINUTE", 60),
			Timeout:            getEnvAsDuration("GEMINI_TIMEOUT", 60*time.Second),
		},
		Embedding: EmbeddingConfig{
			PollInterval: getEnvAsDuration("EMBEDDING_POLL_INTERVAL", 10*time.Minute),
			BatchSize:    getEnvAsInt("EMBEDDING_BATCH_SIZE", 64),
		},
		Email: EmailConfig{
			ResendAPIKey:     getEnv("RESEND_API_KEY", ""),
			FromAddress:      getEnv("EMAIL_FROM", "digest@pennypilot.app"),
			DigestCron:       getEnv("DIGEST_CRON", "0 8 * * 1"),
			DigestRecipients: getEnv("EMAIL_DIGEST_RECIPIENTS", ""),
		},
		Storage: StorageConfig{
			Type:      getEnv("STORAGE_TYPE", "local"),
			LocalPath: getEnv("STORAGE_LOCAL_PATH", "./uploads"),
			S3Bucket:  getEnv("STORAGE_S3_BUCKET", ""),
			S3Region:  getEnv("STORAGE_S3_REGION", ""),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Profiling: ProfilingConfig{
			Enabled: getEnvAsBool("PPROF_ENABLED", false),
			Port:    getEnvAsInt("PPROF_PORT", 6060),
		},
	}

	if cfg.Gemini.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}

	if cfg.Gemini.Model == "" {
		return nil, errors.New("GEMINI_MODEL is required")
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
