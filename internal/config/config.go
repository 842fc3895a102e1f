package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxUploadBytes is the upload ceiling applied when MAX_UPLOAD_BYTES is unset (5 MiB).
const DefaultMaxUploadBytes = 5 << 20

// DatabaseConfig holds PostgreSQL database connection settings.
// URL, when set, takes precedence over the individual components.
type DatabaseConfig struct {
	URL                string
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for the raw upload archive.
// The archive is disabled when Endpoint is empty.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether an archive endpoint was configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// RAGConfig holds settings for the external retrieval-augmented generation service.
type RAGConfig struct {
	BaseURL          string
	TimeoutSec       int
	HealthTimeoutSec int
	// RateLimit caps ingest and question calls per second; 0 means unlimited.
	RateLimit float64
	RateBurst int
}

// Timeout bounds ingestion and question answering calls.
func (c RAGConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// HealthTimeout bounds each dependency probe.
func (c RAGConfig) HealthTimeout() time.Duration {
	return time.Duration(c.HealthTimeoutSec) * time.Second
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port           string
	Environment    string
	LogLevel       string
	AllowedOrigins []string
	MaxUploadBytes int64
	Database       DatabaseConfig
	MinIO          MinIOConfig
	RAG            RAGConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "production"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: SplitCSV(os.Getenv("ALLOWED_ORIGINS")),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)),
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "documents"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		RAG: RAGConfig{
			// PY_RAG_URL is the name older deployments use.
			BaseURL:          getEnv("RAG_BASE_URL", getEnv("PY_RAG_URL", "http://localhost:8000")),
			TimeoutSec:       getEnvInt("RAG_TIMEOUT_SEC", 30),
			HealthTimeoutSec: getEnvInt("RAG_HEALTH_TIMEOUT_SEC", 5),
			RateLimit:        getEnvFloat("RAG_RATE_LIMIT", 0),
			RateBurst:        getEnvInt("RAG_RATE_BURST", 5),
		},
	}
}

// SplitCSV splits a comma-separated list, trimming entries and dropping empty ones.
func SplitCSV(v string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}
