package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/folio/pkg/database"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/storage"
	"github.com/platinummonkey/folio/pkg/workflow"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Storage       StorageConfig       `yaml:"storage"`
	Workflow      WorkflowConfig      `yaml:"workflow"`
	Observability ObservabilityConfig `yaml:"observability"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Jobs          JobsConfig          `yaml:"jobs"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds the primary and replica connection settings
type DatabaseConfig struct {
	URL         string        `yaml:"url"`
	ReplicaURLs string        `yaml:"replica_urls"`
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Connection converts the settings for database.NewConnectionManager.
func (d DatabaseConfig) Connection() database.ConnectionConfig {
	return database.ConnectionConfig{
		PrimaryURL:  d.URL,
		ReplicaURLs: database.ParseReplicaURLs(d.ReplicaURLs),
		MaxConns:    d.MaxConns,
		MinConns:    d.MinConns,
		Timeout:     d.Timeout,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
	}
}

// RedisConfig enables the shared role cache and distributed rate limiter
// when URL is set.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig selects the manuscript store
type StorageConfig struct {
	Backend        string `yaml:"backend"`
	Dir            string `yaml:"dir"`
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3Region       string `yaml:"s3_region"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`
	MaxUploadMB    int    `yaml:"max_upload_mb"`
}

// Store converts the settings for storage.New.
func (s StorageConfig) Store() storage.Config {
	return storage.Config{
		Backend:        s.Backend,
		Dir:            s.Dir,
		S3Endpoint:     s.S3Endpoint,
		S3Region:       s.S3Region,
		S3Bucket:       s.S3Bucket,
		S3AccessKey:    s.S3AccessKey,
		S3SecretKey:    s.S3SecretKey,
		S3UsePathStyle: s.S3UsePathStyle,
	}
}

// MaxUploadBytes is the upload limit in bytes.
func (s StorageConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// WorkflowConfig holds the optional workflow guards
type WorkflowConfig struct {
	StrictTransitions bool `yaml:"strict_transitions"`
	GuardReassign     bool `yaml:"guard_reassign"`
	UniqueReviewers   bool `yaml:"unique_reviewers"`
}

// Options converts the settings for workflow.WithOptions.
func (w WorkflowConfig) Options() workflow.Options {
	return workflow.Options{
		StrictTransitions: w.StrictTransitions,
		GuardReassign:     w.GuardReassign,
		UniqueReviewers:   w.UniqueReviewers,
	}
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level parses LogLevel, defaulting to info.
func (o ObservabilityConfig) Level() observability.LogLevel {
	level, err := observability.ParseLevel(o.LogLevel)
	if err != nil {
		return observability.InfoLevel
	}
	return level
}

// OTel converts the settings for observability.InitOTel.
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// RateLimitConfig holds per-user request limits
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// JobsConfig holds background job schedules
type JobsConfig struct {
	TokenCleanupSchedule string `yaml:"token_cleanup_schedule"`
	AuditCleanupSchedule string `yaml:"audit_cleanup_schedule"`
	// AuditRetention of zero keeps audit events forever.
	AuditRetention time.Duration `yaml:"audit_retention"`
}

// LoadConfig loads configuration from the environment, applies the
// FOLIO_CONFIG_FILE overlay when set, and validates the result. Variables
// from FOLIO_ENV_FILE (or ./.env when present) fill in anything the process
// environment leaves unset.
func LoadConfig() (*Config, error) {
	if err := LoadEnvFile(os.Getenv("FOLIO_ENV_FILE")); err != nil {
		return nil, err
	}
	return Load(os.Getenv("FOLIO_CONFIG_FILE"))
}

// LoadEnvFile loads a dotenv file without overriding variables already set.
// An empty path tries ./.env and ignores its absence.
func LoadEnvFile(path string) error {
	if path == "" {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load is LoadConfig with an explicit overlay path; an empty path skips the
// overlay.
func Load(overlayPath string) (*Config, error) {
	cfg := FromEnv()
	if overlayPath != "" {
		if err := cfg.ApplyFile(overlayPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables and defaults.
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            getEnv("FOLIO_HOST", "0.0.0.0"),
			Port:            getEnv("FOLIO_PORT", "8080"),
			ReadTimeout:     getEnvDuration("FOLIO_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("FOLIO_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvDuration("FOLIO_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("FOLIO_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			ReplicaURLs: getEnv("FOLIO_DB_REPLICAS", ""),
			MaxConns:    getEnvInt("FOLIO_DB_MAX_CONNS", 20),
			MinConns:    getEnvInt("FOLIO_DB_MIN_CONNS", 2),
			Timeout:     getEnvDuration("FOLIO_DB_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Storage: StorageConfig{
			Backend:        getEnv("FOLIO_STORAGE_BACKEND", "fs"),
			Dir:            getEnv("FOLIO_STORAGE_DIR", "./data/manuscripts"),
			S3Endpoint:     getEnv("FOLIO_S3_ENDPOINT", ""),
			S3Region:       getEnv("FOLIO_S3_REGION", "us-east-1"),
			S3Bucket:       getEnv("FOLIO_S3_BUCKET", ""),
			S3AccessKey:    getEnv("FOLIO_S3_ACCESS_KEY", ""),
			S3SecretKey:    getEnv("FOLIO_S3_SECRET_KEY", ""),
			S3UsePathStyle: getEnvBool("FOLIO_S3_USE_PATH_STYLE", false),
			MaxUploadMB:    getEnvInt("FOLIO_MAX_UPLOAD_MB", 16),
		},
		Workflow: WorkflowConfig{
			StrictTransitions: getEnvBool("FOLIO_STRICT_TRANSITIONS", false),
			GuardReassign:     getEnvBool("FOLIO_GUARD_REASSIGN", false),
			UniqueReviewers:   getEnvBool("FOLIO_UNIQUE_REVIEWERS", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:           getEnv("FOLIO_LOG_LEVEL", "info"),
			LogFormat:          getEnv("FOLIO_LOG_FORMAT", "text"),
			MetricsEnabled:     getEnvBool("FOLIO_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("FOLIO_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("FOLIO_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("FOLIO_OTEL_SERVICE_NAME", "folio"),
			OTelServiceVersion: getEnv("FOLIO_OTEL_SERVICE_VERSION", "dev"),
			OTelInsecure:       getEnvBool("FOLIO_OTEL_INSECURE", true),
			OTelSampleRatio:    getEnvFloat("FOLIO_OTEL_SAMPLE_RATIO", 1),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("FOLIO_RATE_LIMIT_RPM", 120),
		},
		Jobs: JobsConfig{
			TokenCleanupSchedule: getEnv("FOLIO_TOKEN_CLEANUP_SCHEDULE", "@hourly"),
			AuditCleanupSchedule: getEnv("FOLIO_AUDIT_CLEANUP_SCHEDULE", "@daily"),
			AuditRetention:       getEnvDuration("FOLIO_AUDIT_RETENTION", 90*24*time.Hour),
		},
	}
}

// ApplyFile overlays the YAML file at path. Keys missing from the file keep
// their current values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max conns must be positive")
	}

	switch c.Storage.Backend {
	case "fs":
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage dir is required for fs storage")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be fs or s3)", c.Storage.Backend)
	}
	if c.Storage.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}

	if _, err := observability.ParseLevel(c.Observability.LogLevel); err != nil {
		return err
	}
	switch c.Observability.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (must be text or json)", c.Observability.LogFormat)
	}
	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.Jobs.TokenCleanupSchedule != "" {
		if _, err := cron.ParseStandard(c.Jobs.TokenCleanupSchedule); err != nil {
			return fmt.Errorf("invalid token cleanup schedule: %w", err)
		}
	}
	if c.Jobs.AuditCleanupSchedule != "" {
		if _, err := cron.ParseStandard(c.Jobs.AuditCleanupSchedule); err != nil {
			return fmt.Errorf("invalid audit cleanup schedule: %w", err)
		}
	}
	if c.Jobs.AuditRetention < 0 {
		return fmt.Errorf("audit retention must not be negative")
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
