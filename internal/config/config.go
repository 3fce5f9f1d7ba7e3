// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrJWTSecretRequired is returned when JWT_SECRET is not set.
	ErrJWTSecretRequired = errors.New("config: JWT_SECRET is required")
	// ErrS3BucketRequired is returned when S3_BUCKET is not set.
	ErrS3BucketRequired = errors.New("config: S3_BUCKET is required")
	// ErrS3RegionRequired is returned when S3_REGION is not set.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required")
	// ErrUnsupportedDBDriver is returned when DB_DRIVER is not recognized.
	ErrUnsupportedDBDriver = errors.New("config: unsupported DB_DRIVER")
	// ErrDatabaseURLRequired is returned when DB_DRIVER=postgres without DATABASE_URL.
	ErrDatabaseURLRequired = errors.New("config: DATABASE_URL is required for postgres")
	// ErrDynamoDBTableRequired is returned when DB_DRIVER=dynamodb without DYNAMODB_TABLE.
	ErrDynamoDBTableRequired = errors.New("config: DYNAMODB_TABLE is required for dynamodb")
)

// Supported values of DB_DRIVER.
const (
	DBDriverMemory   = "memory"
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
	DBDriverDynamoDB = "dynamodb"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port      int    `env:"PORT, default=8080" json:"port"`
	JWTSecret string `env:"JWT_SECRET, required" json:"-"` // Masked in JSON

	// Object storage settings
	S3Bucket           string `env:"S3_BUCKET, required" json:"s3_bucket"`
	S3Region           string `env:"S3_REGION, required" json:"s3_region"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Local storage settings
	TempDir    string `env:"TEMP_DIR, default=/tmp/tubely" json:"temp_dir"`
	AssetsRoot string `env:"ASSETS_ROOT, default=./assets" json:"assets_root"`

	// Record store settings
	DBDriver      string `env:"DB_DRIVER, default=sqlite" json:"db_driver"`
	DBPath        string `env:"DB_PATH, default=./tubely.db" json:"db_path"`
	DatabaseURL   string `env:"DATABASE_URL" json:"-"` // Masked in JSON
	DynamoDBTable string `env:"DYNAMODB_TABLE" json:"dynamodb_table,omitempty"`

	// Media tool settings
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Pipeline settings
	ProbeTimeout         time.Duration `env:"PROBE_TIMEOUT, default=30s" json:"probe_timeout"`
	TranscodeTimeout     time.Duration `env:"TRANSCODE_TIMEOUT, default=5m" json:"transcode_timeout"`
	UploadTimeout        time.Duration `env:"UPLOAD_TIMEOUT, default=2m" json:"upload_timeout"`
	SignedURLTTL         time.Duration `env:"SIGNED_URL_TTL, default=1h" json:"signed_url_ttl"`
	MaxVideoBytes        int64         `env:"MAX_VIDEO_BYTES, default=1073741824" json:"max_video_bytes"`
	MaxThumbnailBytes    int64         `env:"MAX_THUMBNAIL_BYTES, default=10485760" json:"max_thumbnail_bytes"`
	MaxConcurrentUploads int           `env:"MAX_CONCURRENT_UPLOADS, default=2" json:"max_concurrent_uploads"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	return LoadFrom(context.Background(), envconfig.OsLookuper())
}

// LoadFrom reads configuration from lookuper.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		// Map envconfig errors to our domain errors for required fields
		switch msg := err.Error(); {
		case strings.Contains(msg, "JWT_SECRET"):
			return nil, ErrJWTSecretRequired
		case strings.Contains(msg, "S3_BUCKET"):
			return nil, ErrS3BucketRequired
		case strings.Contains(msg, "S3_REGION"):
			return nil, ErrS3RegionRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and consistent.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrJWTSecretRequired
	}
	if c.S3Bucket == "" {
		return ErrS3BucketRequired
	}
	if c.S3Region == "" {
		return ErrS3RegionRequired
	}

	switch strings.ToLower(c.DBDriver) {
	case DBDriverMemory, DBDriverSQLite:
	case DBDriverPostgres:
		if c.DatabaseURL == "" {
			return ErrDatabaseURLRequired
		}
	case DBDriverDynamoDB:
		if c.DynamoDBTable == "" {
			return ErrDynamoDBTableRequired
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDBDriver, c.DBDriver)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.newLogger(os.Stdout)
}

func (c *Config) newLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, TempDir: %s, AssetsRoot: %s, DBDriver: %s, DBPath: %s, DynamoDBTable: %s, ProbeTimeout: %s, TranscodeTimeout: %s, UploadTimeout: %s, SignedURLTTL: %s, MaxVideoBytes: %d, MaxConcurrentUploads: %d, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		c.TempDir,
		c.AssetsRoot,
		c.DBDriver,
		c.DBPath,
		c.DynamoDBTable,
		c.ProbeTimeout,
		c.TranscodeTimeout,
		c.UploadTimeout,
		c.SignedURLTTL,
		c.MaxVideoBytes,
		c.MaxConcurrentUploads,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
