// Package config loads configuration from an optional file and environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Listing sources.
const (
	SourceDrive    = "drive"
	SourceS3       = "s3"
	SourceSnapshot = "snapshot"
)

// DefaultCredentialsPath is where the service account key is looked up when
// nothing else is configured.
const DefaultCredentialsPath = "storage/services/GoogleDriveTracker/credentials.json"

// ErrMissingCredentials is returned when the credential file is absent.
var ErrMissingCredentials = errors.New("missing credentials")

// Config holds all tracker configuration.
type Config struct {
	// Listing source
	Source          string
	CredentialsPath string
	DriveAPIURL     string
	SnapshotPath    string

	// S3 listing
	S3Endpoint  string
	S3Bucket    string
	S3Prefix    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string

	// Notification
	WebhookURL string

	// Polling
	PollInterval time.Duration
	RetryDelay   time.Duration

	// Report
	DropSegments int
	MinDepth     int

	// Logging
	LogLevel  string
	LogFormat string

	// Optional services
	MetricsAddr string
	DatabaseURL string
}

// fileConfig is the on-disk shape. Durations are strings ("3s").
type fileConfig struct {
	Source          string `yaml:"source" toml:"source"`
	CredentialsPath string `yaml:"credentials_path" toml:"credentials_path"`
	DriveAPIURL     string `yaml:"drive_api_url" toml:"drive_api_url"`
	SnapshotPath    string `yaml:"snapshot_path" toml:"snapshot_path"`
	WebhookURL      string `yaml:"webhook_url" toml:"webhook_url"`
	PollInterval    string `yaml:"poll_interval" toml:"poll_interval"`
	RetryDelay      string `yaml:"retry_delay" toml:"retry_delay"`
	DropSegments    *int   `yaml:"drop_segments" toml:"drop_segments"`
	MinDepth        *int   `yaml:"min_depth" toml:"min_depth"`
	MetricsAddr     string `yaml:"metrics_addr" toml:"metrics_addr"`
	DatabaseURL     string `yaml:"database_url" toml:"database_url"`

	Log struct {
		Level  string `yaml:"level" toml:"level"`
		Format string `yaml:"format" toml:"format"`
	} `yaml:"log" toml:"log"`

	S3 struct {
		Endpoint  string `yaml:"endpoint" toml:"endpoint"`
		Bucket    string `yaml:"bucket" toml:"bucket"`
		Prefix    string `yaml:"prefix" toml:"prefix"`
		AccessKey string `yaml:"access_key" toml:"access_key"`
		SecretKey string `yaml:"secret_key" toml:"secret_key"`
		Region    string `yaml:"region" toml:"region"`
	} `yaml:"s3" toml:"s3"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Source:          SourceDrive,
		CredentialsPath: DefaultCredentialsPath,
		DriveAPIURL:     "https://www.googleapis.com/drive/v3",
		S3Region:        "us-east-1",
		PollInterval:    3 * time.Second,
		RetryDelay:      5 * time.Second,
		DropSegments:    1,
		MinDepth:        2,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// Load builds the configuration: defaults, then the file at path (if not
// empty), then environment variables.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := cfg.loadFile(fs, path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		return fmt.Errorf("config %s: unsupported format (want .yaml, .yml or .toml)", path)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&c.Source, fc.Source)
	setString(&c.CredentialsPath, fc.CredentialsPath)
	setString(&c.DriveAPIURL, fc.DriveAPIURL)
	setString(&c.SnapshotPath, fc.SnapshotPath)
	setString(&c.WebhookURL, fc.WebhookURL)
	setString(&c.MetricsAddr, fc.MetricsAddr)
	setString(&c.DatabaseURL, fc.DatabaseURL)
	setString(&c.LogLevel, fc.Log.Level)
	setString(&c.LogFormat, fc.Log.Format)
	setString(&c.S3Endpoint, fc.S3.Endpoint)
	setString(&c.S3Bucket, fc.S3.Bucket)
	setString(&c.S3Prefix, fc.S3.Prefix)
	setString(&c.S3AccessKey, fc.S3.AccessKey)
	setString(&c.S3SecretKey, fc.S3.SecretKey)
	setString(&c.S3Region, fc.S3.Region)
	if fc.DropSegments != nil {
		c.DropSegments = *fc.DropSegments
	}
	if fc.MinDepth != nil {
		c.MinDepth = *fc.MinDepth
	}
	if fc.PollInterval != "" {
		if c.PollInterval, err = time.ParseDuration(fc.PollInterval); err != nil {
			return fmt.Errorf("config poll_interval: %w", err)
		}
	}
	if fc.RetryDelay != "" {
		if c.RetryDelay, err = time.ParseDuration(fc.RetryDelay); err != nil {
			return fmt.Errorf("config retry_delay: %w", err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Source = envOr("TRACKER_SOURCE", c.Source)
	c.CredentialsPath = envOr("TRACKER_CREDENTIALS", c.CredentialsPath)
	c.DriveAPIURL = envOr("DRIVE_API_URL", c.DriveAPIURL)
	c.SnapshotPath = envOr("SNAPSHOT_PATH", c.SnapshotPath)
	c.WebhookURL = envOr("TRACKER_WEBHOOK_URL", c.WebhookURL)
	c.MetricsAddr = envOr("METRICS_ADDR", c.MetricsAddr)
	c.DatabaseURL = envOr("DATABASE_URL", c.DatabaseURL)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
	c.S3Endpoint = envOr("S3_ENDPOINT", c.S3Endpoint)
	c.S3Bucket = envOr("S3_BUCKET", c.S3Bucket)
	c.S3Prefix = envOr("S3_PREFIX", c.S3Prefix)
	c.S3AccessKey = envOr("S3_ACCESS_KEY", c.S3AccessKey)
	c.S3SecretKey = envOr("S3_SECRET_KEY", c.S3SecretKey)
	c.S3Region = envOr("S3_REGION", c.S3Region)
	var err error
	if c.DropSegments, err = envInt("REPORT_DROP_SEGMENTS", c.DropSegments); err != nil {
		return err
	}
	if c.MinDepth, err = envInt("REPORT_MIN_DEPTH", c.MinDepth); err != nil {
		return err
	}
	if c.PollInterval, err = envDuration("POLL_INTERVAL", c.PollInterval); err != nil {
		return err
	}
	if c.RetryDelay, err = envDuration("RETRY_DELAY", c.RetryDelay); err != nil {
		return err
	}
	return nil
}

// Validate checks settings that would make the loop unusable.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceDrive:
		if c.CredentialsPath == "" {
			return fmt.Errorf("credentials path is required for source %q", c.Source)
		}
	case SourceS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for source %q", c.Source)
		}
	case SourceSnapshot:
		if c.SnapshotPath == "" {
			return fmt.Errorf("SNAPSHOT_PATH is required for source %q", c.Source)
		}
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("retry delay must be positive, got %s", c.RetryDelay)
	}
	if c.DropSegments < 0 || c.MinDepth < 0 {
		return fmt.Errorf("drop segments and min depth must not be negative")
	}
	return nil
}

// CheckCredentials verifies the credential artifact exists for sources
// that need one.
func (c *Config) CheckCredentials(fs afero.Fs) error {
	if c.Source != SourceDrive {
		return nil
	}
	ok, err := afero.Exists(fs, c.CredentialsPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", c.CredentialsPath, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, c.CredentialsPath)
	}
	return nil
}

// Lookup returns a setting by its environment key, or fallback when unset.
func (c *Config) Lookup(key, fallback string) string {
	values := map[string]string{
		"TRACKER_SOURCE":       c.Source,
		"TRACKER_CREDENTIALS":  c.CredentialsPath,
		"TRACKER_WEBHOOK_URL":  c.WebhookURL,
		"DRIVE_API_URL":        c.DriveAPIURL,
		"SNAPSHOT_PATH":        c.SnapshotPath,
		"METRICS_ADDR":         c.MetricsAddr,
		"DATABASE_URL":         c.DatabaseURL,
		"LOG_LEVEL":            c.LogLevel,
		"LOG_FORMAT":           c.LogFormat,
		"S3_BUCKET":            c.S3Bucket,
		"S3_PREFIX":            c.S3Prefix,
		"POLL_INTERVAL":        c.PollInterval.String(),
		"RETRY_DELAY":          c.RetryDelay.String(),
		"REPORT_DROP_SEGMENTS": strconv.Itoa(c.DropSegments),
		"REPORT_MIN_DEPTH":     strconv.Itoa(c.MinDepth),
	}
	if v := values[key]; v != "" {
		return v
	}
	return fallback
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
