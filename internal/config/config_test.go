package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Source != SourceDrive {
		t.Errorf("Source = %q, want drive", cfg.Source)
	}
	if cfg.CredentialsPath != DefaultCredentialsPath {
		t.Errorf("CredentialsPath = %q", cfg.CredentialsPath)
	}
	if cfg.PollInterval != 3*time.Second || cfg.RetryDelay != 5*time.Second {
		t.Errorf("intervals = %s/%s, want 3s/5s", cfg.PollInterval, cfg.RetryDelay)
	}
	if cfg.DropSegments != 1 || cfg.MinDepth != 2 {
		t.Errorf("report options = %d/%d, want 1/2", cfg.DropSegments, cfg.MinDepth)
	}
}

func TestLoad_YAML(t *testing.T) {
	content := `
source: snapshot
snapshot_path: /data/listing.json
webhook_url: https://hooks.example.com/abc
poll_interval: 10s
drop_segments: 0
log:
  level: debug
`
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/etc/tracker.yaml", []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(fs, "/etc/tracker.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Source != SourceSnapshot || cfg.SnapshotPath != "/data/listing.json" {
		t.Errorf("source = %q %q", cfg.Source, cfg.SnapshotPath)
	}
	if cfg.WebhookURL != "https://hooks.example.com/abc" {
		t.Errorf("WebhookURL = %q", cfg.WebhookURL)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %s", cfg.PollInterval)
	}
	if cfg.DropSegments != 0 {
		t.Errorf("DropSegments = %d, want explicit 0", cfg.DropSegments)
	}
	if cfg.MinDepth != 2 {
		t.Errorf("MinDepth = %d, want default 2", cfg.MinDepth)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoad_TOML(t *testing.T) {
	content := `
source = "s3"
retry_delay = "1m"

[s3]
bucket = "drive-mirror"
prefix = "team/"
`
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/tracker.toml", []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(fs, "/tracker.toml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Source != SourceS3 || cfg.S3Bucket != "drive-mirror" || cfg.S3Prefix != "team/" {
		t.Errorf("unexpected s3 config: %+v", cfg)
	}
	if cfg.RetryDelay != time.Minute {
		t.Errorf("RetryDelay = %s", cfg.RetryDelay)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/c.yml", []byte("webhook_url: from-file\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("TRACKER_WEBHOOK_URL", "from-env")
	t.Setenv("POLL_INTERVAL", "250ms")

	cfg, err := Load(fs, "/c.yml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.WebhookURL != "from-env" {
		t.Errorf("WebhookURL = %q, want from-env", cfg.WebhookURL)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %s", cfg.PollInterval)
	}
}

func TestLoad_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/c.ini", []byte("x"), 0644)
	afero.WriteFile(fs, "/bad.yaml", []byte("poll_interval: soon\n"), 0644)
	afero.WriteFile(fs, "/s3.yaml", []byte("source: s3\n"), 0644)
	afero.WriteFile(fs, "/unknown.yaml", []byte("source: ftp\n"), 0644)

	tests := []struct {
		path    string
		wantErr string
	}{
		{"/missing.yaml", "read config"},
		{"/c.ini", "unsupported format"},
		{"/bad.yaml", "poll_interval"},
		{"/s3.yaml", "S3_BUCKET"},
		{"/unknown.yaml", "unknown source"},
	}
	for _, tt := range tests {
		_, err := Load(fs, tt.path)
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("Load(%s) error = %v, want containing %q", tt.path, err, tt.wantErr)
		}
	}
}

func TestLoad_MalformedEnv(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"REPORT_DROP_SEGMENTS", "one"},
		{"REPORT_MIN_DEPTH", "2.5"},
		{"POLL_INTERVAL", "soon"},
		{"RETRY_DELAY", "5"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(afero.NewMemMapFs(), "")
			if err == nil || !strings.Contains(err.Error(), tt.key) {
				t.Errorf("Load with %s=%q: error = %v, want one naming %s", tt.key, tt.value, err, tt.key)
			}
		})
	}
}

func TestCheckCredentials(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := Defaults()

	err := cfg.CheckCredentials(fs)
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}

	if err := afero.WriteFile(fs, cfg.CredentialsPath, []byte("{}"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := cfg.CheckCredentials(fs); err != nil {
		t.Errorf("CheckCredentials with file present: %v", err)
	}

	cfg.Source = SourceSnapshot
	if err := cfg.CheckCredentials(afero.NewMemMapFs()); err != nil {
		t.Errorf("snapshot source should not need credentials: %v", err)
	}
}

func TestLookup(t *testing.T) {
	cfg := Defaults()
	if got := cfg.Lookup("TRACKER_WEBHOOK_URL", "fallback"); got != "fallback" {
		t.Errorf("unset key = %q, want fallback", got)
	}
	if got := cfg.Lookup("TRACKER_CREDENTIALS", ""); got != DefaultCredentialsPath {
		t.Errorf("credentials = %q", got)
	}
	if got := cfg.Lookup("REPORT_DROP_SEGMENTS", ""); got != "1" {
		t.Errorf("drop segments = %q", got)
	}
	if got := cfg.Lookup("NOPE", "x"); got != "x" {
		t.Errorf("unknown key = %q", got)
	}
}
