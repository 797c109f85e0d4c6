package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config holds harvester configuration. It is built once per process and
// passed by pointer; nothing mutates it after Validate.
type Config struct {
	BaseURL     string `yaml:"base_url"`
	APIVersion  string `yaml:"api_version"`
	DeviceID    string `yaml:"device_id"`
	SessionUUID string `yaml:"session_uuid"`
	AuthKey     string `yaml:"auth_key"`
	Cookies     string `yaml:"cookies"`
	Referer     string `yaml:"referer"`
	UserAgent   string `yaml:"user_agent"`

	Timeout           Duration `yaml:"timeout"`
	MaxAttempts       int      `yaml:"max_attempts"`
	RetryBackoff      Duration `yaml:"retry_backoff"`
	RetryBackoffMax   Duration `yaml:"retry_backoff_max"`
	RateLimitCooldown Duration `yaml:"rate_limit_cooldown"`
	PageDelay         Duration `yaml:"page_delay"`
	TaskDelay         Duration `yaml:"task_delay"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	MaxPages          int      `yaml:"max_pages"`
	MaxSkippedPages   int      `yaml:"max_skipped_pages"`

	OutputFile         string `yaml:"output_file"`
	OutputFormat       string `yaml:"output_format"` // csv, json, dual, sqlite or postgres
	PostgresDSN        string `yaml:"postgres_dsn"`
	ExportWorkers      int    `yaml:"export_workers"`
	BatchSize          int    `yaml:"batch_size"`
	PipelineBufferSize int    `yaml:"pipeline_buffer_size"`
	Dedupe             bool   `yaml:"dedupe"`
	DedupeMaxSize      int    `yaml:"dedupe_max_size"`

	MetricsAddr string `yaml:"metrics_addr"`
	Verbose     bool   `yaml:"verbose"`
}

// DefaultConfig returns the endpoint's known-good defaults. Session
// credentials are left empty and must be supplied by the caller.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://blinkit.com",
		APIVersion:        "v1",
		Referer:           "https://blinkit.com/cn/dairy-breakfast/paneer-tofu/cid/14/923",
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
		Timeout:           DurationFrom(30 * time.Second),
		MaxAttempts:       3,
		RetryBackoff:      DurationFrom(time.Second),
		RetryBackoffMax:   DurationFrom(30 * time.Second),
		RateLimitCooldown: DurationFrom(5 * time.Second),
		PageDelay:         DurationFrom(time.Second),
		TaskDelay:         DurationFrom(2 * time.Second),
		MaxSkippedPages:   5,

		OutputFile:         "output.csv",
		OutputFormat:       "csv",
		ExportWorkers:      1,
		BatchSize:          64,
		PipelineBufferSize: 512,
		DedupeMaxSize:      100000,
	}
}

// LoadFile overlays a YAML document onto cfg. Keys absent from the file keep
// their current values.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// EnsureDeviceID fills in a random device identifier when none is configured.
func (c *Config) EnsureDeviceID() {
	if strings.TrimSpace(c.DeviceID) == "" {
		c.DeviceID = uuid.NewString()
	}
}

// ListingURL is the absolute listing-widgets endpoint.
func (c *Config) ListingURL() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + c.APIVersion + "/layout/listing_widgets"
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if c.APIVersion == "" {
		return fmt.Errorf("api version cannot be empty")
	}
	if c.DeviceID == "" {
		return fmt.Errorf("device id cannot be empty")
	}
	if c.SessionUUID == "" {
		return fmt.Errorf("session uuid cannot be empty")
	}
	if c.AuthKey == "" {
		return fmt.Errorf("auth key cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	if c.Timeout.Duration <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.RetryBackoff.Duration < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax.Duration < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax.Duration > 0 && c.RetryBackoff.Duration > c.RetryBackoffMax.Duration {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.RateLimitCooldown.Duration < 0 {
		return fmt.Errorf("rate limit cooldown cannot be negative")
	}
	if c.PageDelay.Duration < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.TaskDelay.Duration < 0 {
		return fmt.Errorf("task delay cannot be negative")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests per minute cannot be negative")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.MaxSkippedPages < 0 {
		return fmt.Errorf("max skipped pages cannot be negative")
	}

	switch c.OutputFormat {
	case "csv", "json", "dual", "sqlite":
		if c.OutputFile == "" {
			return fmt.Errorf("output file cannot be empty")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres dsn cannot be empty for postgres output")
		}
	default:
		return fmt.Errorf("output format must be csv, json, dual, sqlite, or postgres")
	}
	if c.ExportWorkers <= 0 {
		return fmt.Errorf("export workers must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.Dedupe && c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive when dedupe is enabled")
	}

	return nil
}
