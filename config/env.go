package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvString returns a trimmed, non-empty environment value.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses an integer environment value.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration parses a Go duration environment value ("750ms", "5s").
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// LoadDotEnv loads a .env file into the process environment. A missing file
// is not an error; variables already set win over the file.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. Session credentials also
// honour the bare DEVICE_ID, SESSION_UUID and AUTH_KEY names.
func ApplyEnv(cfg *Config) error {
	strs := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"HARVEST_BASE_URL"}, &cfg.BaseURL},
		{[]string{"HARVEST_API_VERSION"}, &cfg.APIVersion},
		{[]string{"HARVEST_DEVICE_ID", "DEVICE_ID"}, &cfg.DeviceID},
		{[]string{"HARVEST_SESSION_UUID", "SESSION_UUID"}, &cfg.SessionUUID},
		{[]string{"HARVEST_AUTH_KEY", "AUTH_KEY"}, &cfg.AuthKey},
		{[]string{"HARVEST_COOKIES"}, &cfg.Cookies},
		{[]string{"HARVEST_OUTPUT"}, &cfg.OutputFile},
		{[]string{"HARVEST_FORMAT"}, &cfg.OutputFormat},
		{[]string{"HARVEST_POSTGRES_DSN"}, &cfg.PostgresDSN},
		{[]string{"HARVEST_METRICS_ADDR"}, &cfg.MetricsAddr},
	}
	for _, s := range strs {
		for _, key := range s.keys {
			if value, ok := EnvString(key); ok {
				*s.dst = value
				break
			}
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"HARVEST_MAX_ATTEMPTS", &cfg.MaxAttempts},
		{"HARVEST_MAX_PAGES", &cfg.MaxPages},
		{"HARVEST_REQUESTS_PER_MINUTE", &cfg.RequestsPerMinute},
		{"HARVEST_MAX_SKIPPED_PAGES", &cfg.MaxSkippedPages},
	}
	for _, i := range ints {
		value, ok, err := EnvInt(i.key)
		if err != nil {
			return err
		}
		if ok {
			*i.dst = value
		}
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{"HARVEST_TIMEOUT", &cfg.Timeout},
		{"HARVEST_PAGE_DELAY", &cfg.PageDelay},
		{"HARVEST_TASK_DELAY", &cfg.TaskDelay},
		{"HARVEST_COOLDOWN", &cfg.RateLimitCooldown},
		{"HARVEST_RETRY_BACKOFF", &cfg.RetryBackoff},
		{"HARVEST_RETRY_BACKOFF_MAX", &cfg.RetryBackoffMax},
	}
	for _, d := range durations {
		value, ok, err := EnvDuration(d.key)
		if err != nil {
			return err
		}
		if ok {
			*d.dst = DurationFrom(value)
		}
	}
	return nil
}
