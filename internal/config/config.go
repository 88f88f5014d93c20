package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the querytrigger application.
// Values are loaded from environment variables once at startup and passed
// explicitly into every component; nothing reads the environment after Load().
// See printUsage() in cmd/querytrigger for the full variable list.
type Config struct {
	// Job service (all required).
	MozartURL        string `json:"mozart_url"`
	MinutesStr       string `json:"minutes"`
	WindowMinutes    int    `json:"-"`
	JobType          string `json:"job_type"`
	JobRelease       string `json:"job_release"`
	JobQueue         string `json:"job_queue"`
	Endpoint         string `json:"endpoint"`
	DownloadJobQueue string `json:"download_job_queue"`
	ChunkSize        string `json:"chunk_size"`

	// Required strict booleans. Raw strings are kept so Validate() can report
	// the offending token; parsed values are only meaningful when valid.
	SmokeRunStr           string `json:"smoke_run"`
	SmokeRun              bool   `json:"-"`
	DryRunStr             string `json:"dry_run"`
	DryRun                bool   `json:"-"`
	NoScheduleDownloadStr string `json:"no_schedule_download"`
	NoScheduleDownload    bool   `json:"-"`
	UseTemporalStr        string `json:"use_temporal"`
	UseTemporal           bool   `json:"-"`

	// Optional window inputs. The margin is deliberately lenient: a value
	// that fails to parse as an integer selects the literal fallback instead
	// of failing the invocation.
	BoundingBox             string `json:"bounding_box,omitempty"`
	TemporalStartMarginDays string `json:"temporal_start_datetime_margin_days,omitempty"`
	TemporalStartDateTime   string `json:"temporal_start_datetime,omitempty"`

	// Service settings (optional, defaulted).
	HTTPAddr string `json:"http_addr"`

	SubmitTimeout    time.Duration `json:"-"`
	SubmitTimeoutStr string        `json:"submit_timeout"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	// TriggerSchedule: cron expression for the local timed trigger.
	// Empty disables it; events then arrive only via the HTTP endpoint.
	TriggerSchedule string `json:"trigger_schedule,omitempty"`
	TriggerTimezone string `json:"trigger_timezone"`

	EventBufferSize int `json:"event_buffer_size"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`

	RedisAddr string `json:"redis_addr,omitempty"`
}

// Load reads configuration from environment variables with defaults for the
// service settings. Required job-service values are NOT defaulted; Validate()
// reports them.
func Load() Config {
	cfg := Config{
		MozartURL:        os.Getenv("MOZART_URL"),
		MinutesStr:       os.Getenv("MINUTES"),
		JobType:          os.Getenv("JOB_TYPE"),
		JobRelease:       os.Getenv("JOB_RELEASE"),
		JobQueue:         os.Getenv("JOB_QUEUE"),
		Endpoint:         os.Getenv("ENDPOINT"),
		DownloadJobQueue: os.Getenv("DOWNLOAD_JOB_QUEUE"),
		ChunkSize:        os.Getenv("CHUNK_SIZE"),

		SmokeRunStr:           os.Getenv("SMOKE_RUN"),
		DryRunStr:             os.Getenv("DRY_RUN"),
		NoScheduleDownloadStr: os.Getenv("NO_SCHEDULE_DOWNLOAD"),
		UseTemporalStr:        os.Getenv("USE_TEMPORAL"),

		BoundingBox:             os.Getenv("BOUNDING_BOX"),
		TemporalStartMarginDays: os.Getenv("TEMPORAL_START_DATETIME_MARGIN_DAYS"),
		TemporalStartDateTime:   os.Getenv("TEMPORAL_START_DATETIME"),

		HTTPAddr:               os.Getenv("HTTP_ADDR"),
		SubmitTimeoutStr:       os.Getenv("SUBMIT_TIMEOUT"),
		HTTPShutdownTimeoutStr: os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		TriggerSchedule:        os.Getenv("TRIGGER_SCHEDULE"),
		TriggerTimezone:        os.Getenv("TRIGGER_TIMEZONE"),
		MetricsEnabled:         os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:            os.Getenv("METRICS_PATH"),
		MetricsPort:            os.Getenv("METRICS_PORT"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
	}

	if m, err := ExtractMinutes(cfg.MinutesStr); err == nil {
		cfg.WindowMinutes = m
	}

	if b, err := ParseBool(cfg.SmokeRunStr); err == nil {
		cfg.SmokeRun = b
	}
	if b, err := ParseBool(cfg.DryRunStr); err == nil {
		cfg.DryRun = b
	}
	if b, err := ParseBool(cfg.NoScheduleDownloadStr); err == nil {
		cfg.NoScheduleDownload = b
	}
	if b, err := ParseBool(cfg.UseTemporalStr); err == nil {
		cfg.UseTemporal = b
	}

	if bufStr := os.Getenv("EVENT_BUFFER_SIZE"); bufStr != "" {
		if n, err := strconv.Atoi(bufStr); err == nil && n > 0 {
			cfg.EventBufferSize = n
		}
	}
	if cfg.EventBufferSize == 0 {
		cfg.EventBufferSize = 16
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.SubmitTimeoutStr == "" {
		cfg.SubmitTimeoutStr = "30s"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.TriggerTimezone == "" {
		cfg.TriggerTimezone = "UTC"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.SubmitTimeoutStr); err == nil {
		cfg.SubmitTimeout = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}

	return cfg
}

var digitsRe = regexp.MustCompile(`\d+`)

// ExtractMinutes pulls the first run of digits out of the MINUTES value, so
// both "5" and "rate(5 minutes)" work. No digits at all is an error.
func ExtractMinutes(s string) (int, error) {
	m := digitsRe.FindString(s)
	if m == "" {
		return 0, fmt.Errorf("no digits in %q", s)
	}
	return strconv.Atoi(m)
}

// ParseBool parses the boolean tokens the job configuration has always
// accepted: y/yes/t/true/on/1 and n/no/f/false/off/0, case-insensitive.
// Anything else is an error; callers must not default it away.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "t", "true", "on", "1":
		return true, nil
	case "n", "no", "f", "false", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value %q", s)
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := c
	masked.MozartURL = maskSecret(c.MozartURL)
	masked.RedisAddr = maskSecret(c.RedisAddr)
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a value that may embed credentials, preserving only the
// URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"https://", "http://", "redis://"} {
		if strings.HasPrefix(s, scheme) {
			return scheme + "***"
		}
	}
	return "***"
}
