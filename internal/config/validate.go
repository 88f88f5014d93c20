package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// requiredStrings maps environment variable names to their loaded values.
// None of these are defaulted; an empty value aborts before any network call.
func requiredStrings(cfg Config) []struct{ field, value string } {
	return []struct{ field, value string }{
		{"MOZART_URL", cfg.MozartURL},
		{"MINUTES", cfg.MinutesStr},
		{"JOB_TYPE", cfg.JobType},
		{"JOB_RELEASE", cfg.JobRelease},
		{"JOB_QUEUE", cfg.JobQueue},
		{"ENDPOINT", cfg.Endpoint},
		{"DOWNLOAD_JOB_QUEUE", cfg.DownloadJobQueue},
		{"CHUNK_SIZE", cfg.ChunkSize},
	}
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	for _, req := range requiredStrings(cfg) {
		if req.value == "" {
			errs = append(errs, ValidationError{Field: req.field, Message: "required"})
		}
	}

	if cfg.MozartURL != "" {
		if u, err := url.Parse(cfg.MozartURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "MOZART_URL",
				Message: fmt.Sprintf("must be an absolute URL, got %q", cfg.MozartURL),
			})
		}
	}

	if cfg.MinutesStr != "" {
		if _, err := ExtractMinutes(cfg.MinutesStr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "MINUTES",
				Message: fmt.Sprintf("must contain a window length in minutes, got %q", cfg.MinutesStr),
			})
		}
	}

	// The four flags use strict boolean parsing: malformed values fail the
	// invocation rather than silently defaulting.
	for _, b := range []struct{ field, value string }{
		{"SMOKE_RUN", cfg.SmokeRunStr},
		{"DRY_RUN", cfg.DryRunStr},
		{"NO_SCHEDULE_DOWNLOAD", cfg.NoScheduleDownloadStr},
		{"USE_TEMPORAL", cfg.UseTemporalStr},
	} {
		if _, err := ParseBool(b.value); err != nil {
			errs = append(errs, ValidationError{
				Field:   b.field,
				Message: fmt.Sprintf("invalid boolean: %q", b.value),
			})
		}
	}

	if cfg.SubmitTimeoutStr != "" {
		d, err := time.ParseDuration(cfg.SubmitTimeoutStr)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "SUBMIT_TIMEOUT",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   "SUBMIT_TIMEOUT",
				Message: "must be positive",
			})
		}
	}

	if cfg.TriggerSchedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(cfg.TriggerSchedule); err != nil {
			errs = append(errs, ValidationError{
				Field:   "TRIGGER_SCHEDULE",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
		if _, err := time.LoadLocation(cfg.TriggerTimezone); err != nil {
			errs = append(errs, ValidationError{
				Field:   "TRIGGER_TIMEZONE",
				Message: fmt.Sprintf("invalid timezone: %v", err),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
