// Package window derives the query time window and job parameters for one
// invocation. Compute is a pure function of the trigger event and the loaded
// configuration; the only side effect is a log line when the temporal-start
// margin falls back to the literal value.
package window

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/djlord-it/query-trigger/internal/config"
	"github.com/djlord-it/query-trigger/internal/domain"
)

// Compute builds the job parameter set from the event timestamp and
// configuration. query_end is the event time; query_start is query_end minus
// the configured window length in minutes.
func Compute(event domain.TriggerEvent, cfg config.Config) (domain.JobParameters, error) {
	if event.Time.IsZero() {
		return domain.JobParameters{}, fmt.Errorf("trigger event has no timestamp")
	}

	queryEnd := event.Time.UTC()
	queryStart := queryEnd.Add(-time.Duration(cfg.WindowMinutes) * time.Minute)

	temporalStart := temporalStartDateTime(queryEnd, cfg)

	params := domain.JobParameters{
		StartDateTime:      "--start-date=" + queryStart.Format(domain.DateTimeFormat),
		EndDateTime:        "--end-date=" + queryEnd.Format(domain.DateTimeFormat),
		Endpoint:           "--endpoint=" + cfg.Endpoint,
		DownloadJobRelease: "--release-version=" + cfg.JobRelease,
		DownloadJobQueue:   "--job-queue=" + cfg.DownloadJobQueue,
		ChunkSize:          "--chunk-size=" + cfg.ChunkSize,
		SmokeRun:           flagToken("--smoke-run", cfg.SmokeRun),
		DryRun:             flagToken("--dry-run", cfg.DryRun),
		NoScheduleDownload: flagToken("--no-schedule-download", cfg.NoScheduleDownload),
		UseTemporal:        flagToken("--use-temporal", cfg.UseTemporal),
	}
	if temporalStart != "" {
		params.TemporalStartDateTime = "--temporal-start-date=" + temporalStart
	}
	if cfg.BoundingBox != "" {
		params.BoundingBox = "--bounds=" + cfg.BoundingBox
	}

	return params, nil
}

// temporalStartDateTime subtracts the configured margin in whole days from
// queryEnd. A margin that is absent or not an integer selects the literal
// TEMPORAL_START_DATETIME fallback instead; that is policy, not an error.
func temporalStartDateTime(queryEnd time.Time, cfg config.Config) string {
	days, err := strconv.Atoi(cfg.TemporalStartMarginDays)
	if err != nil {
		log.Printf("window: TEMPORAL_START_DATETIME_MARGIN_DAYS=%q is not an integer, falling back to TEMPORAL_START_DATETIME=%q",
			cfg.TemporalStartMarginDays, cfg.TemporalStartDateTime)
		return cfg.TemporalStartDateTime
	}
	return queryEnd.AddDate(0, 0, -days).Format(domain.DateTimeFormat)
}

func flagToken(token string, enabled bool) string {
	if enabled {
		return token
	}
	return ""
}
