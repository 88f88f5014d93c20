package main

import (
	"log"

	"github.com/djlord-it/query-trigger/internal/config"
)

// logConfigWarnings flags configuration combinations that are valid but
// probably not what the operator intended in serve mode.
func logConfigWarnings(cfg config.Config) {
	if cfg.DryRun {
		log.Println("querytrigger: WARNING - DRY_RUN is enabled; submitted jobs will not schedule downloads")
	}
	if cfg.SmokeRun {
		log.Println("querytrigger: WARNING - SMOKE_RUN is enabled; submitted jobs run in smoke-test mode")
	}
	if cfg.UseTemporal && cfg.TemporalStartMarginDays == "" && cfg.TemporalStartDateTime == "" {
		log.Println("querytrigger: WARNING - USE_TEMPORAL is enabled but neither TEMPORAL_START_DATETIME_MARGIN_DAYS nor TEMPORAL_START_DATETIME is set; jobs will carry no temporal start")
	}
	if !cfg.UseTemporal && (cfg.TemporalStartMarginDays != "" || cfg.TemporalStartDateTime != "") {
		log.Println("querytrigger: WARNING - temporal start configured but USE_TEMPORAL is disabled")
	}
	if cfg.TriggerSchedule == "" && !cfg.MetricsEnabled {
		log.Println("querytrigger: WARNING - no local schedule and no metrics; missed external triggers will be invisible")
	}
}
