// Package scheduler fires trigger events on a local cron schedule. It is the
// in-process stand-in for an external timed-trigger service: deployments that
// already have one simply leave TRIGGER_SCHEDULE unset and POST events to the
// HTTP endpoint instead.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/djlord-it/query-trigger/internal/domain"
)

// eventSource marks locally scheduled events, mirroring the source field an
// EventBridge rule would carry.
const eventSource = "querytrigger.schedule"

type EventEmitter interface {
	Emit(ctx context.Context, event domain.TriggerEvent) error
}

type Config struct {
	Expression string
	Timezone   string
}

type Scheduler struct {
	schedule cron.Schedule
	loc      *time.Location
	emitter  EventEmitter
	clock    func() time.Time
}

// New parses the cron expression (standard 5-field form) in the given
// timezone and returns a scheduler that emits one trigger event per fire.
func New(config Config, emitter EventEmitter) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(config.Expression)
	if err != nil {
		return nil, fmt.Errorf("parse cron: %w", err)
	}

	tz := config.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	return &Scheduler{
		schedule: sched,
		loc:      loc,
		emitter:  emitter,
		clock:    time.Now,
	}, nil
}

// WithClock overrides the wall clock, for tests.
func (s *Scheduler) WithClock(clock func() time.Time) *Scheduler {
	s.clock = clock
	return s
}

// Next returns the next fire time after the given instant.
func (s *Scheduler) Next(after time.Time) time.Time {
	return s.schedule.Next(after.In(s.loc))
}

// Run emits a trigger event at each scheduled fire until the context is
// cancelled. The event time is the scheduled fire instant (UTC), so the query
// window stays aligned to the schedule even when the process wakes up late.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("scheduler: started, next fire at %s", s.Next(s.clock()).UTC().Format(time.RFC3339))

	for {
		now := s.clock()
		next := s.Next(now)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("scheduler: stopped")
			return ctx.Err()
		case <-timer.C:
		}

		event := domain.TriggerEvent{
			ID:         uuid.New(),
			Source:     eventSource,
			DetailType: "Scheduled Event",
			Time:       next.UTC(),
			ReceivedAt: s.clock().UTC(),
		}

		if err := s.emitter.Emit(ctx, event); err != nil {
			log.Printf("scheduler: emit error: %v", err)
			continue
		}
		log.Printf("scheduler: fired event=%s time=%s", event.ID, event.Time.Format(time.RFC3339))
	}
}
