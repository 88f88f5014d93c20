// Package invoker runs one trigger invocation end to end: window calculation,
// job request synthesis, submission. One JobRequest in, at most one JobResult
// out; a failure anywhere aborts the invocation with no local recovery.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/djlord-it/query-trigger/internal/config"
	"github.com/djlord-it/query-trigger/internal/domain"
	"github.com/djlord-it/query-trigger/internal/submitter"
	"github.com/djlord-it/query-trigger/internal/window"
)

// jobNamePrefix doubles as the single tag on every submitted job.
const jobNamePrefix = "data-subscriber-query-timer"

type JobSubmitter interface {
	Submit(ctx context.Context, req domain.JobRequest) (string, error)
}

// MetricsSink defines the interface for recording invocation metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	TriggerFired(source string)
	InvocationCompleted(outcome string, duration time.Duration)
	SubmitCompleted(statusClass string, duration time.Duration)
	InvocationsInFlightIncr()
	InvocationsInFlightDecr()
}

type AnalyticsSink interface {
	Record(ctx context.Context, outcome string, at time.Time)
}

type Invoker struct {
	cfg       config.Config
	submitter JobSubmitter
	metrics   MetricsSink   // optional, nil = disabled
	analytics AnalyticsSink // optional, nil = disabled
	now       func() time.Time
}

func New(cfg config.Config, submitter JobSubmitter) *Invoker {
	return &Invoker{
		cfg:       cfg,
		submitter: submitter,
		now:       time.Now,
	}
}

// WithMetrics attaches a metrics sink to the invoker.
func (i *Invoker) WithMetrics(sink MetricsSink) *Invoker {
	i.metrics = sink
	return i
}

func (i *Invoker) WithAnalytics(sink AnalyticsSink) *Invoker {
	i.analytics = sink
	return i
}

// WithClock overrides the wall clock used for job name generation.
func (i *Invoker) WithClock(now func() time.Time) *Invoker {
	i.now = now
	return i
}

// Invoke handles one trigger event and returns the job identifier assigned
// by the job service.
func (i *Invoker) Invoke(ctx context.Context, event domain.TriggerEvent) (string, error) {
	start := i.now()

	if i.metrics != nil {
		i.metrics.TriggerFired(event.Source)
		i.metrics.InvocationsInFlightIncr()
		defer i.metrics.InvocationsInFlightDecr()
	}

	log.Printf("invoker: event id=%s source=%q time=%s", event.ID, event.Source, event.Time.Format(time.RFC3339))

	params, err := window.Compute(event, i.cfg)
	if err != nil {
		i.finish(ctx, "failed", start)
		return "", fmt.Errorf("compute window: %w", err)
	}

	req := domain.JobRequest{
		Queue:  i.cfg.JobQueue,
		Tags:   []string{jobNamePrefix},
		Type:   fmt.Sprintf("job-%s:%s", i.cfg.JobType, i.cfg.JobRelease),
		Params: params,
		Name: fmt.Sprintf("%s-%s_%d", jobNamePrefix,
			start.UTC().Format(domain.JobNameDateTimeFormat), i.cfg.WindowMinutes),
	}

	submitStart := i.now()
	jobID, err := i.submitter.Submit(ctx, req)
	if i.metrics != nil {
		i.metrics.SubmitCompleted(classify(err), i.now().Sub(submitStart))
	}
	if err != nil {
		i.finish(ctx, "failed", start)
		return "", err
	}

	i.finish(ctx, "submitted", start)
	log.Printf("invoker: submitted job name=%s id=%s", req.Name, jobID)
	return jobID, nil
}

func (i *Invoker) finish(ctx context.Context, outcome string, start time.Time) {
	if i.metrics != nil {
		i.metrics.InvocationCompleted(outcome, i.now().Sub(start))
	}
	if i.analytics != nil {
		i.analytics.Record(ctx, outcome, start)
	}
}

// classify maps a submission error to a metrics status class with bounded
// cardinality: 2xx, 4xx, 5xx, rejected, timeout, connection_error, other_error.
func classify(err error) string {
	if err == nil {
		return "2xx"
	}

	var statusErr *submitter.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode >= 400 && statusErr.StatusCode < 500:
			return "4xx"
		case statusErr.StatusCode >= 500:
			return "5xx"
		default:
			return "other_error"
		}
	}

	var subErr *submitter.SubmissionError
	if errors.As(err, &subErr) {
		return "rejected"
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") || strings.Contains(errStr, "dial") {
		return "connection_error"
	}
	return "other_error"
}
