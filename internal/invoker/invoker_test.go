package invoker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/djlord-it/query-trigger/internal/config"
	"github.com/djlord-it/query-trigger/internal/domain"
	"github.com/djlord-it/query-trigger/internal/submitter"
	"github.com/djlord-it/query-trigger/internal/testutil"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	requests []domain.JobRequest
	jobID    string
	err      error
}

func (f *fakeSubmitter) Submit(ctx context.Context, req domain.JobRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.jobID, nil
}

func (f *fakeSubmitter) last(t *testing.T) domain.JobRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no job request submitted")
	}
	return f.requests[len(f.requests)-1]
}

type fakeMetrics struct {
	mu            sync.Mutex
	fired         []string
	outcomes      []string
	statusClasses []string
	inFlight      int
}

func (f *fakeMetrics) TriggerFired(source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fired = append(f.fired, source)
}

func (f *fakeMetrics) InvocationCompleted(outcome string, duration time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

func (f *fakeMetrics) SubmitCompleted(statusClass string, duration time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusClasses = append(f.statusClasses, statusClass)
}

func (f *fakeMetrics) InvocationsInFlightIncr() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight++
}

func (f *fakeMetrics) InvocationsInFlightDecr() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
}

func testConfig() config.Config {
	return config.Config{
		MozartURL:        "https://mozart.example.com",
		WindowMinutes:    5,
		JobType:          "data_subscriber_query",
		JobRelease:       "release-2.0",
		JobQueue:         "factotum-job_worker-small",
		Endpoint:         "OPS",
		DownloadJobQueue: "factotum-job_worker-small",
		ChunkSize:        "1",
	}
}

func TestInvoke_SubmitsOneJob(t *testing.T) {
	sub := &fakeSubmitter{jobID: "job-123"}
	clock := testutil.NewFakeClock(time.Date(2024, 1, 1, 0, 10, 0, 0, time.UTC))

	inv := New(testConfig(), sub).WithClock(clock.Now)

	jobID, err := inv.Invoke(testutil.TestContext(t), testutil.Event(t, "2024-01-01T00:10:00Z"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobID != "job-123" {
		t.Errorf("jobID = %q, want job-123", jobID)
	}
	if len(sub.requests) != 1 {
		t.Fatalf("expected exactly one submission, got %d", len(sub.requests))
	}

	req := sub.last(t)
	if req.Queue != "factotum-job_worker-small" {
		t.Errorf("queue = %q", req.Queue)
	}
	if req.Priority != 0 {
		t.Errorf("priority = %d, want 0", req.Priority)
	}
	if req.Type != "job-data_subscriber_query:release-2.0" {
		t.Errorf("type = %q", req.Type)
	}
	if len(req.Tags) != 1 || req.Tags[0] != "data-subscriber-query-timer" {
		t.Errorf("tags = %v", req.Tags)
	}
	if req.Name != "data-subscriber-query-timer-20240101T001000_5" {
		t.Errorf("name = %q", req.Name)
	}
	if req.Params.StartDateTime != "--start-date=2024-01-01T00:05:00Z" {
		t.Errorf("start = %q", req.Params.StartDateTime)
	}
	if req.Params.EndDateTime != "--end-date=2024-01-01T00:10:00Z" {
		t.Errorf("end = %q", req.Params.EndDateTime)
	}
}

func TestInvoke_SubmitterErrorPropagates(t *testing.T) {
	sub := &fakeSubmitter{err: &submitter.StatusError{StatusCode: 500, Body: "boom"}}
	inv := New(testConfig(), sub)

	_, err := inv.Invoke(testutil.TestContext(t), testutil.Event(t, "2024-01-01T00:10:00Z"))
	if err == nil {
		t.Fatal("expected error")
	}

	var statusErr *submitter.StatusError
	if !errors.As(err, &statusErr) {
		t.Errorf("expected StatusError to propagate unchanged, got %v", err)
	}
}

func TestInvoke_NoSubmitOnBadEvent(t *testing.T) {
	sub := &fakeSubmitter{jobID: "job-123"}
	inv := New(testConfig(), sub)

	_, err := inv.Invoke(testutil.TestContext(t), domain.TriggerEvent{})
	if err == nil {
		t.Fatal("expected error for event without timestamp")
	}
	if !strings.Contains(err.Error(), "compute window") {
		t.Errorf("error = %q", err.Error())
	}
	if len(sub.requests) != 0 {
		t.Errorf("no network call should happen on a parse failure, got %d", len(sub.requests))
	}
}

func TestInvoke_Metrics(t *testing.T) {
	sub := &fakeSubmitter{jobID: "job-123"}
	sink := &fakeMetrics{}
	inv := New(testConfig(), sub).WithMetrics(sink)

	event := testutil.Event(t, "2024-01-01T00:10:00Z")
	if _, err := inv.Invoke(testutil.TestContext(t), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.fired) != 1 || sink.fired[0] != event.Source {
		t.Errorf("fired = %v", sink.fired)
	}
	if len(sink.outcomes) != 1 || sink.outcomes[0] != "submitted" {
		t.Errorf("outcomes = %v", sink.outcomes)
	}
	if len(sink.statusClasses) != 1 || sink.statusClasses[0] != "2xx" {
		t.Errorf("statusClasses = %v", sink.statusClasses)
	}
	if sink.inFlight != 0 {
		t.Errorf("inFlight = %d, want 0 after completion", sink.inFlight)
	}
}

func TestInvoke_FailureMetrics(t *testing.T) {
	sub := &fakeSubmitter{err: &submitter.SubmissionError{Body: `{"success": false}`}}
	sink := &fakeMetrics{}
	inv := New(testConfig(), sub).WithMetrics(sink)

	if _, err := inv.Invoke(testutil.TestContext(t), testutil.Event(t, "2024-01-01T00:10:00Z")); err == nil {
		t.Fatal("expected error")
	}

	if len(sink.outcomes) != 1 || sink.outcomes[0] != "failed" {
		t.Errorf("outcomes = %v", sink.outcomes)
	}
	if len(sink.statusClasses) != 1 || sink.statusClasses[0] != "rejected" {
		t.Errorf("statusClasses = %v", sink.statusClasses)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "2xx"},
		{"status 404", &submitter.StatusError{StatusCode: 404}, "4xx"},
		{"status 503", &submitter.StatusError{StatusCode: 503}, "5xx"},
		{"status 100", &submitter.StatusError{StatusCode: 100}, "other_error"},
		{"rejected", &submitter.SubmissionError{Body: "{}"}, "rejected"},
		{"timeout", errors.New("context deadline exceeded"), "timeout"},
		{"refused", errors.New("dial tcp 127.0.0.1:1: connection refused"), "connection_error"},
		{"other", errors.New("mystery"), "other_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
