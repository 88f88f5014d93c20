package submitter

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/djlord-it/query-trigger/internal/domain"
	"github.com/djlord-it/query-trigger/internal/testutil"
)

func testRequest() domain.JobRequest {
	return domain.JobRequest{
		Queue: "factotum-job_worker-small",
		Tags:  []string{"data-subscriber-query-timer"},
		Type:  "job-data_subscriber_query:release-2.0",
		Params: domain.JobParameters{
			StartDateTime: "--start-date=2024-01-01T00:05:00Z",
			EndDateTime:   "--end-date=2024-01-01T00:10:00Z",
			Endpoint:      "--endpoint=OPS",
		},
		Name: "data-subscriber-query-timer-20240101T001000_5",
	}
}

func TestSubmit_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "result": "job-123"}`))
	}))
	defer server.Close()

	sub := New(server.URL, 5*time.Second)
	jobID, err := sub.Submit(testutil.TestContext(t), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobID != "job-123" {
		t.Errorf("jobID = %q, want job-123", jobID)
	}
}

func TestSubmit_RequestShape(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	var gotQuery url.Values
	var gotForm url.Values

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		gotContentType = r.Header.Get("Content-Type")
		r.ParseForm()
		gotForm = r.PostForm
		w.Write([]byte(`{"success": true, "result": "job-123"}`))
	}))
	defer server.Close()

	sub := New(server.URL, 5*time.Second)
	if _, err := sub.Submit(testutil.TestContext(t), testRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotPath != "/api/v0.1/job/submit" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery.Get("enable_dedup") != "false" {
		t.Errorf("enable_dedup = %q, want false", gotQuery.Get("enable_dedup"))
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", gotContentType)
	}

	if got := gotForm.Get("queue"); got != "factotum-job_worker-small" {
		t.Errorf("queue = %q", got)
	}
	if got := gotForm.Get("priority"); got != "0" {
		t.Errorf("priority = %q, want 0", got)
	}
	if got := gotForm.Get("type"); got != "job-data_subscriber_query:release-2.0" {
		t.Errorf("type = %q", got)
	}
	if got := gotForm.Get("name"); got != "data-subscriber-query-timer-20240101T001000_5" {
		t.Errorf("name = %q", got)
	}

	// tags and params are JSON-encoded strings inside the form body.
	var tags []string
	if err := json.Unmarshal([]byte(gotForm.Get("tags")), &tags); err != nil {
		t.Fatalf("tags is not JSON: %v", err)
	}
	if len(tags) != 1 || tags[0] != "data-subscriber-query-timer" {
		t.Errorf("tags = %v", tags)
	}

	rawParams := gotForm.Get("params")
	if !strings.HasPrefix(rawParams, `{"start_datetime"`) {
		t.Errorf("params key order changed: %s", rawParams)
	}
	var params map[string]string
	if err := json.Unmarshal([]byte(rawParams), &params); err != nil {
		t.Fatalf("params is not JSON: %v", err)
	}
	if params["end_datetime"] != "--end-date=2024-01-01T00:10:00Z" {
		t.Errorf("params.end_datetime = %q", params["end_datetime"])
	}
	// Unset flags travel as explicit empty strings.
	if v, ok := params["dry_run"]; !ok || v != "" {
		t.Errorf("params.dry_run = (%q, %v), want present and empty", v, ok)
	}
}

func TestSubmit_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	sub := New(server.URL, 5*time.Second)
	_, err := sub.Submit(testutil.TestContext(t), testRequest())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", statusErr.StatusCode)
	}
}

func TestSubmit_RejectedWithMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "message": "bad params"}`))
	}))
	defer server.Close()

	sub := New(server.URL, 5*time.Second)
	_, err := sub.Submit(testutil.TestContext(t), testRequest())

	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if !strings.Contains(subErr.Body, "bad params") {
		t.Errorf("error body should carry the message: %q", subErr.Body)
	}
}

func TestSubmit_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing success", `{"result": "job-123"}`},
		{"missing result", `{"success": true}`},
		{"success not bool", `{"success": "yes", "result": "job-123"}`},
		{"not json", `<html>gateway error</html>`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			sub := New(server.URL, 5*time.Second)
			_, err := sub.Submit(testutil.TestContext(t), testRequest())

			var subErr *SubmissionError
			if !errors.As(err, &subErr) {
				t.Fatalf("expected SubmissionError, got %v", err)
			}
		})
	}
}

func TestSubmit_AcceptsNon200SuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"success": true, "result": "job-456"}`))
	}))
	defer server.Close()

	sub := New(server.URL, 5*time.Second)
	jobID, err := sub.Submit(testutil.TestContext(t), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobID != "job-456" {
		t.Errorf("jobID = %q", jobID)
	}
}

func TestSubmit_ConnectionRefused(t *testing.T) {
	sub := New("http://127.0.0.1:1", 2*time.Second)
	_, err := sub.Submit(testutil.TestContext(t), testRequest())
	if err == nil {
		t.Fatal("expected error for unreachable service")
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound) // any response counts as reachable
	}))
	defer server.Close()

	sub := New(server.URL, 5*time.Second)
	if err := sub.Ping(testutil.TestContext(t)); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}

	down := New("http://127.0.0.1:1", 2*time.Second)
	if err := down.Ping(testutil.TestContext(t)); err == nil {
		t.Error("expected ping error for unreachable service")
	}
}
