// Package submitter issues job-submission requests to the Mozart REST API.
package submitter

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/djlord-it/query-trigger/internal/domain"
)

// submitPath carries enable_dedup=false: deduplication of overlapping windows
// is the trigger infrastructure's responsibility, not the job service's.
const submitPath = "/api/v0.1/job/submit?enable_dedup=false"

// StatusError indicates the job service answered with a non-success HTTP
// status. No job was accepted.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("job submit returned status %d: %s", e.StatusCode, e.Body)
}

// SubmissionError indicates a well-formed HTTP exchange whose response did
// not acknowledge the job: success missing, success false, or result missing.
type SubmissionError struct {
	Body string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("job not submitted successfully: %s", e.Body)
}

// MozartSubmitter submits jobs over HTTP. The submit URL is built once at
// construction from the base service URL.
type MozartSubmitter struct {
	client    *http.Client
	baseURL   string
	submitURL string
}

// New creates a submitter for the given Mozart base URL. TLS certificate
// verification is disabled: the endpoint sits on an internal network and is
// trusted through other means. The timeout bounds the whole exchange; zero
// selects 30 seconds.
func New(baseURL string, timeout time.Duration) *MozartSubmitter {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &MozartSubmitter{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		submitURL: strings.TrimSuffix(baseURL, "/") + submitPath,
	}
}

// Ping checks that the job service base URL is reachable. Any HTTP response
// counts as reachable; only transport failures are reported.
func (s *MozartSubmitter) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Submit sends one job request and returns the job identifier the service
// assigned. No retry is attempted on any failure path.
func (s *MozartSubmitter) Submit(ctx context.Context, req domain.JobRequest) (string, error) {
	tags, err := json.Marshal(req.Tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	params, err := json.Marshal(req.Params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}

	form := url.Values{
		"queue":    {req.Queue},
		"priority": {strconv.Itoa(req.Priority)},
		"tags":     {string(tags)},
		"type":     {req.Type},
		"params":   {string(params)},
		"name":     {req.Name},
	}

	log.Printf("submitter: job url: %s", s.submitURL)
	log.Printf("submitter: job params: %s", form.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.submitURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	log.Printf("submitter: response code: %d", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	// The response must carry both keys and an explicit success=true; any
	// other shape is a failed submission with the raw body as diagnostics.
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &SubmissionError{Body: string(body)}
	}
	if _, ok := parsed["success"]; !ok {
		return "", &SubmissionError{Body: string(body)}
	}
	if _, ok := parsed["result"]; !ok {
		return "", &SubmissionError{Body: string(body)}
	}

	var result domain.JobResult
	if err := json.Unmarshal(body, &result); err != nil || !result.Success {
		return "", &SubmissionError{Body: string(body)}
	}

	log.Printf("submitter: submitted job %s: job_id=%s", req.Type, result.Result)
	return result.Result, nil
}
