// Package api exposes the inbound trigger endpoint. It accepts
// EventBridge-shaped events over HTTP and runs one invocation per event.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/djlord-it/query-trigger/internal/domain"
	"github.com/djlord-it/query-trigger/internal/submitter"
)

// maxEventBytes bounds the inbound event body. Scheduled events are tiny;
// anything larger is not a trigger event.
const maxEventBytes = 64 << 10

type Invoker interface {
	Invoke(ctx context.Context, event domain.TriggerEvent) (string, error)
}

// HealthChecker probes the job service for the verbose /health response.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	invoker Invoker
	probe   HealthChecker
	now     func() time.Time
}

func NewHandler(invoker Invoker) *Handler {
	return &Handler{invoker: invoker, now: time.Now}
}

// WithHealthChecker sets the job-service prober for verbose /health responses.
func (h *Handler) WithHealthChecker(probe HealthChecker) *Handler {
	h.probe = probe
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/trigger" && r.Method == http.MethodPost:
		h.trigger(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	event, err := domain.ParseTriggerEvent(body, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := h.invoker.Invoke(r.Context(), event)
	if err != nil {
		log.Printf("api: invocation failed for event=%s: %v", event.ID, err)
		writeError(w, invocationStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, TriggerResponse{JobID: jobID})
}

// invocationStatus maps invocation failures to response codes: upstream
// failures are 502, everything else (window math, marshalling) is 500.
func invocationStatus(err error) int {
	var statusErr *submitter.StatusError
	var subErr *submitter.SubmissionError
	if errors.As(err, &statusErr) || errors.As(err, &subErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.probe == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.probe.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["job_service"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["job_service"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
