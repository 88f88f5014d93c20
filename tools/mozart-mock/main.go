// mozart-mock is a standalone stand-in for the Mozart job submission API,
// for local testing of querytrigger. It accepts the form-encoded submit
// request, records it, and answers {"success": true, "result": <job id>}.
//
// Endpoints:
//
//	POST /api/v0.1/job/submit   accept a submission
//	GET  /stats                 submissions received since start/reset
//	GET  /health                liveness
//	POST /reset                 clear recorded submissions
//
// Set FAIL_MODE=status to answer 500, FAIL_MODE=reject to answer
// {"success": false} with HTTP 200, for exercising the error paths.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

type submission struct {
	Timestamp string `json:"timestamp"`
	Queue     string `json:"queue"`
	Priority  string `json:"priority"`
	Tags      string `json:"tags"`
	Type      string `json:"type"`
	Params    string `json:"params"`
	Name      string `json:"name"`
	DedupRaw  string `json:"enable_dedup"`
}

type stats struct {
	Count           int64        `json:"count"`
	LastSubmissions []submission `json:"last_submissions"`
	Since           string       `json:"since"`
}

var (
	mu              sync.Mutex
	count           int64
	lastSubmissions []submission
	since           time.Time
	maxStored       = 50
)

func main() {
	since = time.Now().UTC()

	addr := ":8443"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/api/v0.1/job/submit", submitHandler)
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		count = 0
		lastSubmissions = nil
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	log.Printf("mozart-mock listening on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal(err)
	}
}

func submitHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintln(w, "bad form body")
		return
	}

	switch os.Getenv("FAIL_MODE") {
	case "status":
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintln(w, "simulated server error")
		return
	case "reject":
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "simulated rejection",
		})
		return
	}

	sub := submission{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Queue:     r.PostFormValue("queue"),
		Priority:  r.PostFormValue("priority"),
		Tags:      r.PostFormValue("tags"),
		Type:      r.PostFormValue("type"),
		Params:    r.PostFormValue("params"),
		Name:      r.PostFormValue("name"),
		DedupRaw:  r.URL.Query().Get("enable_dedup"),
	}

	mu.Lock()
	count++
	jobID := fmt.Sprintf("mock-job-%d", count)
	lastSubmissions = append(lastSubmissions, sub)
	if len(lastSubmissions) > maxStored {
		lastSubmissions = lastSubmissions[len(lastSubmissions)-maxStored:]
	}
	mu.Unlock()

	log.Printf("accepted %s as %s (queue=%s)", sub.Name, jobID, sub.Queue)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  jobID,
	})
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{
		Count:           count,
		LastSubmissions: append([]submission(nil), lastSubmissions...),
		Since:           since.Format(time.RFC3339),
	}
	mu.Unlock()
	writeJSON(w, http.StatusOK, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}
