package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate
// errors. If the metrics backend is unavailable, implementations log warnings
// and continue.
type Sink interface {
	// Trigger metrics
	TriggerFired(source string)

	// Invocation metrics
	InvocationCompleted(outcome string, duration time.Duration)
	SubmitCompleted(statusClass string, duration time.Duration)
	InvocationsInFlightIncr()
	InvocationsInFlightDecr()
}

// Outcome constants for InvocationCompleted.
const (
	OutcomeSubmitted = "submitted"
	OutcomeFailed    = "failed"
)
