package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TriggerFired(source string)                                 {}
func (n *NoopSink) InvocationCompleted(outcome string, duration time.Duration) {}
func (n *NoopSink) SubmitCompleted(statusClass string, duration time.Duration) {}
func (n *NoopSink) InvocationsInFlightIncr()                                   {}
func (n *NoopSink) InvocationsInFlightDecr()                                   {}
