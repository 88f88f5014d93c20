package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	triggersFiredTotal *prometheus.CounterVec

	invocationsTotal    *prometheus.CounterVec
	invocationDuration  prometheus.Histogram
	submitAttemptsTotal *prometheus.CounterVec
	submitDuration      prometheus.Histogram
	invocationsInFlight prometheus.Gauge
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// Metrics that fail to register become dead collectors; the sink stays usable.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}

	s.triggersFiredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "querytrigger_triggers_fired_total",
		Help: "Total number of trigger events received, by source.",
	}, []string{"source"})

	s.invocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "querytrigger_invocations_total",
		Help: "Total number of completed invocations, by outcome.",
	}, []string{"outcome"})

	s.invocationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "querytrigger_invocation_duration_seconds",
		Help:    "End-to-end invocation duration in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.submitAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "querytrigger_submit_attempts_total",
		Help: "Total number of job submission attempts, by status class.",
	}, []string{"status_class"})

	s.submitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "querytrigger_submit_duration_seconds",
		Help:    "Job submission request latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.invocationsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "querytrigger_invocations_in_flight",
		Help: "Number of invocations currently being processed.",
	})

	s.register(reg, s.triggersFiredTotal, "querytrigger_triggers_fired_total")
	s.register(reg, s.invocationsTotal, "querytrigger_invocations_total")
	s.register(reg, s.invocationDuration, "querytrigger_invocation_duration_seconds")
	s.register(reg, s.submitAttemptsTotal, "querytrigger_submit_attempts_total")
	s.register(reg, s.submitDuration, "querytrigger_submit_duration_seconds")
	s.register(reg, s.invocationsInFlight, "querytrigger_invocations_in_flight")

	return s
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) TriggerFired(source string) {
	if source == "" {
		source = "unknown"
	}
	s.triggersFiredTotal.WithLabelValues(source).Inc()
}

func (s *PrometheusSink) InvocationCompleted(outcome string, duration time.Duration) {
	s.invocationsTotal.WithLabelValues(outcome).Inc()
	s.invocationDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) SubmitCompleted(statusClass string, duration time.Duration) {
	s.submitAttemptsTotal.WithLabelValues(statusClass).Inc()
	s.submitDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) InvocationsInFlightIncr() {
	s.invocationsInFlight.Inc()
}

func (s *PrometheusSink) InvocationsInFlightDecr() {
	s.invocationsInFlight.Dec()
}
