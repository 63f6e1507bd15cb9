package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bus metrics. DeadLettered dipantau paling serius: event finansial
// (PROCESS_REFUND, PAYMENT_*) yang nyangkut di DLQ harus ke-alert.
var (
	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_events_consumed_total",
		Help: "Events consumed per queue/event, by result (ok|error|dropped).",
	}, []string{"queue", "event", "result"})

	EventRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_event_retries_total",
		Help: "In-process handler retries per queue/event.",
	}, []string{"queue", "event"})

	DeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_events_dead_lettered_total",
		Help: "Events moved to the dead-letter queue after retries ran out.",
	}, []string{"queue", "event"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_events_published_total",
		Help: "Events published per queue/event.",
	}, []string{"queue", "event"})

	HandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "saga_handler_duration_seconds",
		Help:    "Handler execution time per queue/event.",
		Buckets: prometheus.DefBuckets,
	}, []string{"queue", "event"})
)
