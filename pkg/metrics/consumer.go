package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Consumer outcomes recorded per handled message.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeSkipped   = "skipped"
	OutcomeMalformed = "malformed"
	OutcomeRetried   = "retried"
)

// ConsumerMetrics tracks the Pub/Sub update consumers.
type ConsumerMetrics struct {
	messages *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewConsumerMetrics(reg prometheus.Registerer) *ConsumerMetrics {
	if reg == nil {
		return &ConsumerMetrics{}
	}
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "consumer",
		Name:      "messages_total",
		Help:      "Messages handled by update consumers, by outcome.",
	}, []string{"consumer", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "consumer",
		Name:      "handle_duration_seconds",
		Help:      "Time spent handling one message.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"consumer"})
	reg.MustRegister(messages, duration)
	return &ConsumerMetrics{messages: messages, duration: duration}
}

// Observe records one handled message.
func (m *ConsumerMetrics) Observe(consumer, outcome string, took time.Duration) {
	if m == nil || m.messages == nil {
		return
	}
	consumer = normalizeLabel(consumer)
	m.messages.WithLabelValues(consumer, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(consumer).Observe(took.Seconds())
}
