package outbox

import "github.com/prometheus/client_golang/prometheus"

// Lifecycle stages of an outbox event, used as the "stage" label.
const (
	stageDelivered      = "delivered"
	stageFailed         = "failed"
	stageDeadLettered   = "dead_lettered"
	stageRequeued       = "requeued"
	stageRetryScheduled = "retry_scheduled"
	stageQuarantined    = "quarantined"
)

var (
	eventsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "focusforge",
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox events by lifecycle stage and topic.",
	}, []string{"stage", "topic"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "focusforge",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent delivering and marking one claimed outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "focusforge",
		Subsystem: "outbox",
		Name:      "dlq_backlog",
		Help:      "Dead-lettered events awaiting replay.",
	})
)

func init() {
	prometheus.MustRegister(eventsCounter, batchDuration, dlqBacklogGauge)
}

func countStage(stage string, messages ...Message) {
	for _, msg := range messages {
		countTopic(stage, msg.Topic)
	}
}

func countTopic(stage, topic string) {
	eventsCounter.WithLabelValues(stage, topic).Inc()
}
