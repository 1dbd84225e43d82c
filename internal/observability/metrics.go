// Package observability holds the Prometheus collectors shared by the API components.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "focusforge"

var (
	classificationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "classify",
		Name:      "requests_total",
		Help:      "Classification requests grouped by decision source and outcome.",
	}, []string{"source", "outcome"})

	subClassifierFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "classify",
		Name:      "subclassifier_failures_total",
		Help:      "Sub-classifier calls excluded from fusion after retries, by kind.",
	}, []string{"kind"})

	recordCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "aggregate",
		Name:      "writes_total",
		Help:      "Activity increments applied to day aggregates, by label.",
	}, []string{"label"})

	recordedSeconds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "aggregate",
		Name:      "recorded_seconds_total",
		Help:      "Seconds of tracked time folded into day aggregates, by label.",
	}, []string{"label"})

	activityRecordedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "aggregate",
		Name:      "last_activity_recorded_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity folded into a day aggregate.",
	})
)

func init() {
	prometheus.MustRegister(classificationCounter, subClassifierFailures, recordCounter, recordedSeconds, activityRecordedGauge)
}

// RecordClassification counts a fused decision. source is text, image or rule; outcome is a label or an error code.
func RecordClassification(source, outcome string) {
	classificationCounter.WithLabelValues(source, outcome).Inc()
}

// RecordSubClassifierFailure counts a sub-classifier dropped from fusion.
func RecordSubClassifierFailure(kind string) {
	subClassifierFailures.WithLabelValues(kind).Inc()
}

// RecordActivity updates the aggregation counters and the watermark gauge.
func RecordActivity(ts time.Time, productive bool, seconds int64) {
	label := "unproductive"
	if productive {
		label = "productive"
	}
	recordCounter.WithLabelValues(label).Inc()
	recordedSeconds.WithLabelValues(label).Add(float64(seconds))
	if ts.IsZero() {
		return
	}
	activityRecordedGauge.Set(float64(ts.Unix()))
}
