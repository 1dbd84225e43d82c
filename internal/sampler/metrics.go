package sampler

import "github.com/prometheus/client_golang/prometheus"

var (
	tickCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "focusforge",
		Subsystem: "sampler",
		Name:      "ticks_total",
		Help:      "Sampling ticks grouped by outcome.",
	}, []string{"outcome"})

	bufferedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "focusforge",
		Subsystem: "sampler",
		Name:      "buffered_activities",
		Help:      "Activities retained in the dedup buffer after the last tick.",
	})
)

func init() {
	prometheus.MustRegister(tickCounter, bufferedGauge)
}

func recordTick(outcome Outcome, buffered int) {
	tickCounter.WithLabelValues(string(outcome)).Inc()
	bufferedGauge.Set(float64(buffered))
}
