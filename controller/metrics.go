package controller

import "github.com/prometheus/client_golang/prometheus"

const namespace = "drillforge"

var (
	sessionsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of sessions started, by preset",
		},
		[]string{"preset"},
	)

	sessionsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Total number of sessions reaching a terminal status",
		},
		[]string{"status"}, // completed, abandoned
	)

	dispatchRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_rejected_total",
			Help:      "Total number of rejected dispatch calls, by rejection code",
		},
		[]string{"code"},
	)

	phaseDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Histogram of time spent in each session phase",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		},
		[]string{"phase"},
	)

	nudgesUsed = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "nudges_used",
			Help:      "Histogram of nudges used per session reaching a terminal status (completed or abandoned)",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
		[]string{"preset"},
	)

	persistWriteSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "persist_write_seconds",
			Help:      "Duration of persistence writes triggered by the controller",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"}, // success, error
	)

	allMetrics = []prometheus.Collector{
		sessionsStartedTotal,
		sessionsFinishedTotal,
		dispatchRejectedTotal,
		phaseDurationSeconds,
		nudgesUsed,
		persistWriteSeconds,
	}
)

// MustRegister registers every controller metric with reg. Calling it more
// than once against the same registry panics, matching
// prometheus.MustRegister's own contract; callers that need idempotent
// registration should guard with their own sync.Once.
func MustRegister(reg prometheus.Registerer) {
	for _, m := range allMetrics {
		reg.MustRegister(m)
	}
}

func recordDispatchRejected(code string) {
	dispatchRejectedTotal.WithLabelValues(code).Inc()
}

func recordPhaseDuration(phase string, seconds float64) {
	if seconds < 0 {
		return
	}
	phaseDurationSeconds.WithLabelValues(phase).Observe(seconds)
}

func recordPersistWrite(status string, seconds float64) {
	persistWriteSeconds.WithLabelValues(status).Observe(seconds)
}
