// Package stats is the Statistics Aggregator: an on-demand walk over
// every stored session that derives total/completed/average-nudge counts,
// plus a Prometheus gauge export of the same numbers for embedding
// applications that scrape metrics rather than poll GetStats directly.
// Grounded on runtime/metrics/prometheus/metrics.go's namespaced gauge/
// counter pattern, adapted from live runtime gauges to a store snapshot.
package stats

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drillforge/core/eventlog"
	"github.com/drillforge/core/persistence"
)

const namespace = "drillforge"

var (
	sessionsTotalGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stats_sessions_total",
		Help:      "Total number of non-deleted sessions on last stats refresh",
	})
	sessionsCompletedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stats_sessions_completed",
		Help:      "Number of completed sessions on last stats refresh",
	})
	avgNudgesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stats_avg_nudges_used",
		Help:      "Average nudges used per completed session on last stats refresh",
	})

	allMetrics = []prometheus.Collector{sessionsTotalGauge, sessionsCompletedGauge, avgNudgesGauge}
)

// MustRegister registers the stats gauges with reg. Calling it more than
// once against the same registry panics, matching
// prometheus.MustRegister's own contract.
func MustRegister(reg prometheus.Registerer) {
	for _, m := range allMetrics {
		reg.MustRegister(m)
	}
}

// Summary is the result of GetStats.
type Summary struct {
	Total     int
	Completed int
	AvgNudges int
}

// GetStats walks all non-soft-deleted sessions in store and returns the
// aggregate total/completed/average-nudge counts. AvgNudges is rounded to
// the nearest integer and is 0 when Completed is 0 (no division by zero).
func GetStats(ctx context.Context, store persistence.Store) (Summary, error) {
	records, err := store.GetAllSessions(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list sessions for stats: %w", err)
	}

	summary := Summary{Total: len(records)}
	var nudgesSum int
	for _, rec := range records {
		if !hasCompleted(rec) {
			continue
		}
		summary.Completed++
		nudgesSum += countNudges(rec)
	}
	if summary.Completed > 0 {
		summary.AvgNudges = roundDiv(nudgesSum, summary.Completed)
	}

	sessionsTotalGauge.Set(float64(summary.Total))
	sessionsCompletedGauge.Set(float64(summary.Completed))
	avgNudgesGauge.Set(float64(summary.AvgNudges))

	return summary, nil
}

func hasCompleted(rec *persistence.SessionRecord) bool {
	for _, e := range rec.Events {
		if e.Type == eventlog.SessionCompleted {
			return true
		}
	}
	return false
}

func countNudges(rec *persistence.SessionRecord) int {
	n := 0
	for _, e := range rec.Events {
		if e.Type == eventlog.NudgeRequested {
			n++
		}
	}
	return n
}

// roundDiv divides a by b and rounds to the nearest integer (b > 0).
func roundDiv(a, b int) int {
	if a >= 0 {
		return (a + b/2) / b
	}
	return -((-a + b/2) / b)
}
