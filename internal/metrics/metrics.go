// Package metrics collects and exposes Prometheus metrics for the scoring
// pipeline.
//
// WHY AN INTERFACE?
// Services depend on the small Recorder interface, not on the Prometheus
// client directly. The concrete Collector is wired in once at startup; tests
// either pass a Collector backed by a throwaway registry or ignore metrics
// entirely with a no-op.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface the services use.
type Recorder interface {
	RecordAggregation(partial bool, duration time.Duration)
	RecordVersionConflict()
	RecordSourceSkipped(source string)
	RecordLeaderboardRequest(scope string)
	RecordAuthzDecision(capability string, allowed bool)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	aggregations     *prometheus.CounterVec
	aggregateLatency prometheus.Histogram
	versionConflicts prometheus.Counter
	sourcesSkipped   *prometheus.CounterVec
	leaderboardReqs  *prometheus.CounterVec
	authzDecisions   *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
// Pass prometheus.DefaultRegisterer in main, prometheus.NewRegistry() in
// tests (registering the same metric name twice panics).
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		aggregations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campushub_aggregations_total",
			Help: "Score aggregation runs, labelled by completeness.",
		}, []string{"result"}),
		aggregateLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "campushub_aggregation_duration_seconds",
			Help:    "Wall time of one score aggregation run.",
			Buckets: prometheus.DefBuckets,
		}),
		versionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campushub_score_version_conflicts_total",
			Help: "Projection writes that lost the optimistic-version race.",
		}),
		sourcesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campushub_ledger_sources_skipped_total",
			Help: "Ledger sources skipped during a read because they were unreachable.",
		}, []string{"source"}),
		leaderboardReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campushub_leaderboard_requests_total",
			Help: "Leaderboard requests by scope.",
		}, []string{"scope"}),
		authzDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campushub_authz_decisions_total",
			Help: "Authorization gate decisions by capability and outcome.",
		}, []string{"capability", "outcome"}),
	}

	reg.MustRegister(
		c.aggregations,
		c.aggregateLatency,
		c.versionConflicts,
		c.sourcesSkipped,
		c.leaderboardReqs,
		c.authzDecisions,
	)

	return c
}

func (c *Collector) RecordAggregation(partial bool, duration time.Duration) {
	result := "complete"
	if partial {
		result = "partial"
	}
	c.aggregations.WithLabelValues(result).Inc()
	c.aggregateLatency.Observe(duration.Seconds())
}

func (c *Collector) RecordVersionConflict() {
	c.versionConflicts.Inc()
}

func (c *Collector) RecordSourceSkipped(source string) {
	c.sourcesSkipped.WithLabelValues(source).Inc()
}

func (c *Collector) RecordLeaderboardRequest(scope string) {
	c.leaderboardReqs.WithLabelValues(scope).Inc()
}

func (c *Collector) RecordAuthzDecision(capability string, allowed bool) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	c.authzDecisions.WithLabelValues(capability, outcome).Inc()
}

// Handler returns the HTTP handler serving the /metrics endpoint for the
// given gatherer (usually the same registry the Collector registered with).
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop is a Recorder that discards everything. Handy in tests that don't
// assert on metrics.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordAggregation(bool, time.Duration) {}
func (Nop) RecordVersionConflict()                {}
func (Nop) RecordSourceSkipped(string)            {}
func (Nop) RecordLeaderboardRequest(string)       {}
func (Nop) RecordAuthzDecision(string, bool)      {}
