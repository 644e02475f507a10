package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector contains the metrics a resolve() run can actually emit: stage
// durations, the size of each output, and the run's outcome.
type Collector struct {
	// Run outcome
	RunsTotal    prometheus.Counter
	RunsFailed   prometheus.Counter
	RunDuration  prometheus.Histogram

	// Per-stage duration
	EntityResolutionDuration       prometheus.Histogram
	RelationshipResolutionDuration prometheus.Histogram
	ConnectionDiscoveryDuration    prometheus.Histogram

	// Output size
	EntitiesProcessedTotal        prometheus.Counter
	EntitiesMergedTotal           prometheus.Counter
	RelationshipsProcessedTotal   prometheus.Counter
	RelationshipsConsolidatedTotal prometheus.Counter
	ConnectionsDiscoveredTotal     prometheus.Counter
	DiscoveryTruncatedTotal        prometheus.Counter

	// Quality
	ConfidenceScoreHistogram prometheus.Histogram
	EntityMergeRate          prometheus.Gauge
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		RunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resolution_runs_total",
			Help: "The total number of resolution runs started",
		}),
		RunsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resolution_runs_failed_total",
			Help: "The total number of resolution runs that returned an error",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "resolution_run_duration_seconds",
			Help:    "The duration of a full resolve() run in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		EntityResolutionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "resolution_entity_stage_duration_seconds",
			Help:    "The duration of the entity resolution stage in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		RelationshipResolutionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "resolution_relationship_stage_duration_seconds",
			Help:    "The duration of the relationship resolution stage in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ConnectionDiscoveryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "resolution_discovery_stage_duration_seconds",
			Help:    "The duration of the connection discovery stage in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		EntitiesProcessedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resolution_entities_processed_total",
			Help: "The total number of input entities processed",
		}),
		EntitiesMergedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resolution_entities_merged_total",
			Help: "The total number of entities merged into a canonical entity",
		}),
		RelationshipsProcessedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resolution_relationships_processed_total",
			Help: "The total number of input relationships processed",
		}),
		RelationshipsConsolidatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resolution_relationships_consolidated_total",
			Help: "The total number of relationship decisions (duplicate or consolidated groups) recorded",
		}),
		ConnectionsDiscoveredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resolution_connections_discovered_total",
			Help: "The total number of new connections proposed",
		}),
		DiscoveryTruncatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resolution_discovery_truncated_total",
			Help: "The total number of runs where discovery output hit max_discoveries_per_run",
		}),
		ConfidenceScoreHistogram: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "resolution_entity_decision_confidence",
			Help:    "The confidence scores of recorded entity resolution decisions",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		EntityMergeRate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "resolution_entity_merge_rate",
			Help: "The fraction of processed entities merged away in the most recent run",
		}),
	}
}

// RecordRun records the outcome and duration of a full resolve() run.
func (c *Collector) RecordRun(duration time.Duration, err error) {
	c.RunsTotal.Inc()
	c.RunDuration.Observe(duration.Seconds())
	if err != nil {
		c.RunsFailed.Inc()
	}
}

// RecordStats folds a ResolutionStats-shaped summary into the counters and
// gauges above. Kept decoupled from the resolution package's concrete type so
// metrics stays a leaf dependency.
func (c *Collector) RecordStats(entitiesProcessed, entitiesMerged, relationshipsProcessed, relationshipsConsolidated, connectionsDiscovered int, mergeRate float64) {
	c.EntitiesProcessedTotal.Add(float64(entitiesProcessed))
	c.EntitiesMergedTotal.Add(float64(entitiesMerged))
	c.RelationshipsProcessedTotal.Add(float64(relationshipsProcessed))
	c.RelationshipsConsolidatedTotal.Add(float64(relationshipsConsolidated))
	c.ConnectionsDiscoveredTotal.Add(float64(connectionsDiscovered))
	c.EntityMergeRate.Set(mergeRate)
}

// RecordDiscoveryTruncated records that a run's discovery output hit the
// configured cap.
func (c *Collector) RecordDiscoveryTruncated() {
	c.DiscoveryTruncatedTotal.Inc()
}

// RecordDecisionConfidence observes a single entity resolution decision's
// confidence score.
func (c *Collector) RecordDecisionConfidence(confidence float64) {
	c.ConfidenceScoreHistogram.Observe(confidence)
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed duration.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration observes the duration on a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(t.Duration().Seconds())
}

// TrackStageOperation times a single pipeline stage and records it on the
// given histogram, the same shape as the teacher's TrackResolutionOperation.
func TrackStageOperation(histogram prometheus.Histogram, operation func() error) error {
	timer := NewTimer()
	err := operation()
	timer.ObserveDuration(histogram)
	return err
}
