package pairwise

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/janelia-flyem/stitch/labels"
	"github.com/janelia-flyem/stitch/storage"
)

// Metrics tracks reconciliation metrics with the stitch_ prefix.  A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// AttemptsTotal counts pipeline attempts by outcome kind
	AttemptsTotal *prometheus.CounterVec

	// StageDuration tracks the latency of each pipeline stage
	StageDuration *prometheus.HistogramVec

	// ReadRetries counts input reads that failed and were retried
	ReadRetries prometheus.Counter

	// SkippedTotal counts jobs whose outputs were already valid
	SkippedTotal prometheus.Counter

	// MergesTotal counts new merge edges written
	MergesTotal prometheus.Counter

	// VoxelsCompared counts voxels in comparison regions
	VoxelsCompared prometheus.Counter

	// LabelsMatched is the number of matched label pairs of the last reconciliation
	LabelsMatched prometheus.Gauge
}

// NewMetrics creates and registers the metrics.  Panics if registration fails.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stitch_attempts_total",
				Help: "Total reconciliation attempts by outcome",
			},
			[]string{"outcome"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stitch_stage_duration_seconds",
				Help:    "Reconciliation stage duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		ReadRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stitch_read_retries_total",
				Help: "Total input block reads retried after failure",
			},
		),
		SkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stitch_skipped_total",
				Help: "Total jobs skipped because verified outputs already existed",
			},
		),
		MergesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stitch_merges_total",
				Help: "Total new merge edges recorded",
			},
		),
		VoxelsCompared: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stitch_voxels_compared_total",
				Help: "Total voxels compared across block boundaries",
			},
		),
		LabelsMatched: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stitch_labels_matched",
				Help: "Matched label pairs in the most recent reconciliation",
			},
		),
	}
	reg.MustRegister(
		m.AttemptsTotal,
		m.StageDuration,
		m.ReadRetries,
		m.SkippedTotal,
		m.MergesTotal,
		m.VoxelsCompared,
		m.LabelsMatched,
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "stitch_store_read_bytes_total",
				Help: "Total bytes read from block storage",
			},
			func() float64 { return float64(storage.BytesRead()) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "stitch_store_written_bytes_total",
				Help: "Total bytes written to block storage",
			},
			func() float64 { return float64(storage.BytesWritten()) },
		),
	)
	return m
}

// RecordAttempt records an attempt finishing with the given outcome.
func (m *Metrics) RecordAttempt(o Outcome) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(o.label()).Inc()
}

// ObserveStage records the duration of a pipeline stage.
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

func (m *Metrics) RecordReadRetry() {
	if m == nil {
		return
	}
	m.ReadRetries.Inc()
}

func (m *Metrics) RecordSkip() {
	if m == nil {
		return
	}
	m.SkippedTotal.Inc()
}

// RecordReconciliation records the statistics of a completed reconciliation.
func (m *Metrics) RecordReconciliation(r *labels.Reconciliation) {
	if m == nil || r == nil {
		return
	}
	m.MergesTotal.Add(float64(len(r.NewEdges)))
	m.VoxelsCompared.Add(float64(r.Histogram.NumVoxels()))
	m.LabelsMatched.Set(float64(r.Matching.Len()))
}

// WriteTextfile dumps all metrics of the gatherer in the text format read by
// the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, g)
}
