// Package metrics exposes the Prometheus counters the orchestrator and each
// stage report their outcomes through. A nil *Metrics is valid and every
// method becomes a no-op, so callers don't need a separate enabled/disabled
// branch at call sites.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters shared across the sync, extract, and index
// stages. One instance is created per process and passed down to whichever
// stages a given subcommand constructs.
type Metrics struct {
	synced    prometheus.Counter
	processed prometheus.Counter
	indexed   prometheus.Counter
	failed    *prometheus.CounterVec
	retried   prometheus.Counter
}

// New registers the pipeline's counters against reg and returns a Metrics
// instance backed by them. Passing a nil Registerer disables metrics
// entirely: every subsequent Record call on the result becomes a no-op.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	f := promauto.With(reg)
	return &Metrics{
		synced: f.NewCounter(prometheus.CounterOpts{
			Name: "ingest_synced_total",
			Help: "Drive items newly uploaded to the object store by the sync stage.",
		}),
		processed: f.NewCounter(prometheus.CounterOpts{
			Name: "ingest_processed_total",
			Help: "Content records that completed text extraction.",
		}),
		indexed: f.NewCounter(prometheus.CounterOpts{
			Name: "ingest_indexed_total",
			Help: "Content records attached to the vector store.",
		}),
		failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_failed_total",
			Help: "Records that ended a stage in a failed_* state, by stage.",
		}, []string{"stage"}),
		retried: f.NewCounter(prometheus.CounterOpts{
			Name: "ingest_retry_total",
			Help: "Failed records picked back up via --retry-failed.",
		}),
	}
}

// RecordSync reports a sync stage outcome.
func (m *Metrics) RecordSync(newUploads, failed int) {
	if m == nil {
		return
	}
	m.synced.Add(float64(newUploads))
	if failed > 0 {
		m.failed.WithLabelValues("sync").Add(float64(failed))
	}
}

// RecordExtract reports an extraction stage outcome.
func (m *Metrics) RecordExtract(processed, failed int) {
	if m == nil {
		return
	}
	m.processed.Add(float64(processed))
	if failed > 0 {
		m.failed.WithLabelValues("extract").Add(float64(failed))
	}
}

// RecordIndex reports an indexing stage outcome.
func (m *Metrics) RecordIndex(indexed, failed int) {
	if m == nil {
		return
	}
	m.indexed.Add(float64(indexed))
	if failed > 0 {
		m.failed.WithLabelValues("index").Add(float64(failed))
	}
}

// RecordRetry reports that a run reprocessed rows sitting in a failed_*
// state via --retry-failed.
func (m *Metrics) RecordRetry(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.retried.Add(float64(n))
}
