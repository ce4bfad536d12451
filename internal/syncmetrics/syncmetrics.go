// Package syncmetrics exports Prometheus metrics about credential sync passes.
package syncmetrics

import (
	"time"

	"vcfcreds/domain/credential"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess = "success"
	ResultPartial = "partial"
	ResultFailure = "failure"
)

// Recorder groups the sync metrics so tests can register them on a private
// registry.
type Recorder struct {
	syncRuns         *prometheus.CounterVec
	sourceFetches    *prometheus.CounterVec
	extractedRecords *prometheus.CounterVec
	warnings         *prometheus.CounterVec
	syncDuration     prometheus.Histogram
}

// New registers the sync metrics on reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		syncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vcfcreds_sync_runs_total",
			Help: "Sync passes by outcome",
		}, []string{"result"}),
		sourceFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vcfcreds_source_fetch_total",
			Help: "Upstream fetches by source and outcome",
		}, []string{"source", "result"}),
		extractedRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vcfcreds_extracted_records_total",
			Help: "Credential records extracted by source",
		}, []string{"source"}),
		warnings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vcfcreds_warnings_total",
			Help: "Sync warnings by kind",
		}, []string{"kind"}),
		syncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vcfcreds_sync_duration_seconds",
			Help:    "Duration of a sync pass",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}

var defaultRecorder = New(prometheus.DefaultRegisterer)

// Default returns the recorder registered on the default Prometheus registry.
func Default() *Recorder {
	return defaultRecorder
}

func (r *Recorder) SyncFinished(result string, elapsed time.Duration) {
	r.syncRuns.WithLabelValues(result).Inc()
	r.syncDuration.Observe(elapsed.Seconds())
}

func (r *Recorder) SourceFetched(source credential.Provenance, ok bool) {
	result := ResultSuccess
	if !ok {
		result = ResultFailure
	}
	r.sourceFetches.WithLabelValues(string(source), result).Inc()
}

func (r *Recorder) RecordsExtracted(source credential.Provenance, n int) {
	r.extractedRecords.WithLabelValues(string(source)).Add(float64(n))
}

func (r *Recorder) Warnings(warnings []credential.Warning) {
	for _, w := range warnings {
		r.warnings.WithLabelValues(string(w.Kind)).Inc()
	}
}
