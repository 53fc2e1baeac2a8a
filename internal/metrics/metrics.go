// Package metrics holds the Prometheus instruments of the forecasting pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fallback reasons recorded per series.
const (
	ReasonDataUnavailable     = "data_unavailable"
	ReasonInsufficientHistory = "insufficient_history"
	ReasonModelFit            = "model_fit_error"
)

// Pipeline bundles the counters and histograms shared by the pipeline stages.
// A nil *Pipeline is valid and records nothing.
type Pipeline struct {
	Runs               *prometheus.CounterVec
	SeriesFallbacks    *prometheus.CounterVec
	MenuEntriesSkipped *prometheus.CounterVec
	FitDuration        prometheus.Histogram
	FitCacheHits       prometheus.Counter
	FitCacheMisses     prometheus.Counter
	SinkFailures       *prometheus.CounterVec
}

// New registers the pipeline instruments on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Pipeline {
	factory := promauto.With(reg)
	return &Pipeline{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messforecast_pipeline_runs_total",
				Help: "Pipeline invocations by outcome",
			},
			[]string{"status"}, // "ok", "timeout", "persistence_error", "invalid_request", "error"
		),
		SeriesFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messforecast_series_fallbacks_total",
				Help: "Series that were not fitted and fell back to a constant prediction",
			},
			[]string{"reason"},
		),
		MenuEntriesSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messforecast_menu_entries_skipped_total",
				Help: "Menu entries or forecast points skipped during demand aggregation",
			},
			[]string{"reason"}, // "malformed", "missing_day"
		),
		FitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "messforecast_fit_duration_seconds",
				Help:    "Duration of one series model fit",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		FitCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "messforecast_fit_cache_hits_total",
				Help: "Series fits served from the fingerprint cache",
			},
		),
		FitCacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "messforecast_fit_cache_misses_total",
				Help: "Series fits computed because no cached result existed",
			},
		),
		SinkFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messforecast_snapshot_sink_failures_total",
				Help: "Snapshot append failures by sink",
			},
			[]string{"sink"},
		),
	}
}

func (p *Pipeline) RunFinished(status string) {
	if p == nil {
		return
	}
	p.Runs.WithLabelValues(status).Inc()
}

func (p *Pipeline) SeriesFellBack(reason string) {
	if p == nil {
		return
	}
	p.SeriesFallbacks.WithLabelValues(reason).Inc()
}

func (p *Pipeline) MenuSkipped(reason string) {
	if p == nil {
		return
	}
	p.MenuEntriesSkipped.WithLabelValues(reason).Inc()
}

func (p *Pipeline) ObserveFit(seconds float64) {
	if p == nil {
		return
	}
	p.FitDuration.Observe(seconds)
}

func (p *Pipeline) CacheLookup(hit bool) {
	if p == nil {
		return
	}
	if hit {
		p.FitCacheHits.Inc()
		return
	}
	p.FitCacheMisses.Inc()
}

func (p *Pipeline) SinkFailed(sink string) {
	if p == nil {
		return
	}
	p.SinkFailures.WithLabelValues(sink).Inc()
}
