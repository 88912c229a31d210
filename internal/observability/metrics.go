package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flood_detect"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// flood-detection service.
type Metrics struct {
	AnalysesTotal       *prometheus.CounterVec // labels: mode, outcome={success,data_unavailable,external_error,invalid_input,cancelled,internal_error}
	AnalysisDuration    prometheus.Histogram
	StageDuration       *prometheus.HistogramVec // labels: stage
	FloodedHectares     prometheus.Histogram
	CalibrationFallback prometheus.Counter
	ReferenceBlends     prometheus.Counter
	AnalysesInFlight    prometheus.Gauge

	// Raster backend metrics.
	BackendRequests *prometheus.CounterVec   // labels: op={size,reduce,tiles,ping}, outcome={success,error}
	BackendDuration *prometheus.HistogramVec // labels: op
	BackendCache    *prometheus.CounterVec   // labels: op, result={hit,miss}

	// Result publication metrics.
	ResultsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed flood analyses by mode and outcome.",
		}, []string{"mode", "outcome"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of a complete analysis, including backend calls.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		FloodedHectares: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flooded_hectares",
			Help:      "Flooded area reported per successful analysis.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		CalibrationFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibration_fallback_total",
			Help:      "Historical-water calibrations that fell back to default breakpoints.",
		}),
		ReferenceBlends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_blends_total",
			Help:      "Analyses that overlaid a known reference flood extent.",
		}),
		AnalysesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analyses_in_flight",
			Help:      "Analyses currently running.",
		}),
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Raster backend requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Raster backend request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"op"}),
		BackendCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_cache_total",
			Help:      "Raster backend cache lookups by operation and result.",
		}, []string{"op", "result"}),
		ResultsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_published_total",
			Help:      "Analysis summaries written to the result topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Analysis summaries that could not be published.",
		}),
	}

	prometheus.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.StageDuration,
		m.FloodedHectares,
		m.CalibrationFallback,
		m.ReferenceBlends,
		m.AnalysesInFlight,
		m.BackendRequests,
		m.BackendDuration,
		m.BackendCache,
		m.ResultsPublished,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewUnregisteredMetrics()
}

// NewUnregisteredMetrics creates Metrics that are never registered with the
// default registry, for one-shot processes that expose no /metrics.
func NewUnregisteredMetrics() *Metrics {
	return &Metrics{
		AnalysesTotal:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "analyses_total"}, []string{"mode", "outcome"}),
		AnalysisDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "analysis_duration_seconds"}),
		StageDuration:       prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "stage_duration_seconds"}, []string{"stage"}),
		FloodedHectares:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "flooded_hectares"}),
		CalibrationFallback: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "calibration_fallback_total"}),
		ReferenceBlends:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "reference_blends_total"}),
		AnalysesInFlight:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "analyses_in_flight"}),
		BackendRequests:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "backend_requests_total"}, []string{"op", "outcome"}),
		BackendDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "backend_request_duration_seconds"}, []string{"op"}),
		BackendCache:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "backend_cache_total"}, []string{"op", "result"}),
		ResultsPublished:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "results_published_total"}),
		PublishErrors:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "publish_errors_total"}),
	}
}
