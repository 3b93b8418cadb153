// Package metrics keeps the Prometheus series describing a run. A run is a
// short-lived process, so the series are written to a node-exporter
// textfile instead of being served.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	errs "magistodl/pkg/errors"
)

const namespace = "magistodl"

// Metrics holds all Prometheus metrics for one run.
type Metrics struct {
	registry *prometheus.Registry

	ResourcesTotal   *prometheus.CounterVec
	MatchesTotal     *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	ResourceDuration prometheus.Histogram
	Enumerated       prometheus.Gauge
	Validated        prometheus.Gauge
	LibraryFiles     prometheus.Gauge
	LibraryBytes     prometheus.Gauge
	RunDuration      prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
}

// New registers every series on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ResourcesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resources_total",
			Help:      "Resources processed, by outcome.",
		}, []string{"outcome"}),
		MatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Already-downloaded resources, by the strategy that matched.",
		}, []string{"method"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Per-resource failures, by error type.",
		}, []string{"type"}),
		ResourceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resource_duration_seconds",
			Help:      "Time spent on one resource, from navigation to outcome.",
			Buckets:   []float64{1, 5, 10, 15, 30, 60, 120},
		}),
		Enumerated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "enumerated_links",
			Help:      "Candidate links extracted from the listing.",
		}),
		Validated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validated_resources",
			Help:      "Resource links left after validation.",
		}),
		LibraryFiles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "library_files",
			Help:      "Media files in the download directory.",
		}),
		LibraryBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "library_bytes",
			Help:      "Total size of the media files in the download directory.",
		}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of the last run.",
		}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
}

// Registry exposes the registry for gathering
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) IncResource(outcome string) {
	m.ResourcesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncMatch(method string) {
	m.MatchesTotal.WithLabelValues(method).Inc()
}

// IncError counts a per-resource failure under its error type
func (m *Metrics) IncError(err error) {
	m.ErrorsTotal.WithLabelValues(string(errs.TypeOf(err))).Inc()
}

func (m *Metrics) ObserveResource(d time.Duration) {
	m.ResourceDuration.Observe(d.Seconds())
}

// SetLibrary records the download directory totals
func (m *Metrics) SetLibrary(files int, bytes int64) {
	m.LibraryFiles.Set(float64(files))
	m.LibraryBytes.Set(float64(bytes))
}

// Finish records the run duration and completion time
func (m *Metrics) Finish(d time.Duration, at time.Time) {
	m.RunDuration.Set(d.Seconds())
	m.LastRunTimestamp.Set(float64(at.Unix()))
}

// WriteTextfile writes every series in the text exposition format. The
// write is atomic so a collector never reads a half-written file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errs.New(errs.ErrorTypeStorage, "failed to write metrics textfile", err)
	}
	return nil
}
