// Package metrics exposes extraction counters over Prometheus. Each Metrics
// owns an independent registry so several extractors (and tests) can coexist
// in one process.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "switchfacts"

// File extraction outcomes.
const (
	FileExtracted = "extracted"
	FileUnchanged = "unchanged"
	FileFailed    = "failed"
	FileRemoved   = "removed"
)

// Metrics implements extraction.Observer.
type Metrics struct {
	registry *prometheus.Registry

	cases    *prometheus.CounterVec
	faults   *prometheus.CounterVec
	facts    prometheus.Counter
	files    *prometheus.CounterVec
	duration prometheus.Histogram
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_total",
			Help:      "Case branches extracted, by shape.",
		}, []string{"shape"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Case labels rejected by extraction, by fault kind.",
		}, []string{"kind"}),
		facts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facts_emitted_total",
			Help:      "Facts committed to the sink.",
		}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Source files processed, by outcome.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_extraction_seconds",
			Help:      "Time to parse and extract one source file.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
	m.registry.MustRegister(
		m.cases, m.faults, m.facts, m.files, m.duration,
		collectors.NewGoCollector(),
	)
	return m
}

// CaseCreated counts a committed case branch; shape is its shape atom.
func (m *Metrics) CaseCreated(shape string) {
	m.cases.WithLabelValues(shape).Inc()
}

// Fault counts a rejected label.
func (m *Metrics) Fault(kind string) {
	m.faults.WithLabelValues(kind).Inc()
}

// FactsEmitted counts committed facts.
func (m *Metrics) FactsEmitted(n int) {
	m.facts.Add(float64(n))
}

// FileProcessed records the outcome of one file and, for extracted files,
// how long it took.
func (m *Metrics) FileProcessed(status string, d time.Duration) {
	m.files.WithLabelValues(status).Inc()
	if status == FileExtracted {
		m.duration.Observe(d.Seconds())
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
