package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for scrape orchestration.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry         *prometheus.Registry
	ScrapesTotal     prometheus.Counter
	AttemptsTotal    *prometheus.CounterVec
	RetriesTotal     *prometheus.CounterVec
	FailuresTotal    *prometheus.CounterVec
	ProductsTotal    *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec
	ActiveScrapes    prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	scrapes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shopscout_scrapes_total",
		Help: "Total number of accepted search queries.",
	})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopscout_attempts_total",
		Help: "Pipeline attempts by source.",
	}, []string{"source"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopscout_retries_total",
		Help: "Retries scheduled by source.",
	}, []string{"source"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopscout_source_failures_total",
		Help: "Sources that exhausted their attempts, by error code.",
	}, []string{"source", "code"})
	products := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopscout_products_total",
		Help: "Product records extracted by source.",
	}, []string{"source"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopscout_source_duration_seconds",
		Help:    "Wall time of a source's retry-wrapped pipeline.",
		Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
	}, []string{"source"})
	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shopscout_active_scrapes",
		Help: "Queries currently being scraped.",
	})

	registry.MustRegister(scrapes, attempts, retries, failures, products, duration, active)

	return &Metrics{
		Registry:         registry,
		ScrapesTotal:     scrapes,
		AttemptsTotal:    attempts,
		RetriesTotal:     retries,
		FailuresTotal:    failures,
		ProductsTotal:    products,
		PipelineDuration: duration,
		ActiveScrapes:    active,
	}
}

func (m *Metrics) scrapeStarted() {
	if m == nil {
		return
	}
	m.ScrapesTotal.Inc()
	m.ActiveScrapes.Inc()
}

func (m *Metrics) scrapeFinished() {
	if m == nil {
		return
	}
	m.ActiveScrapes.Dec()
}

func (m *Metrics) incAttempt(source string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) incRetry(source string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) observeSource(source string, d time.Duration, products int, failureCode string) {
	if m == nil {
		return
	}
	m.PipelineDuration.WithLabelValues(source).Observe(d.Seconds())
	m.ProductsTotal.WithLabelValues(source).Add(float64(products))
	if failureCode != "" {
		m.FailuresTotal.WithLabelValues(source, failureCode).Inc()
	}
}
