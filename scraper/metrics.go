package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the harvester.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	ItemsScrapedTotal prometheus.Counter
	RetriesTotal      prometheus.Counter
	RateLimitedTotal  prometheus.Counter
	SkippedPagesTotal prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	TasksTotal        *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total listing requests issued, by outcome.",
		},
		[]string{"outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "Latency of listing requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	itemsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_items_scraped_total",
			Help: "Total number of product records normalized.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of backoff retries scheduled.",
		},
	)
	rateLimited := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_rate_limited_total",
			Help: "Total number of rate-limit cool-downs taken.",
		},
	)
	skippedPages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_skipped_pages_total",
			Help: "Total number of pages skipped after exhausting retries.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of request errors by type.",
		},
		[]string{"error_type"},
	)
	tasks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_tasks_total",
			Help: "Total number of tasks processed, by final status.",
		},
		[]string{"status"},
	)

	registry.MustRegister(requests, requestDuration, itemsScraped, retries, rateLimited, skippedPages, errorsTotal, tasks)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		ItemsScrapedTotal: itemsScraped,
		RetriesTotal:      retries,
		RateLimitedTotal:  rateLimited,
		SkippedPagesTotal: skippedPages,
		ErrorsTotal:       errorsTotal,
		TasksTotal:        tasks,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddItems adds normalized records to the items counter.
func (m *Metrics) AddItems(n int) {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.Add(float64(n))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncRateLimited increments the cool-down counter.
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedTotal.Inc()
}

// IncSkippedPages increments the skipped pages counter.
func (m *Metrics) IncSkippedPages() {
	if m == nil {
		return
	}
	m.SkippedPagesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncTask increments the task counter for a final status.
func (m *Metrics) IncTask(status string) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues(status).Inc()
}
