// Package metrics provides prometheus collectors for the aggregation
// pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Source call outcome labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
	StatusStale = "stale"
)

// Metrics holds the prometheus collectors.
type Metrics struct {
	// SourceSearches counts adapter calls by source and outcome.
	SourceSearches *prometheus.CounterVec
	// SearchDuration observes end-to-end aggregate search latency.
	SearchDuration prometheus.Histogram
	// ListingsReturned counts listings returned to callers, by source.
	ListingsReturned *prometheus.CounterVec
	// HTTPRequests counts API requests by method, path and status.
	HTTPRequests *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SourceSearches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bazarkhoj",
			Name:      "source_searches_total",
			Help:      "Adapter search calls by source and outcome.",
		}, []string{"source", "status"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bazarkhoj",
			Name:      "search_duration_seconds",
			Help:      "End-to-end aggregate search latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		ListingsReturned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bazarkhoj",
			Name:      "listings_returned_total",
			Help:      "Listings returned to callers, by source.",
		}, []string{"source"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bazarkhoj",
			Name:      "http_requests_total",
			Help:      "API requests by method, path and status.",
		}, []string{"method", "path", "status"}),
	}

	reg.MustRegister(m.SourceSearches, m.SearchDuration, m.ListingsReturned, m.HTTPRequests)
	return m
}

// NewNop creates collectors backed by a throwaway registry, for tests and
// CLI runs that do not expose /metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveSearch records one aggregate search duration.
func (m *Metrics) ObserveSearch(start time.Time) {
	m.SearchDuration.Observe(time.Since(start).Seconds())
}

// RecordSourceCall records one adapter call outcome.
func (m *Metrics) RecordSourceCall(source, status string) {
	m.SourceSearches.WithLabelValues(source, status).Inc()
}

// RecordHTTPRequest records one API request outcome.
func (m *Metrics) RecordHTTPRequest(method, path string, status int) {
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// RecordListings records listings returned for a source.
func (m *Metrics) RecordListings(source string, count int) {
	m.ListingsReturned.WithLabelValues(source).Add(float64(count))
}
