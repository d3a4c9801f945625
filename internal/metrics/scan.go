package metrics

import "github.com/prometheus/client_golang/prometheus"

// Scan Prometheus metrics.
var (
	ScanPageRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backsync",
			Name:      "scan_page_requests_total",
			Help:      "Total number of backend page requests issued by searches",
		},
		[]string{"collection", "status"},
	)

	ScanPageRows = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "backsync",
			Name:      "scan_page_rows",
			Help:      "Raw rows returned per page request",
			Buckets:   []float64{0, 1, 10, 50, 100, 250, 500, 1000, 5000},
		},
		[]string{"collection"},
	)

	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backsync",
			Name:      "searches_total",
			Help:      "Total number of searches by outcome",
		},
		[]string{"collection", "outcome"}, // "ok" / "over_limit" / "invalid" / "canceled" / "error"
	)

	SearchRequestsPerSearch = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "backsync",
			Name:      "search_requests_per_search",
			Help:      "Page requests a completed search needed",
			Buckets:   []float64{1, 2, 3, 5, 10, 25, 50, 100},
		},
		[]string{"collection"},
	)

	DocumentWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backsync",
			Name:      "document_writes_total",
			Help:      "Total number of document writes by operation and outcome",
		},
		[]string{"collection", "op", "outcome"}, // op: create/update/patch/delete
	)

	DocumentConflictRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backsync",
			Name:      "document_conflict_retries_total",
			Help:      "Writes re-issued after a revision conflict",
		},
		[]string{"collection"},
	)
)

var scanMetricsRegistered bool

// ScanCollectors returns the scan and document write collectors for
// registration on a custom registry.
func ScanCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		ScanPageRequestsTotal,
		ScanPageRows,
		SearchesTotal,
		SearchRequestsPerSearch,
		DocumentWritesTotal,
		DocumentConflictRetriesTotal,
	}
}

// RegisterScanMetrics registers Prometheus scan and document write metrics. Must be called once from main.
func RegisterScanMetrics() {
	if scanMetricsRegistered {
		return
	}
	for _, c := range ScanCollectors() {
		prometheus.MustRegister(c)
	}
	scanMetricsRegistered = true
}
