package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var InsertsByIndex = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hmsearch_inserts_by_index",
		Help: "Insert operations by index",
	},
	[]string{"index"},
)

var QueriesByIndex = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hmsearch_queries_by_index",
		Help: "Query operations by index",
	},
	[]string{"index"},
)

var RemovesByIndex = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hmsearch_removes_by_index",
		Help: "Remove operations by index",
	},
	[]string{"index"},
)

var OperationLatencyHistogram = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "hmsearch_operation_latency_histogram",
		Help:    "Engine operation latency",
		Buckets: prometheus.ExponentialBuckets(0.000001, 10, 10),
	},
	[]string{"operation"},
)

var MatchesReturnedHistogram = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "hmsearch_matches_returned_histogram",
		Help:    "Matches returned per query",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	},
	[]string{"index"},
)

var StatusCode = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hmsearch_status_code",
		Help: "HTTP status code",
	},
	[]string{"code"},
)

var IndexesOpen = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "hmsearch_indexes_open",
		Help: "Indexes currently open in the registry",
	},
)
