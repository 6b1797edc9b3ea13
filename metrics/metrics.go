// package metrics defines the prometheus collectors of the service
// and helpers for recording to them
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	otherMethodLabel   = "other"
	maxMethodLabelSize = 64
)

var methodPrefixes = []string{"eth_", "net_", "web3_", "debug_", "trace_", "txpool_"}

var (
	Requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evm_rpc_requests_total",
			Help: "Total number of json-rpc requests answered by the pipeline",
		},
		[]string{"method", "outcome"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evm_rpc_request_duration_seconds",
			Help:    "Time taken by the pipeline to answer a json-rpc request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evm_rpc_cache_hits_total",
			Help: "Total number of requests served from the block cache",
		},
		[]string{"method"},
	)

	DeduplicatedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evm_rpc_deduplicated_requests_total",
			Help: "Total number of requests answered by an identical in-flight request",
		},
		[]string{"method"},
	)

	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evm_rpc_retries_total",
			Help: "Total number of retried attempts",
		},
		[]string{"reason"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evm_rpc_upstream_requests_total",
			Help: "Total number of http requests sent upstream",
		},
		[]string{"status"},
	)

	UpstreamDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evm_rpc_upstream_duration_seconds",
			Help:    "Duration of http round trips to the upstream",
			Buckets: prometheus.DefBuckets,
		},
	)

	LatestBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evm_rpc_latest_block",
			Help: "Latest block number seen by the block tracker",
		},
	)
)

// MethodLabel bounds the method label to known json-rpc namespaces
func MethodLabel(method string) string {
	if len(method) > maxMethodLabelSize {
		return otherMethodLabel
	}

	for _, prefix := range methodPrefixes {
		if strings.HasPrefix(method, prefix) {
			return method
		}
	}

	return otherMethodLabel
}

// RecordRequest records a request answered by the pipeline
func RecordRequest(method string, failed bool, duration time.Duration) {
	label := MethodLabel(method)

	outcome := "success"
	if failed {
		outcome = "error"
	}

	Requests.WithLabelValues(label, outcome).Inc()
	RequestDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordCacheHit records a request served from the block cache
func RecordCacheHit(method string) {
	CacheHits.WithLabelValues(MethodLabel(method)).Inc()
}

// RecordDeduplicated records a request that joined an in-flight request
func RecordDeduplicated(method string) {
	DeduplicatedRequests.WithLabelValues(MethodLabel(method)).Inc()
}

// RecordRetry records a retried attempt, reason names the middleware retrying
func RecordRetry(reason string) {
	Retries.WithLabelValues(reason).Inc()
}

// RecordUpstreamRequest records an upstream round trip, statusCode 0 means no response
func RecordUpstreamRequest(statusCode int, duration time.Duration) {
	status := "network_error"
	if statusCode != 0 {
		status = strconv.Itoa(statusCode)
	}

	UpstreamRequests.WithLabelValues(status).Inc()
	UpstreamDuration.Observe(duration.Seconds())
}

// SetLatestBlock records the head seen by the block tracker
func SetLatestBlock(blockNumber uint64) {
	LatestBlock.Set(float64(blockNumber))
}
