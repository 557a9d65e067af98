package syncer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bisq-network/bisq-sub006/metrics"
)

const namespace = "syncer"

var (
	serverRequests = metrics.NewCounter(
		"server_requests",
		namespace,
		"number of sync requests served by status code",
		[]string{"status"},
	)
	serverLatency = metrics.NewHistogramWithBuckets(
		"server_seconds",
		namespace,
		"time to serve a sync request in seconds",
		[]string{},
		prometheus.ExponentialBuckets(0.0001, 2, 16),
	).WithLabelValues()
	cacheHits = metrics.NewCounter(
		"cache_hits",
		namespace,
		"number of sync requests served from the response cache",
		[]string{},
	).WithLabelValues()
	rateLimited = metrics.NewCounter(
		"rate_limited",
		namespace,
		"number of sync requests rejected while waiting for the rate limiter",
		[]string{},
	).WithLabelValues()
	syncLatency = metrics.NewHistogramWithBuckets(
		"round_seconds",
		namespace,
		"time of one request/response exchange with a peer in seconds",
		[]string{},
		prometheus.ExponentialBuckets(0.001, 2, 16),
	).WithLabelValues()
	syncErrors = metrics.NewCounter(
		"errors",
		namespace,
		"number of failed syncs with a peer",
		[]string{},
	).WithLabelValues()
	receivedRecords = metrics.NewCounter(
		"received_records",
		namespace,
		"number of new records received from peers",
		[]string{},
	).WithLabelValues()
	invalidRecords = metrics.NewCounter(
		"invalid_records",
		namespace,
		"number of received records dropped because of a bad hash",
		[]string{},
	).WithLabelValues()
)
