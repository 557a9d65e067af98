package hashsync

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bisq-network/bisq-sub006/metrics"
)

const namespace = "hashsync"

var (
	requestEntries = metrics.NewHistogramWithBuckets(
		"request_entries",
		namespace,
		"number of exclusion entries in built requests",
		[]string{},
		prometheus.ExponentialBuckets(1, 4, 10),
	).WithLabelValues()
	responseRecords = metrics.NewHistogramWithBuckets(
		"response_records",
		namespace,
		"number of records in built responses",
		[]string{},
		prometheus.ExponentialBuckets(1, 4, 10),
	).WithLabelValues()
	responseLatency = metrics.NewHistogramWithBuckets(
		"response_seconds",
		namespace,
		"time to build a response in seconds",
		[]string{},
		prometheus.ExponentialBuckets(0.0001, 2, 14),
	).WithLabelValues()
	unknownMarkers = metrics.NewCounter(
		"unknown_markers",
		namespace,
		"number of version markers naming a snapshot this node doesn't have",
		[]string{},
	).WithLabelValues()
	truncatedResponses = metrics.NewCounter(
		"truncated_responses",
		namespace,
		"number of responses cut to the size budget",
		[]string{},
	).WithLabelValues()
)
