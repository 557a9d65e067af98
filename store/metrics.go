package store

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bisq-network/bisq-sub006/metrics"
)

const namespace = "store"

var (
	storeRecords = metrics.NewGauge(
		"records",
		namespace,
		"number of records held in open stores",
		[]string{"kind"},
	)
	corruptRecords = metrics.NewCounter(
		"corrupt_records",
		namespace,
		"number of records skipped on load because the hash didn't match",
		[]string{"kind"},
	)
	appendedRecords = metrics.NewCounter(
		"appended_records",
		namespace,
		"number of records appended to the live store",
		[]string{},
	).WithLabelValues()
	flushErrors = metrics.NewCounter(
		"flush_errors",
		namespace,
		"number of failed live store writes",
		[]string{},
	).WithLabelValues()
	flushLatency = metrics.NewHistogramWithBuckets(
		"flush_seconds",
		namespace,
		"live store flush time in seconds",
		[]string{},
		prometheus.ExponentialBuckets(0.0001, 2, 14),
	).WithLabelValues()
)
