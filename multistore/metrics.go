package multistore

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bisq-network/bisq-sub006/metrics"
)

const namespace = "multistore"

var (
	reconcileLatency = metrics.NewHistogramWithBuckets(
		"reconcile_seconds",
		namespace,
		"startup reconciliation time in seconds",
		[]string{},
		prometheus.ExponentialBuckets(0.01, 2, 12),
	).WithLabelValues()
	skippedSnapshots = metrics.NewCounter(
		"skipped_snapshots",
		namespace,
		"number of snapshots that could not be opened",
		[]string{},
	).WithLabelValues()
)
