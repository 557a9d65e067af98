package prune

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bisq-network/bisq-sub006/metrics"
)

const namespace = "prune"

var (
	pruneLatency = metrics.NewHistogramWithBuckets(
		"prune_seconds",
		namespace,
		"prune time in seconds",
		[]string{"step"},
		prometheus.ExponentialBuckets(0.001, 2, 14),
	)
	scanLatency    = pruneLatency.WithLabelValues("scan")
	rewriteLatency = pruneLatency.WithLabelValues("rewrite")

	prunedRecords = metrics.NewCounter(
		"records",
		namespace,
		"number of records removed from the live store",
		[]string{},
	).WithLabelValues()
)
