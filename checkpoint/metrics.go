package checkpoint

import "github.com/bisq-network/bisq-sub006/metrics"

const namespace = "checkpoint"

var (
	importedSnapshots = metrics.NewCounter(
		"imported_snapshots",
		namespace,
		"number of bundled snapshots copied into the data directory",
		[]string{},
	).WithLabelValues()
	importErrors = metrics.NewCounter(
		"import_errors",
		namespace,
		"number of bundled snapshots that failed to import",
		[]string{},
	).WithLabelValues()
)
