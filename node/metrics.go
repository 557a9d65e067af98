package node

import "github.com/bisq-network/bisq-sub006/metrics"

const subsystem = "node"

var versionInfo = metrics.NewGauge(
	"version",
	subsystem,
	"release the node is running",
	[]string{"version"},
)
