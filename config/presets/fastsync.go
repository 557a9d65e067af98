package presets

import (
	"time"

	"github.com/bisq-network/bisq-sub006/config"
)

func init() {
	register("fastsync", fastsync())
}

// fastsync syncs often in small responses. Useful to exercise truncated
// responses on a local network.
func fastsync() config.Config {
	conf := config.DefaultConfig()
	conf.Preset = "fastsync"

	conf.Store.FlushBatch = 64
	conf.Store.FlushInterval = 5 * time.Second

	conf.Sync.Interval = 10 * time.Second
	conf.Sync.MaxRounds = 100
	conf.Sync.MaxResponseSize = 64 << 10
	conf.Sync.RequestTimeout = 10 * time.Second
	return conf
}
