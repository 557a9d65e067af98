package presets

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bisq-network/bisq-sub006/config"
)

func init() {
	register("standalone", standalone())
}

// standalone runs a single node without peers, e.g. for release tooling.
func standalone() config.Config {
	conf := config.DefaultConfig()
	conf.Preset = "standalone"
	conf.DataDirParent = filepath.Join(os.TempDir(), "histnode")
	conf.FileLock = filepath.Join(conf.DataDirParent, "LOCK")

	conf.Store.FlushBatch = 1
	conf.Store.FlushInterval = 100 * time.Millisecond

	conf.Sync.Listen = "127.0.0.1:7780"
	conf.Sync.Peers = nil
	return conf
}
