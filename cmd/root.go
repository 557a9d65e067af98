// Package cmd holds the flags shared by histnode commands.
package cmd

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bisq-network/bisq-sub006/config"
	"github.com/bisq-network/bisq-sub006/config/presets"
)

var (
	// Version is the app's semantic version. Designed to be overwritten by make.
	Version string

	// Commit is the git commit used to build the app. Designed to be overwritten by make.
	Commit string
)

// AddFlags adds the node flags to flagSet and returns the config file path
// flag. Flag defaults are taken from cfg and parsed values are written to it.
func AddFlags(flagSet *pflag.FlagSet, cfg *config.Config) (configPath *string) {
	configPath = flagSet.StringP("config", "c", "", "load configuration from file")
	flagSet.StringVarP(&cfg.Preset, "preset", "p", cfg.Preset,
		fmt.Sprintf("preset overwrites default values of the config. options %+s", presets.Options()))

	/** ======================== BaseConfig Flags ========================== **/
	flagSet.StringVarP(&cfg.DataDirParent, "data-folder", "d",
		cfg.DataDirParent, "data directory for histnode")
	flagSet.StringVar(&cfg.FileLock, "filelock",
		cfg.FileLock, "filesystem lock to prevent running more than one instance")
	flagSet.StringVar(&cfg.LOGGING.Encoder, "log-encoder",
		cfg.LOGGING.Encoder, "log as JSON instead of plain text")
	flagSet.BoolVar(&cfg.CollectMetrics, "metrics",
		cfg.CollectMetrics, "collect node metrics")
	flagSet.IntVar(&cfg.MetricsPort, "metrics-port",
		cfg.MetricsPort, "metric server port")

	/** ======================== Store Flags ========================== **/
	flagSet.StringVar(&cfg.View.Dir, "store-dir",
		cfg.View.Dir, "directory of the live store and the snapshots, relative to the data folder")
	flagSet.StringVar(&cfg.View.BaseName, "store-name",
		cfg.View.BaseName, "file name of the live store, snapshots are named <store-name>_<version>")
	flagSet.IntVar(&cfg.Store.FlushBatch, "flush-batch",
		cfg.Store.FlushBatch, "number of appended records written together")
	flagSet.DurationVar(&cfg.Store.FlushInterval, "flush-interval",
		cfg.Store.FlushInterval, "how often buffered records are written")

	/** ======================== Sync Flags ========================== **/
	flagSet.StringVar(&cfg.Sync.Listen, "listen",
		cfg.Sync.Listen, "address of the sync server, empty to disable it")
	flagSet.StringSliceVar(&cfg.Sync.Peers, "peers",
		cfg.Sync.Peers, "base urls of peers to sync with")
	flagSet.DurationVar(&cfg.Sync.Interval, "sync-interval",
		cfg.Sync.Interval, "interval between sync rounds")
	flagSet.IntVar(&cfg.Sync.MaxResponseSize, "max-response-size",
		cfg.Sync.MaxResponseSize, "size budget of records in one sync response")
	flagSet.DurationVar(&cfg.Sync.RequestTimeout, "sync-request-timeout",
		cfg.Sync.RequestTimeout, "timeout of a single sync request")
	return configPath
}
