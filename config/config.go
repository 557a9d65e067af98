// Package config contains histnode configuration definitions.
package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/bisq-network/bisq-sub006/filesystem"
	"github.com/bisq-network/bisq-sub006/multistore"
	"github.com/bisq-network/bisq-sub006/store"
	"github.com/bisq-network/bisq-sub006/syncer"
)

const (
	defaultConfigFileName = "./config.toml"
	defaultDataDirName    = "histnode"
	lockFileName          = "LOCK"
)

var (
	defaultHomeDir = filesystem.GetUserHomeDirectory()
	defaultDataDir = filepath.Join(defaultHomeDir, defaultDataDirName)
)

// Config defines the top level configuration for a histnode.
type Config struct {
	BaseConfig `mapstructure:"main"`
	Preset     string            `mapstructure:"preset"`
	Store      store.Config      `mapstructure:"store"`
	View       multistore.Config `mapstructure:"view"`
	Sync       syncer.Config     `mapstructure:"sync"`
	LOGGING    LoggerConfig      `mapstructure:"logging"`
}

// BaseConfig defines the default configuration options for the node.
type BaseConfig struct {
	DataDirParent string `mapstructure:"data-folder"`
	FileLock      string `mapstructure:"filelock"`

	ConfigFile string `mapstructure:"config"`

	CollectMetrics bool `mapstructure:"metrics"`
	MetricsPort    int  `mapstructure:"metrics-port"`
}

// DataDir returns the tilde-expanded data directory.
func (cfg *Config) DataDir() string {
	return filesystem.GetCanonicalPath(cfg.DataDirParent)
}

// StoreDir returns the directory holding the live store and the snapshots.
// A relative View.Dir is resolved against the data directory.
func (cfg *Config) StoreDir() string {
	if filepath.IsAbs(cfg.View.Dir) {
		return cfg.View.Dir
	}
	return filepath.Join(cfg.DataDir(), cfg.View.Dir)
}

// LockFile returns the path of the single instance lock.
func (cfg *Config) LockFile() string {
	if cfg.FileLock != "" {
		return filesystem.GetCanonicalPath(cfg.FileLock)
	}
	return filepath.Join(cfg.DataDir(), lockFileName)
}

// DefaultConfig returns the default configuration for a histnode.
func DefaultConfig() Config {
	return Config{
		BaseConfig: defaultBaseConfig(),
		Store:      store.DefaultConfig(),
		View:       multistore.DefaultConfig(),
		Sync:       syncer.DefaultConfig(),
		LOGGING:    defaultLoggingConfig(),
	}
}

func defaultBaseConfig() BaseConfig {
	return BaseConfig{
		DataDirParent:  defaultDataDir,
		ConfigFile:     defaultConfigFileName,
		CollectMetrics: false,
		MetricsPort:    1010,
	}
}

// Validate checks the settings that would otherwise fail when the node starts.
func (cfg *Config) Validate() error {
	var errs []error
	if err := cfg.Store.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := cfg.Sync.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}
	return errors.Join(errs...)
}

// LoadConfig reads the config file into vip. An empty location leaves vip
// untouched, so that defaults and flags apply.
func LoadConfig(fileLocation string, vip *viper.Viper) error {
	if fileLocation == "" {
		return nil
	}
	vip.SetConfigFile(fileLocation)
	if err := vip.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %w", err)
	}
	return nil
}
