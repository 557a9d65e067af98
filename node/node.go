// Package node contains the main executable for histnode.
package node

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bisq-network/bisq-sub006/checkpoint"
	"github.com/bisq-network/bisq-sub006/cmd"
	"github.com/bisq-network/bisq-sub006/config"
	"github.com/bisq-network/bisq-sub006/config/presets"
	"github.com/bisq-network/bisq-sub006/filesystem"
	"github.com/bisq-network/bisq-sub006/hashsync"
	"github.com/bisq-network/bisq-sub006/log"
	"github.com/bisq-network/bisq-sub006/metrics"
	"github.com/bisq-network/bisq-sub006/multistore"
	"github.com/bisq-network/bisq-sub006/resources"
	"github.com/bisq-network/bisq-sub006/store"
	"github.com/bisq-network/bisq-sub006/syncer"
)

// Logger names.
const (
	AppLogger    = "app"
	StoreLogger  = "store"
	ViewLogger   = "view"
	SyncLogger   = "sync"
	ServerLogger = "server"
)

func GetCommand() *cobra.Command {
	conf := config.DefaultConfig()
	var configPath *string
	c := &cobra.Command{
		Use:   "node",
		Short: "start node",
		RunE: func(c *cobra.Command, args []string) error {
			if err := configure(c, *configPath, &conf); err != nil {
				return err
			}
			app := newApp(&conf)

			// os.Interrupt for all systems, syscall.SIGTERM is mainly for docker.
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := app.Lock(); err != nil {
				return fmt.Errorf("getting exclusive file lock: %w", err)
			}
			defer app.Unlock()

			if err := app.Initialize(); err != nil {
				return fmt.Errorf("initializing app: %w", err)
			}

			// Don't print usage on error from this point forward
			c.SilenceUsage = true

			// This blocks until the context is finished or until an error is produced
			err := app.Start(ctx)
			cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cleanupCancel()
			app.Cleanup(cleanupCtx)
			return err
		},
	}

	configPath = cmd.AddFlags(c.PersistentFlags(), &conf)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(c *cobra.Command, args []string) {
			fmt.Fprint(c.OutOrStdout(), cmd.Version)
			if cmd.Commit != "" {
				fmt.Fprintf(c.OutOrStdout(), "+%s", cmd.Commit)
			}
			fmt.Fprintln(c.OutOrStdout())
		},
	}
	c.AddCommand(versionCmd)
	c.AddCommand(statsCommand(&conf, configPath))
	c.AddCommand(snapshotCommand(&conf, configPath))
	return c
}

func newApp(conf *config.Config) *App {
	return New(
		WithConfig(conf),
		// the root logger is at debug level so that every module logger can
		// pick its own level.
		WithLog(log.New("node", zap.NewAtomicLevelAt(zap.DebugLevel), conf.LOGGING.Encoder)),
		WithResources(resources.FS()),
	)
}

func configure(c *cobra.Command, configPath string, conf *config.Config) error {
	preset := conf.Preset // might be set via CLI flag
	if err := loadConfig(conf, preset, configPath); err != nil {
		return log.ErrMalformedConfig(fmt.Errorf("loading config: %w", err))
	}
	// apply CLI args to config
	if err := c.ParseFlags(os.Args[1:]); err != nil {
		return log.ErrBadFlags(fmt.Errorf("parsing flags: %w", err))
	}
	if err := conf.Validate(); err != nil {
		return log.ErrMalformedConfig(fmt.Errorf("validating config: %w", err))
	}
	return nil
}

// loadConfig loads config and preset (if provided) into the provided config.
// It first loads the preset and then overrides it with values from the config file.
func loadConfig(cfg *config.Config, preset, path string) error {
	v := viper.New()
	// read in config from file
	if err := config.LoadConfig(path, v); err != nil {
		return err
	}

	// override default config with preset if provided
	if len(preset) == 0 && v.IsSet("preset") {
		preset = v.GetString("preset")
	}
	if len(preset) > 0 {
		p, err := presets.Get(preset)
		if err != nil {
			return err
		}
		*cfg = p
	}

	// Unmarshall config file into config struct
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)

	opts := []viper.DecoderConfigOption{
		viper.DecodeHook(hook),
		WithZeroFields(),
		WithIgnoreUntagged(),
		WithErrorUnused(),
	}

	// load config if it was loaded to the viper
	if err := v.Unmarshal(cfg, opts...); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func WithZeroFields() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.ZeroFields = true
	}
}

func WithIgnoreUntagged() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.IgnoreUntaggedFields = true
	}
}

func WithErrorUnused() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
	}
}

// Option to modify an App instance.
type Option func(app *App)

// WithLog enables logger for an App.
func WithLog(logger *zap.Logger) Option {
	return func(app *App) {
		app.log = logger
	}
}

// WithConfig overwrites default App config.
func WithConfig(conf *config.Config) Option {
	return func(app *App) {
		app.Config = conf
	}
}

// WithFilesystem sets the filesystem holding the stores.
func WithFilesystem(afs afero.Fs) Option {
	return func(app *App) {
		app.fs = afs
	}
}

// WithResources sets the bundled snapshots. Nil disables importing them.
func WithResources(resources fs.FS) Option {
	return func(app *App) {
		app.resources = resources
	}
}

// New creates an instance of the histnode app.
func New(opts ...Option) *App {
	defaultConfig := config.DefaultConfig()
	app := &App{
		Config:  &defaultConfig,
		log:     zap.NewNop(),
		fs:      afero.NewOsFs(),
		loggers: make(map[string]*zap.AtomicLevel),
		started: make(chan struct{}),
		errCh:   make(chan error, 1),
		cancel:  func() {},
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// App is the cli app singleton.
type App struct {
	Config    *config.Config
	log       *zap.Logger
	fs        afero.Fs
	resources fs.FS
	fileLock  *flock.Flock

	view    *multistore.View
	server  *syncer.Server
	syncer  *syncer.Syncer
	metrics *metrics.Server
	addr    net.Addr

	loggers map[string]*zap.AtomicLevel
	started chan struct{} // this channel is closed once the app has finished starting
	errCh   chan error
	cancel  context.CancelFunc
	eg      errgroup.Group
}

func (app *App) Started() <-chan struct{} {
	return app.started
}

// View returns the store view. It is nil until the app is started.
func (app *App) View() *multistore.View {
	return app.view
}

// ListenAddr returns the address of the sync server, nil if it isn't running.
func (app *App) ListenAddr() net.Addr {
	return app.addr
}

// Lock locks the app for exclusive use. It returns an error if the app is already locked.
func (app *App) Lock() error {
	lockFile := app.Config.LockFile()
	lockDir := filepath.Dir(lockFile)
	if err := os.MkdirAll(lockDir, filesystem.OwnerReadWriteExec); err != nil {
		return log.ErrEnsureDataDir(lockDir, err)
	}
	fl := flock.New(lockFile)
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("flock %s: %w", lockFile, err)
	} else if !locked {
		return log.ErrLockDataDir(fmt.Errorf("locking file %s", fl.Path()))
	}
	app.fileLock = fl
	return nil
}

// Unlock unlocks the app. It is a no-op if the app is not locked.
func (app *App) Unlock() {
	if app.fileLock == nil {
		return
	}
	if err := app.fileLock.Unlock(); err != nil {
		app.log.Error("failed to unlock file",
			zap.String("path", app.fileLock.Path()),
			zap.Error(err),
		)
	}
}

// Initialize prepares the data directory and logs the app info.
func (app *App) Initialize() error {
	dir := app.Config.StoreDir()
	if _, err := filesystem.GetFullDirectoryPath(app.fs, dir); err != nil {
		return log.ErrEnsureDataDir(dir, err)
	}
	app.log = app.addLogger(AppLogger, app.log)
	app.log.Info("starting histnode",
		zap.String("version", cmd.Version),
		zap.String("commit", cmd.Commit),
		zap.String("go", runtime.Version()),
		zap.String("os", runtime.GOOS+"-"+runtime.GOARCH),
		zap.String("data-dir", app.Config.DataDir()),
		zap.String("store-dir", dir),
	)
	versionInfo.WithLabelValues(cmd.Version).Set(1)
	return nil
}

// Wrap the top-level logger with a name and the level configured for it.
// Calling this method will create a new logger every time.
//
// This method is not safe to be called concurrently.
func (app *App) addLogger(name string, logger *zap.Logger) *zap.Logger {
	lvl, err := decodeLoggerLevel(app.Config, name)
	if err != nil {
		app.log.Panic("unable to decode loggers into map[string]string", zap.Error(err))
	}
	if logger.Core().Enabled(lvl.Level()) {
		app.loggers[name] = &lvl
		logger = logger.WithOptions(zap.IncreaseLevel(lvl))
	}
	return logger.Named(name)
}

// SetLogLevel updates the log level of an existing logger.
func (app *App) SetLogLevel(name, loglevel string) error {
	lvl, ok := app.loggers[name]
	if !ok {
		return fmt.Errorf("cannot find logger %v", name)
	}
	if err := lvl.UnmarshalText([]byte(loglevel)); err != nil {
		return fmt.Errorf("unmarshal text: %w", err)
	}
	return nil
}

func decodeLoggerLevel(cfg *config.Config, name string) (zap.AtomicLevel, error) {
	lvl := zap.NewAtomicLevel()
	loggers := map[string]string{}
	if err := mapstructure.Decode(cfg.LOGGING, &loggers); err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("error decoding mapstructure: %w", err)
	}
	if level, ok := loggers[name]; ok {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return zap.AtomicLevel{}, fmt.Errorf("cannot parse logging for %v: %w", name, err)
		}
	}
	return lvl, nil
}

// openView reconciles the stores on disk with the bundled snapshots.
func (app *App) openView(ctx context.Context, storeOpts ...store.Opt) (*multistore.View, error) {
	viewCfg := app.Config.View
	viewCfg.Dir = app.Config.StoreDir()
	opts := []multistore.Opt{
		multistore.WithLogger(app.addLogger(ViewLogger, app.log)),
		multistore.WithFilesystem(app.fs),
		multistore.WithStoreOpts(append([]store.Opt{
			store.WithLogger(app.addLogger(StoreLogger, app.log)),
			store.WithConfig(app.Config.Store),
		}, storeOpts...)...),
	}
	if app.resources != nil {
		manifest, err := checkpoint.ReadManifest(app.resources)
		if err != nil {
			return nil, fmt.Errorf("bundled snapshots: %w", err)
		}
		opts = append(opts, multistore.WithBundled(app.resources, manifest))
	}
	view := multistore.New(viewCfg, opts...)
	if err := view.Initialize(ctx); err != nil {
		return nil, log.ErrReconcile(err)
	}
	return view, nil
}

// Start starts the node and blocks until ctx is done or a service fails.
func (app *App) Start(ctx context.Context) error {
	ctx, app.cancel = context.WithCancel(ctx)
	if err := app.startSynchronous(ctx); err != nil {
		app.log.Error("failed to start App", zap.Error(err))
		return err
	}
	// app blocks until it receives a signal to exit
	// this signal may come from the node or from sig-abort (ctrl-c)
	select {
	case <-ctx.Done():
		return nil
	case err := <-app.errCh:
		return err
	}
}

func (app *App) startSynchronous(ctx context.Context) error {
	// notify anyone who might be listening that the app has finished starting.
	defer close(app.started)

	view, err := app.openView(ctx, store.WithFatalHandler(app.onFatal))
	if err != nil {
		return err
	}
	app.view = view

	if app.Config.CollectMetrics {
		app.metrics = metrics.NewServer(app.log, app.Config.MetricsPort)
		if err := app.metrics.Start(); err != nil {
			return err
		}
	}

	live, err := view.Live()
	if err != nil {
		return err
	}
	app.eg.Go(func() error {
		return live.Run(ctx)
	})

	syncLogger := app.addLogger(SyncLogger, app.log)
	synchronizer := hashsync.New(view, hashsync.WithLogger(syncLogger))
	if app.Config.Sync.Listen != "" {
		app.server, err = syncer.NewServer(synchronizer, view, app.Config.Sync,
			syncer.WithServerLogger(app.addLogger(ServerLogger, app.log)))
		if err != nil {
			return err
		}
		if app.addr, err = app.server.Start(); err != nil {
			return err
		}
	}

	client := syncer.NewClient(app.Config.Sync, syncer.WithClientLogger(syncLogger))
	app.syncer = syncer.NewSyncer(synchronizer, view, client, app.Config.Sync, syncer.WithLogger(syncLogger))
	app.eg.Go(func() error {
		return app.syncer.Run(ctx)
	})

	versions, err := view.Versions()
	if err != nil {
		return err
	}
	app.log.Info("app started",
		zap.Stringers("snapshots", versions),
		zap.Strings("peers", app.Config.Sync.Peers),
	)
	return nil
}

// onFatal stops the node when the live store can't persist records anymore.
func (app *App) onFatal(err error) {
	app.log.Error("stopping node", zap.Error(err))
	select {
	case app.errCh <- err:
	default:
	}
}

// Cleanup stops all app services.
func (app *App) Cleanup(ctx context.Context) {
	app.log.Info("app cleanup starting...")
	app.cancel()
	if app.server != nil {
		if err := app.server.Stop(ctx); err != nil {
			app.log.Error("error stopping sync server", zap.Error(err))
		}
	}
	if app.metrics != nil {
		if err := app.metrics.Close(ctx); err != nil {
			app.log.Error("error stopping metrics server", zap.Error(err))
		}
	}
	if err := app.eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.log.Error("background task failed", zap.Error(err))
	}
	if app.view != nil {
		if err := app.view.Close(); err != nil {
			app.log.Error("error closing stores", zap.Error(err))
		}
	}
	app.log.Info("app cleanup completed")
}
