// Package multistore presents the live store and every versioned snapshot as
// one logical collection of records.
package multistore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/bisq-network/bisq-sub006/checkpoint"
	"github.com/bisq-network/bisq-sub006/common/types"
	"github.com/bisq-network/bisq-sub006/filesystem"
	"github.com/bisq-network/bisq-sub006/prune"
	"github.com/bisq-network/bisq-sub006/store"
)

var (
	ErrNotReady           = errors.New("view is not initialized")
	ErrAlreadyInitialized = errors.New("view is already initialized")
	ErrLiveUnavailable    = errors.New("live store unavailable")
	ErrSnapshotOverlap    = errors.New("snapshots share records")
)

type Config struct {
	// Dir holds the live store and the snapshot files.
	Dir string `mapstructure:"dir"`
	// BaseName names the live store file. Snapshots are BaseName_<version>.
	BaseName string `mapstructure:"base-name"`
}

func DefaultConfig() Config {
	return Config{
		Dir:      "db",
		BaseName: "records",
	}
}

type Opt func(*View)

func WithLogger(logger *zap.Logger) Opt {
	return func(v *View) {
		v.logger = logger
	}
}

func WithFilesystem(fs afero.Fs) Opt {
	return func(v *View) {
		v.fs = fs
	}
}

// WithBundled sets the snapshots shipped with the running release.
func WithBundled(resources fs.FS, manifest *checkpoint.Manifest) Opt {
	return func(v *View) {
		v.resources = resources
		v.manifest = manifest
	}
}

// WithStoreOpts passes options to the live store.
func WithStoreOpts(opts ...store.Opt) Opt {
	return func(v *View) {
		v.storeOpts = append(v.storeOpts, opts...)
	}
}

// View is the union of the live store and all snapshot stores.
// After Initialize every record is held by exactly one store.
type View struct {
	cfg       Config
	logger    *zap.Logger
	fs        afero.Fs
	resources fs.FS
	manifest  *checkpoint.Manifest
	storeOpts []store.Opt

	initMu sync.Mutex
	ready  atomic.Bool

	// immutable once ready
	live      *store.Store
	snapshots []*store.Store // ascending by version
}

func New(cfg Config, opts ...Opt) *View {
	v := &View{
		cfg:    cfg,
		logger: zap.NewNop(),
		fs:     afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *View) livePath() string {
	return filepath.Join(v.cfg.Dir, v.cfg.BaseName)
}

// Initialize reconciles the stores on disk with the bundled snapshots and
// makes the view ready. Every step is idempotent, so a node that crashed half
// way through simply runs it again on the next start.
func (v *View) Initialize(ctx context.Context) error {
	v.initMu.Lock()
	defer v.initMu.Unlock()
	if v.ready.Load() {
		return ErrAlreadyInitialized
	}
	start := time.Now()

	stale, err := filesystem.RemoveTempFiles(v.fs, v.cfg.Dir)
	if err != nil {
		return err
	}
	if len(stale) > 0 {
		v.logger.Info("removed files of an interrupted write", zap.Strings("files", stale))
	}

	if v.resources != nil && v.manifest != nil {
		imported, err := checkpoint.Import(ctx, v.logger, v.fs, v.resources, v.manifest, v.cfg.Dir, v.cfg.BaseName)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			v.logger.Error("some bundled snapshots were not imported", zap.Error(err))
		}
		if len(imported) > 0 {
			v.logger.Info("imported bundled snapshots", zap.Strings("files", imported))
		}
	}

	live, err := store.Open(v.fs, v.livePath(), nil,
		append([]store.Opt{store.WithLogger(v.logger)}, v.storeOpts...)...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLiveUnavailable, err)
	}

	versions, err := v.snapshotVersions()
	if err != nil {
		live.Close()
		return err
	}
	snapshots := make([]*store.Store, 0, len(versions))
	for _, version := range versions {
		path := filepath.Join(v.cfg.Dir, checkpoint.SnapshotName(v.cfg.BaseName, version))
		snapshot, err := store.Open(v.fs, path, &version, store.WithLogger(v.logger))
		if err != nil {
			// an unreadable snapshot is left out; its records will be
			// fetched from peers like any other missing record.
			v.logger.Error("skipping unreadable snapshot",
				zap.Stringer("version", version),
				zap.String("file", path),
				zap.Error(err),
			)
			skippedSnapshots.Inc()
			continue
		}
		snapshots = append(snapshots, snapshot)
	}

	if err := checkOverlap(snapshots); err != nil {
		live.Close()
		return err
	}

	if _, err := prune.New(prune.WithLogger(v.logger)).Prune(live, snapshots); err != nil {
		live.Close()
		return fmt.Errorf("prune live store: %w", err)
	}

	v.live = live
	v.snapshots = snapshots
	v.ready.Store(true)
	reconcileLatency.Observe(time.Since(start).Seconds())
	v.logger.Info("store view ready",
		zap.Int("live", live.Len()),
		zap.Int("snapshots", len(snapshots)),
		zap.Stringers("versions", versionsOf(snapshots)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// snapshotVersions returns the versions listed in the manifest together with
// any snapshot file already present in the directory, ascending.
func (v *View) snapshotVersions() ([]types.Version, error) {
	var versions []types.Version
	if v.manifest != nil {
		versions = append(versions, v.manifest.Versions()...)
	}
	entries, err := afero.ReadDir(v.fs, v.cfg.Dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read store dir %s: %w", v.cfg.Dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if version, ok := checkpoint.ParseSnapshotName(v.cfg.BaseName, entry.Name()); ok {
			versions = append(versions, version)
		}
	}
	slices.SortFunc(versions, types.Version.Compare)
	return slices.Compact(versions), nil
}

func checkOverlap(snapshots []*store.Store) error {
	owner := make(map[types.Hash32]*store.Store)
	for _, snapshot := range snapshots {
		for _, h := range snapshot.Hashes() {
			if other, exists := owner[h]; exists {
				return fmt.Errorf("%w: %s is in %s and %s",
					ErrSnapshotOverlap, h.ShortString(), other.Name(), snapshot.Name())
			}
			owner[h] = snapshot
		}
	}
	return nil
}

func versionsOf(stores []*store.Store) []types.Version {
	rst := make([]types.Version, 0, len(stores))
	for _, s := range stores {
		version, _ := s.Version()
		rst = append(rst, version)
	}
	return rst
}

// Ready reports whether Initialize completed.
func (v *View) Ready() bool {
	return v.ready.Load()
}

// Generation changes whenever the content of the view changes.
// Snapshots are immutable, so it follows the live store.
func (v *View) Generation() uint64 {
	if !v.ready.Load() {
		return 0
	}
	return v.live.Generation()
}

// Live returns the live store.
func (v *View) Live() (*store.Store, error) {
	if !v.ready.Load() {
		return nil, ErrNotReady
	}
	return v.live, nil
}

// Snapshots returns the snapshot stores, ascending by version.
func (v *View) Snapshots() ([]*store.Store, error) {
	if !v.ready.Load() {
		return nil, ErrNotReady
	}
	return slices.Clone(v.snapshots), nil
}

// Stores returns every store from newest to oldest, live first.
func (v *View) Stores() ([]*store.Store, error) {
	if !v.ready.Load() {
		return nil, ErrNotReady
	}
	rst := make([]*store.Store, 0, len(v.snapshots)+1)
	rst = append(rst, v.live)
	for i := len(v.snapshots) - 1; i >= 0; i-- {
		rst = append(rst, v.snapshots[i])
	}
	return rst, nil
}

// Versions returns the snapshot versions, ascending.
func (v *View) Versions() ([]types.Version, error) {
	if !v.ready.Load() {
		return nil, ErrNotReady
	}
	return versionsOf(v.snapshots), nil
}

// GetAll returns every record in the view. Should two stores hold the same
// record, the copy from the newer store is returned.
func (v *View) GetAll() ([]types.Record, error) {
	stores, err := v.Stores()
	if err != nil {
		return nil, err
	}
	return collect(stores), nil
}

// GetSince returns the records of the live store and of every snapshot newer
// than version.
func (v *View) GetSince(version types.Version) ([]types.Record, error) {
	stores, err := v.Stores()
	if err != nil {
		return nil, err
	}
	selected := []*store.Store{stores[0]}
	for _, s := range stores[1:] {
		if sv, _ := s.Version(); version.Less(sv) {
			selected = append(selected, s)
		}
	}
	return collect(selected), nil
}

// collect concatenates records of stores ordered newest first, dropping
// hashes already seen.
func collect(stores []*store.Store) []types.Record {
	total := 0
	for _, s := range stores {
		total += s.Len()
	}
	seen := make(map[types.Hash32]struct{}, total)
	rst := make([]types.Record, 0, total)
	for _, s := range stores {
		for _, rec := range s.ReadAll() {
			if _, ok := seen[rec.Hash]; ok {
				continue
			}
			seen[rec.Hash] = struct{}{}
			rst = append(rst, rec)
		}
	}
	return rst
}

// Has reports whether any store holds the record.
func (v *View) Has(h types.Hash32) (bool, error) {
	stores, err := v.Stores()
	if err != nil {
		return false, err
	}
	for _, s := range stores {
		if s.Has(h) {
			return true, nil
		}
	}
	return false, nil
}

// Put adds a record to the live store. A record already held by a snapshot
// is not added again, so stores stay disjoint. Returns true if the record
// was new.
func (v *View) Put(rec types.Record) (bool, error) {
	if !v.ready.Load() {
		return false, ErrNotReady
	}
	if err := rec.Verify(); err != nil {
		return false, err
	}
	for _, snapshot := range v.snapshots {
		if snapshot.Has(rec.Hash) {
			return false, nil
		}
	}
	return v.live.Append(rec)
}

// Close flushes and closes the live store.
func (v *View) Close() error {
	v.initMu.Lock()
	defer v.initMu.Unlock()
	if !v.ready.Load() {
		return nil
	}
	v.ready.Store(false)
	var errs []error
	for _, s := range append([]*store.Store{v.live}, v.snapshots...) {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
