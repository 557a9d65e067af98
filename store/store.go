// Package store implements a file-backed set of content-addressed records.
//
// A store is either the single mutable live store, or an immutable snapshot
// tagged with the release version that produced it. All records are kept in
// memory; the file is an append-only log of scale encoded records.
package store

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/bisq-network/bisq-sub006/codec"
	"github.com/bisq-network/bisq-sub006/common/types"
	"github.com/bisq-network/bisq-sub006/filesystem"
	"github.com/bisq-network/bisq-sub006/log"
)

const (
	formatVersion byte = 1
	filePerm           = 0o600
	dirPerm            = 0o700
)

var magic = []byte("HSTSTORE")

var (
	ErrReadOnly    = errors.New("store is read-only")
	ErrCorrupt     = errors.New("store file is corrupt")
	ErrWriteFailed = errors.New("live store write failed")
	ErrClosed      = errors.New("store is closed")
)

type Config struct {
	// FlushBatch is the number of appended records buffered before they are
	// written to the file. 1 writes every record immediately.
	FlushBatch int `mapstructure:"flush-batch"`
	// FlushInterval is how often Run writes buffered records.
	FlushInterval time.Duration `mapstructure:"flush-interval"`
}

func DefaultConfig() Config {
	return Config{
		FlushBatch:    1,
		FlushInterval: time.Second,
	}
}

// Validate reports settings the flush loop can't run with.
func (c Config) Validate() error {
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush-interval must be positive, got %v", c.FlushInterval)
	}
	return nil
}

type Opt func(*Store)

func WithLogger(logger *zap.Logger) Opt {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithConfig(cfg Config) Opt {
	return func(s *Store) {
		s.cfg = cfg
	}
}

// WithFatalHandler registers a callback invoked once when the live store can
// no longer persist records.
func WithFatalHandler(fn func(error)) Opt {
	return func(s *Store) {
		s.onFatal = fn
	}
}

// Store is a set of records backed by a single file.
type Store struct {
	logger  *zap.Logger
	cfg     Config
	fs      afero.Fs
	path    string
	name    string
	version *types.Version
	onFatal func(error)

	mu         sync.RWMutex
	records    map[types.Hash32]types.Record
	generation uint64

	// write path, live store only. guarded by mu.
	file      afero.File
	pending   bytes.Buffer
	npending  int
	failed    error
	fatalOnce sync.Once
	closed    bool
}

// Open loads the store at path. A nil version opens the live store, creating
// the file if it doesn't exist; otherwise the file is opened read-only as a
// snapshot of that version.
func Open(afs afero.Fs, path string, version *types.Version, opts ...Opt) (*Store, error) {
	s := &Store{
		logger:  zap.NewNop(),
		cfg:     DefaultConfig(),
		fs:      afs,
		path:    path,
		name:    filepath.Base(path),
		version: version,
		records: make(map[types.Hash32]types.Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.FlushBatch < 1 {
		s.cfg.FlushBatch = 1
	}
	if s.cfg.FlushInterval <= 0 {
		s.cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	s.logger = s.logger.With(zap.String("store", s.name))
	if version == nil {
		if err := s.openLive(); err != nil {
			return nil, err
		}
	} else {
		if err := s.openSnapshot(); err != nil {
			return nil, err
		}
	}
	storeRecords.WithLabelValues(s.kind()).Add(float64(len(s.records)))
	s.logger.Debug("store opened",
		zap.Stringer("version", s.versionStringer()),
		zap.Int("records", len(s.records)),
	)
	return s, nil
}

func (s *Store) openSnapshot() error {
	f, err := s.fs.Open(s.path)
	if err != nil {
		return fmt.Errorf("open snapshot %s: %w", s.path, err)
	}
	defer f.Close()
	_, _, err = s.load(f)
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) openLive() error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), dirPerm); err != nil {
		return fmt.Errorf("create store dir %s: %w", filepath.Dir(s.path), err)
	}
	f, err := s.fs.OpenFile(s.path, os.O_RDWR|os.O_CREATE, filePerm)
	if err != nil {
		return fmt.Errorf("open live store %s: %w", s.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat live store %s: %w", s.path, err)
	}
	if info.Size() == 0 {
		if _, err := f.Write(header()); err != nil {
			f.Close()
			return fmt.Errorf("write header %s: %w", s.path, err)
		}
	} else {
		good, skipped, err := s.load(f)
		var tail *tailError
		switch {
		case errors.As(err, &tail):
			// a crash in the middle of an append leaves a partial record behind.
			// everything before it is intact.
			s.logger.Warn("truncating damaged tail of live store",
				zap.Int64("offset", good),
				zap.Int64("dropped_bytes", info.Size()-good),
				zap.Error(tail.err),
			)
			if err := f.Truncate(good); err != nil {
				f.Close()
				return fmt.Errorf("truncate live store %s: %w", s.path, err)
			}
		case err != nil:
			f.Close()
			return fmt.Errorf("load live store %s: %w", s.path, err)
		}
		if skipped > 0 {
			s.file = f
			if err := s.rewriteLocked(); err != nil {
				s.file.Close()
				return fmt.Errorf("rewrite live store %s: %w", s.path, err)
			}
			return nil
		}
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return fmt.Errorf("seek live store %s: %w", s.path, err)
	}
	s.file = f
	return nil
}

// tailError is returned by load when the header is valid but a record after
// offset could not be read.
type tailError struct {
	err error
}

func (e *tailError) Error() string { return fmt.Sprintf("%v: %v", ErrCorrupt, e.err) }
func (e *tailError) Unwrap() error { return ErrCorrupt }

// load reads records from r and returns the offset of the end of the last
// complete record. Complete records whose hash doesn't match the payload are
// left out and counted in skipped.
func (s *Store) load(r io.Reader) (offset int64, skipped int, err error) {
	br := bufio.NewReader(r)
	hdr := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(br, hdr); err != nil {
		return 0, 0, fmt.Errorf("%w: read header: %w", ErrCorrupt, err)
	}
	if !bytes.Equal(hdr[:len(magic)], magic) {
		return 0, 0, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if hdr[len(magic)] != formatVersion {
		return 0, 0, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, hdr[len(magic)])
	}
	offset = int64(len(hdr))
	for {
		if _, err := br.Peek(1); errors.Is(err, io.EOF) {
			return offset, skipped, nil
		}
		var rec types.Record
		n, err := codec.DecodeFrom(br, &rec)
		if err != nil {
			return offset, skipped, &tailError{err: fmt.Errorf("decode record at %d: %w", offset, err)}
		}
		if err := rec.Verify(); err != nil {
			s.logger.Warn("skipping corrupt record",
				zap.Int64("offset", offset),
				zap.Error(err),
			)
			corruptRecords.WithLabelValues(s.kind()).Inc()
			offset += int64(n)
			skipped++
			continue
		}
		offset += int64(n)
		if _, exists := s.records[rec.Hash]; !exists {
			s.records[rec.Hash] = rec
		}
	}
}

func header() []byte {
	return append(slices.Clone(magic), formatVersion)
}

// WriteRecords writes a complete store file containing records to w.
// Records are written in hash order so equal sets produce equal files.
func WriteRecords(w io.Writer, records []types.Record) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(header()); err != nil {
		return err
	}
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b types.Record) int { return a.Hash.Compare(b.Hash) })
	for i := range sorted {
		if _, err := codec.EncodeTo(bw, &sorted[i]); err != nil {
			return fmt.Errorf("encode record %s: %w", sorted[i].Hash.ShortString(), err)
		}
	}
	return bw.Flush()
}

// Name is the file name of the store.
func (s *Store) Name() string { return s.name }

// Path is the full path of the store file.
func (s *Store) Path() string { return s.path }

// IsLive is true for the mutable live store.
func (s *Store) IsLive() bool { return s.version == nil }

// Version returns the snapshot version. ok is false for the live store.
func (s *Store) Version() (v types.Version, ok bool) {
	if s.version == nil {
		return types.Version{}, false
	}
	return *s.version, true
}

func (s *Store) kind() string {
	if s.IsLive() {
		return "live"
	}
	return "snapshot"
}

func (s *Store) versionStringer() fmt.Stringer {
	if s.version == nil {
		return liveStringer{}
	}
	return *s.version
}

type liveStringer struct{}

func (liveStringer) String() string { return "live" }

// Append adds a record to the live store. It returns false if the record is
// already present. The record is visible to readers when Append returns, even
// if it is only persisted by a later flush.
func (s *Store) Append(rec types.Record) (bool, error) {
	if !s.IsLive() {
		return false, ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	if s.failed != nil {
		return false, fmt.Errorf("%w: %w", ErrWriteFailed, s.failed)
	}
	if _, exists := s.records[rec.Hash]; exists {
		return false, nil
	}
	rec.Payload = bytes.Clone(rec.Payload)
	if _, err := codec.EncodeTo(&s.pending, &rec); err != nil {
		return false, fmt.Errorf("encode record %s: %w", rec.Hash.ShortString(), err)
	}
	s.records[rec.Hash] = rec
	s.generation++
	s.npending++
	storeRecords.WithLabelValues(s.kind()).Inc()
	appendedRecords.Inc()
	if s.npending >= s.cfg.FlushBatch {
		if err := s.flushLocked(); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Flush writes buffered records to the file and syncs it.
func (s *Store) Flush() error {
	if !s.IsLive() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	if s.failed != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, s.failed)
	}
	if s.npending == 0 {
		return nil
	}
	start := time.Now()
	if _, err := s.file.Write(s.pending.Bytes()); err != nil {
		return s.fail(fmt.Errorf("write %s: %w", s.path, err))
	}
	if err := s.file.Sync(); err != nil {
		return s.fail(fmt.Errorf("sync %s: %w", s.path, err))
	}
	flushLatency.Observe(time.Since(start).Seconds())
	s.pending.Reset()
	s.npending = 0
	return nil
}

func (s *Store) fail(err error) error {
	s.failed = err
	flushErrors.Inc()
	s.logger.Error("live store write failed", zap.Error(err))
	s.fatalOnce.Do(func() {
		if s.onFatal != nil {
			go s.onFatal(log.ErrLiveStoreWrite(err))
		}
	})
	return fmt.Errorf("%w: %w", ErrWriteFailed, err)
}

// Run flushes buffered records every FlushInterval until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	if !s.IsLive() {
		return nil
	}
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := s.Flush(); err != nil {
				s.logger.Error("final flush failed", zap.Error(err))
			}
			return nil
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				s.logger.Debug("periodic flush failed", zap.Error(err))
			}
		}
	}
}

// Remove deletes records from the live store and rewrites its file.
// The new file replaces the old one with a rename, so a crash leaves one of
// the two complete versions on disk. Returns the number of removed records.
func (s *Store) Remove(hashes []types.Hash32) (int, error) {
	if !s.IsLive() {
		return 0, ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	removed := 0
	for _, h := range hashes {
		if _, ok := s.records[h]; ok {
			delete(s.records, h)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	s.generation++
	storeRecords.WithLabelValues(s.kind()).Sub(float64(removed))
	if err := s.rewriteLocked(); err != nil {
		return removed, err
	}
	return removed, nil
}

func (s *Store) rewriteLocked() error {
	dir := filepath.Dir(s.path)
	tmp, err := afero.TempFile(s.fs, dir, filesystem.TempPattern(s.name))
	if err != nil {
		return fmt.Errorf("create tmp file: %w", err)
	}
	records := make([]types.Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	if err := WriteRecords(tmp, records); err != nil {
		tmp.Close()
		s.fs.Remove(tmp.Name())
		return fmt.Errorf("write tmp file %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.fs.Remove(tmp.Name())
		return fmt.Errorf("sync tmp file %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close tmp file %s: %w", tmp.Name(), err)
	}
	if err := s.file.Close(); err != nil {
		s.logger.Warn("close replaced live file", zap.Error(err))
	}
	if err := s.fs.Rename(tmp.Name(), s.path); err != nil {
		return s.fail(fmt.Errorf("rename %s to %s: %w", tmp.Name(), s.path, err))
	}
	f, err := s.fs.OpenFile(s.path, os.O_RDWR|os.O_APPEND, filePerm)
	if err != nil {
		return s.fail(fmt.Errorf("reopen %s: %w", s.path, err))
	}
	s.file = f
	// the rewritten file already contains everything that was pending.
	s.pending.Reset()
	s.npending = 0
	return nil
}

// ReadAll returns a copy of every record in the store.
func (s *Store) ReadAll() []types.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rst := make([]types.Record, 0, len(s.records))
	for _, rec := range s.records {
		rst = append(rst, rec)
	}
	return rst
}

// Hashes returns the hashes of every record in the store.
func (s *Store) Hashes() []types.Hash32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rst := make([]types.Hash32, 0, len(s.records))
	for h := range s.records {
		rst = append(rst, h)
	}
	return rst
}

// Has reports whether a record with the hash is in the store.
func (s *Store) Has(h types.Hash32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[h]
	return ok
}

// Get returns the record with the hash, if present.
func (s *Store) Get(h types.Hash32) (types.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[h]
	return rec, ok
}

// Len is the number of records in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Generation changes every time the content of the store changes.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Close flushes buffered records and releases the file.
func (s *Store) Close() error {
	if !s.IsLive() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	err := s.flushLocked()
	s.closed = true
	storeRecords.WithLabelValues(s.kind()).Sub(float64(len(s.records)))
	if cerr := s.file.Close(); cerr != nil && !errors.Is(cerr, fs.ErrClosed) {
		err = errors.Join(err, cerr)
	}
	return err
}
