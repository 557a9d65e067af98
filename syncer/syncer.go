package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bisq-network/bisq-sub006/common/types"
	"github.com/bisq-network/bisq-sub006/hashsync"
)

type SyncerOpt func(*Syncer)

func WithLogger(logger *zap.Logger) SyncerOpt {
	return func(s *Syncer) {
		s.logger = logger
	}
}

func WithClock(clock clockwork.Clock) SyncerOpt {
	return func(s *Syncer) {
		s.clock = clock
	}
}

// Syncer periodically pulls missing records from every configured peer.
type Syncer struct {
	logger *zap.Logger
	clock  clockwork.Clock
	cfg    Config
	sync   synchronizer
	sink   recordSink
	client peerClient
}

func NewSyncer(sync synchronizer, sink recordSink, client peerClient, cfg Config, opts ...SyncerOpt) *Syncer {
	s := &Syncer{
		logger: zap.NewNop(),
		clock:  clockwork.NewRealClock(),
		cfg:    cfg,
		sync:   sync,
		sink:   sink,
		client: client,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.Interval <= 0 {
		s.cfg.Interval = DefaultConfig().Interval
	}
	return s
}

// Run syncs with all peers immediately and then every cfg.Interval until ctx
// is done.
func (s *Syncer) Run(ctx context.Context) error {
	if len(s.cfg.Peers) == 0 {
		s.logger.Info("no sync peers configured")
		return nil
	}
	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		if err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("sync round incomplete", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
		}
	}
}

// SyncOnce pulls records from every peer. Peers are synced concurrently and
// a failing peer doesn't stop the others.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	var (
		eg   errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	eg.SetLimit(max(s.cfg.MaxPeers, 1))
	for _, peer := range s.cfg.Peers {
		eg.Go(func() error {
			added, err := s.syncPeer(ctx, peer)
			if err != nil {
				syncErrors.Inc()
				mu.Lock()
				errs = append(errs, fmt.Errorf("peer %s: %w", peer, err))
				mu.Unlock()
				return nil
			}
			s.logger.Debug("synced with peer",
				zap.String("peer", peer),
				zap.Int("added", added),
			)
			return nil
		})
	}
	eg.Wait()
	return errors.Join(errs...)
}

// syncPeer keeps asking peer while responses are truncated and bring new
// records. Each request lists the records added by the previous one.
func (s *Syncer) syncPeer(ctx context.Context, peer string) (int, error) {
	total := 0
	for round := 0; round < max(s.cfg.MaxRounds, 1); round++ {
		start := time.Now()
		req, err := s.sync.BuildRequest()
		if err != nil {
			return total, fmt.Errorf("build request: %w", err)
		}
		resp, err := s.client.GetData(ctx, peer, req)
		if err != nil {
			return total, err
		}
		added, err := s.store(peer, resp.Records)
		total += added
		if err != nil {
			return total, err
		}
		syncLatency.Observe(time.Since(start).Seconds())
		if !resp.Truncated || added == 0 {
			return total, nil
		}
	}
	return total, nil
}

func (s *Syncer) store(peer string, records []types.Record) (int, error) {
	added := 0
	for _, rec := range records {
		if err := rec.Verify(); err != nil {
			invalidRecords.Inc()
			s.logger.Debug("dropping record with bad hash",
				zap.String("peer", peer),
				zap.Inline(&rec),
				zap.Error(err),
			)
			continue
		}
		ok, err := s.sink.Put(rec)
		if err != nil {
			return added, fmt.Errorf("store record %s: %w", rec.Hash.ShortString(), err)
		}
		if ok {
			added++
		}
	}
	receivedRecords.Add(float64(added))
	return added, nil
}

var _ peerClient = (*Client)(nil)

var _ synchronizer = (*hashsync.Synchronizer)(nil)
