// Package prune removes records from the live store that a snapshot already holds.
package prune

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bisq-network/bisq-sub006/common/types"
	"github.com/bisq-network/bisq-sub006/store"
)

type Opt func(*Pruner)

func WithLogger(logger *zap.Logger) Opt {
	return func(p *Pruner) {
		p.logger = logger
	}
}

func New(opts ...Opt) *Pruner {
	p := &Pruner{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type Pruner struct {
	logger *zap.Logger
}

// Prune removes from live every record present in one of the snapshots.
// A node that ran an old release keeps records in its live store that a newer
// release ships in a snapshot; after pruning every record lives in exactly one
// store. Running it again is a no-op.
func (p *Pruner) Prune(live *store.Store, snapshots []*store.Store) (int, error) {
	start := time.Now()
	var duplicates []types.Hash32
	for _, h := range live.Hashes() {
		for _, snapshot := range snapshots {
			if snapshot.Has(h) {
				duplicates = append(duplicates, h)
				break
			}
		}
	}
	scanLatency.Observe(time.Since(start).Seconds())
	if len(duplicates) == 0 {
		return 0, nil
	}

	start = time.Now()
	removed, err := live.Remove(duplicates)
	if err != nil {
		return removed, fmt.Errorf("remove %d records from %s: %w", len(duplicates), live.Name(), err)
	}
	rewriteLatency.Observe(time.Since(start).Seconds())
	prunedRecords.Add(float64(removed))
	p.logger.Info("removed live records migrated to snapshots",
		zap.String("live", live.Name()),
		zap.Int("removed", removed),
		zap.Int("remaining", live.Len()),
	)
	return removed, nil
}
