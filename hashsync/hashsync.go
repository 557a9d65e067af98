// Package hashsync builds and answers record synchronization requests.
//
// A requester summarizes what it holds as an exclusion set: one version marker
// per snapshot it has, plus the hash of every record in its live store. The
// responder sends back everything not covered by that summary.
package hashsync

import (
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/bisq-network/bisq-sub006/common/types"
	"github.com/bisq-network/bisq-sub006/store"
)

// ProtocolVersion is sent as the request's version hint.
const ProtocolVersion uint32 = 1

var ErrEmptyBudget = errors.New("size budget must be positive")

// View is the set of stores a synchronizer reads.
type View interface {
	Live() (*store.Store, error)
	Snapshots() ([]*store.Store, error)
}

type Opt func(*Synchronizer)

func WithLogger(logger *zap.Logger) Opt {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

type Synchronizer struct {
	logger *zap.Logger
	view   View
}

func New(view View, opts ...Opt) *Synchronizer {
	s := &Synchronizer{
		logger: zap.NewNop(),
		view:   view,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExclusionSet is the decoded form of a request.
type ExclusionSet struct {
	Hashes  map[types.Hash32]struct{}
	Markers []types.Version
}

// NewExclusionSet sorts the request entries by type.
func NewExclusionSet(req *Request) *ExclusionSet {
	set := &ExclusionSet{Hashes: make(map[types.Hash32]struct{}, len(req.Entries))}
	for i := range req.Entries {
		entry := &req.Entries[i]
		switch entry.Type {
		case EntryTypeRecordHash:
			set.Hashes[entry.Hash] = struct{}{}
		case EntryTypeVersionMarker:
			set.Markers = append(set.Markers, entry.Version)
		}
	}
	return set
}

// Excludes reports whether h is listed explicitly.
func (s *ExclusionSet) Excludes(h types.Hash32) bool {
	_, ok := s.Hashes[h]
	return ok
}

// MaxRecognized returns the highest marker version present in known.
// Markers for versions outside known are returned as unknown.
func (s *ExclusionSet) MaxRecognized(known []types.Version) (highest types.Version, ok bool, unknown []types.Version) {
	for _, v := range s.Markers {
		if !slices.Contains(known, v) {
			unknown = append(unknown, v)
			continue
		}
		if !ok || highest.Less(v) {
			highest, ok = v, true
		}
	}
	return highest, ok, unknown
}

// BuildRequest summarizes the local stores.
func (s *Synchronizer) BuildRequest() (*Request, error) {
	live, err := s.view.Live()
	if err != nil {
		return nil, err
	}
	snapshots, err := s.view.Snapshots()
	if err != nil {
		return nil, err
	}
	hashes := live.Hashes()
	types.SortHashes(hashes)
	req := &Request{
		VersionHint: ProtocolVersion,
		Entries:     make([]ExclusionEntry, 0, len(snapshots)+len(hashes)),
	}
	for _, snapshot := range snapshots {
		version, _ := snapshot.Version()
		req.Entries = append(req.Entries, MarkerEntry(version))
	}
	for _, h := range hashes {
		req.Entries = append(req.Entries, RecordHashEntry(h))
	}
	requestEntries.Observe(float64(len(req.Entries)))
	return req, nil
}

// BuildResponse returns the local records not covered by req, live records
// first and then snapshots from newest to oldest, until sizeBudget bytes of
// encoded records are reached. Records are never split.
//
// A record is withheld if its hash is listed, or it is in a snapshot no newer
// than the highest marker of req that names a local snapshot. Markers for
// versions this node doesn't have are ignored: the requester may be missing
// data they would otherwise hide.
func (s *Synchronizer) BuildResponse(req *Request, sizeBudget int) (*Response, error) {
	if sizeBudget <= 0 {
		return nil, ErrEmptyBudget
	}
	start := time.Now()
	live, err := s.view.Live()
	if err != nil {
		return nil, err
	}
	snapshots, err := s.view.Snapshots()
	if err != nil {
		return nil, err
	}
	known := make([]types.Version, 0, len(snapshots))
	for _, snapshot := range snapshots {
		version, _ := snapshot.Version()
		known = append(known, version)
	}

	set := NewExclusionSet(req)
	maxExcluded, hasMax, unknown := set.MaxRecognized(known)
	if len(unknown) > 0 {
		unknownMarkers.Add(float64(len(unknown)))
		s.logger.Debug("ignoring unknown version markers",
			zap.Stringers("versions", unknown),
			zap.Uint32("version_hint", req.VersionHint),
		)
	}

	candidates := []*store.Store{live}
	for i := len(snapshots) - 1; i >= 0; i-- {
		version, _ := snapshots[i].Version()
		if hasMax && version.Compare(maxExcluded) <= 0 {
			break
		}
		candidates = append(candidates, snapshots[i])
	}

	resp := &Response{}
	size := 0
	for _, st := range candidates {
		for _, rec := range st.ReadAll() {
			if set.Excludes(rec.Hash) {
				continue
			}
			if size+rec.Size() > sizeBudget {
				resp.Truncated = true
				continue
			}
			size += rec.Size()
			resp.Records = append(resp.Records, rec)
		}
	}

	responseLatency.Observe(time.Since(start).Seconds())
	responseRecords.Observe(float64(len(resp.Records)))
	if resp.Truncated {
		truncatedResponses.Inc()
	}
	s.logger.Debug("built sync response",
		zap.Int("entries", len(req.Entries)),
		zap.Bool("has_max_marker", hasMax),
		zap.Stringer("max_marker", maxExcluded),
		zap.Int("records", len(resp.Records)),
		zap.Int("bytes", size),
		zap.Bool("truncated", resp.Truncated),
	)
	return resp, nil
}
