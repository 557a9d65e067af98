package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/bisq-network/bisq-sub006/common/types"
	"github.com/bisq-network/bisq-sub006/hashsync"
)

func TestSyncOnce(t *testing.T) {
	shared := genRecords("shared", 5)
	responder := newView(t, map[string][]types.Record{
		"1.0.0": shared,
		"1.1.0": genRecords("newer", 4),
	}, genRecords("responder", 6))
	requester := newView(t, map[string][]types.Record{
		"1.0.0": shared,
	}, genRecords("requester", 2))
	url := startServer(t, hashsync.New(responder), responder, testConfig())

	cfg := testConfig()
	cfg.Peers = []string{url}
	s := NewSyncer(hashsync.New(requester), requester, NewClient(cfg), cfg,
		WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, s.SyncOnce(context.Background()))

	all, err := requester.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 5+4+6+2)
	live, err := requester.Live()
	require.NoError(t, err)
	require.Equal(t, 4+6+2, live.Len())
}

func TestSyncTruncatedRounds(t *testing.T) {
	records := genRecords("rec", 20)
	responder := newView(t, nil, records)
	requester := newView(t, nil, nil)

	serverCfg := testConfig()
	serverCfg.MaxResponseSize = 3 * records[0].Size()
	url := startServer(t, hashsync.New(responder), responder, serverCfg)

	cfg := testConfig()
	cfg.Peers = []string{url}
	cfg.MaxRounds = 100
	s := NewSyncer(hashsync.New(requester), requester, NewClient(cfg), cfg)
	require.NoError(t, s.SyncOnce(context.Background()))

	all, err := requester.GetAll()
	require.NoError(t, err)
	require.ElementsMatch(t, records, all)
}

func TestSyncMaxRounds(t *testing.T) {
	ctrl := gomock.NewController(t)
	sync := NewMocksynchronizer(ctrl)
	sink := NewMockrecordSink(ctrl)
	client := NewMockpeerClient(ctrl)
	cfg := testConfig()
	cfg.Peers = []string{"peer"}
	cfg.MaxRounds = 3

	records := genRecords("rec", 3)
	sync.EXPECT().BuildRequest().Return(&hashsync.Request{}, nil).Times(3)
	for _, rec := range records {
		client.EXPECT().GetData(gomock.Any(), "peer", gomock.Any()).
			Return(&hashsync.Response{Records: []types.Record{rec}, Truncated: true}, nil)
		sink.EXPECT().Put(rec).Return(true, nil)
	}
	require.NoError(t, NewSyncer(sync, sink, client, cfg).SyncOnce(context.Background()))
}

func TestSyncDropsBadRecords(t *testing.T) {
	ctrl := gomock.NewController(t)
	sync := NewMocksynchronizer(ctrl)
	sink := NewMockrecordSink(ctrl)
	client := NewMockpeerClient(ctrl)
	cfg := testConfig()
	cfg.Peers = []string{"peer"}

	good := types.NewRecord([]byte("good"))
	bad := types.NewRecord([]byte("bad"))
	bad.Payload = []byte("forged")

	sync.EXPECT().BuildRequest().Return(&hashsync.Request{}, nil)
	client.EXPECT().GetData(gomock.Any(), "peer", gomock.Any()).
		Return(&hashsync.Response{Records: []types.Record{bad, good}}, nil)
	sink.EXPECT().Put(good).Return(true, nil)
	require.NoError(t, NewSyncer(sync, sink, client, cfg).SyncOnce(context.Background()))
}

func TestSyncPeerFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	sync := NewMocksynchronizer(ctrl)
	sink := NewMockrecordSink(ctrl)
	client := NewMockpeerClient(ctrl)
	cfg := testConfig()
	cfg.Peers = []string{"down", "up"}

	rec := types.NewRecord([]byte("rec"))
	sync.EXPECT().BuildRequest().Return(&hashsync.Request{}, nil).Times(2)
	client.EXPECT().GetData(gomock.Any(), "down", gomock.Any()).Return(nil, errors.New("connection refused"))
	client.EXPECT().GetData(gomock.Any(), "up", gomock.Any()).Return(&hashsync.Response{Records: []types.Record{rec}}, nil)
	sink.EXPECT().Put(rec).Return(true, nil)

	err := NewSyncer(sync, sink, client, cfg).SyncOnce(context.Background())
	require.ErrorContains(t, err, "peer down")
}

func TestSyncStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	sync := NewMocksynchronizer(ctrl)
	sink := NewMockrecordSink(ctrl)
	client := NewMockpeerClient(ctrl)
	cfg := testConfig()
	cfg.Peers = []string{"peer"}

	rec := types.NewRecord([]byte("rec"))
	errWrite := errors.New("write failed")
	sync.EXPECT().BuildRequest().Return(&hashsync.Request{}, nil)
	client.EXPECT().GetData(gomock.Any(), "peer", gomock.Any()).
		Return(&hashsync.Response{Records: []types.Record{rec}, Truncated: true}, nil)
	sink.EXPECT().Put(rec).Return(false, errWrite)
	require.ErrorIs(t, NewSyncer(sync, sink, client, cfg).SyncOnce(context.Background()), errWrite)
}

func TestRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	sync := NewMocksynchronizer(ctrl)
	sink := NewMockrecordSink(ctrl)
	client := NewMockpeerClient(ctrl)
	clock := clockwork.NewFakeClock()
	cfg := testConfig()
	cfg.Peers = []string{"peer"}
	cfg.Interval = time.Minute

	calls := make(chan struct{}, 10)
	sync.EXPECT().BuildRequest().Return(&hashsync.Request{}, nil).AnyTimes()
	client.EXPECT().GetData(gomock.Any(), "peer", gomock.Any()).
		DoAndReturn(func(context.Context, string, *hashsync.Request) (*hashsync.Response, error) {
			calls <- struct{}{}
			return &hashsync.Response{}, nil
		}).AnyTimes()

	s := NewSyncer(sync, sink, client, cfg, WithClock(clock), WithLogger(zaptest.NewLogger(t)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for i := range 3 {
		select {
		case <-calls:
		case <-time.After(time.Second):
			require.FailNow(t, "no sync round", "round %d", i)
		}
		clock.BlockUntil(1)
		clock.Advance(cfg.Interval)
	}
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.FailNow(t, "run didn't stop")
	}
}

func TestRunWithoutPeers(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := NewSyncer(NewMocksynchronizer(ctrl), NewMockrecordSink(ctrl), NewMockpeerClient(ctrl), testConfig())
	require.NoError(t, s.Run(context.Background()))
}

func TestNewSyncerZeroInterval(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = 0
	s := NewSyncer(nil, nil, nil, cfg)
	require.Equal(t, DefaultConfig().Interval, s.cfg.Interval)
}
