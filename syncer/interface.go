package syncer

import (
	"context"

	"github.com/bisq-network/bisq-sub006/common/types"
	"github.com/bisq-network/bisq-sub006/hashsync"
)

//go:generate mockgen -package=syncer -destination=./mocks.go -source=./interface.go

type synchronizer interface {
	BuildRequest() (*hashsync.Request, error)
	BuildResponse(req *hashsync.Request, sizeBudget int) (*hashsync.Response, error)
}

type viewState interface {
	Ready() bool
	Generation() uint64
}

type recordSink interface {
	Put(rec types.Record) (bool, error)
}

type peerClient interface {
	GetData(ctx context.Context, peer string, req *hashsync.Request) (*hashsync.Response, error)
}
