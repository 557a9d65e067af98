package syncer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/bisq-network/bisq-sub006/codec"
	"github.com/bisq-network/bisq-sub006/common/types"
	"github.com/bisq-network/bisq-sub006/hash"
	"github.com/bisq-network/bisq-sub006/hashsync"
	"github.com/bisq-network/bisq-sub006/multistore"
)

const (
	GetDataPath = "/v1/getdata"
	contentType = "application/octet-stream"
)

type ServerOpt func(*Server)

func WithServerLogger(logger *zap.Logger) ServerOpt {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server answers sync requests over HTTP.
type Server struct {
	logger *zap.Logger
	cfg    Config
	sync   synchronizer
	view   viewState
	cache  *lru.Cache[types.Hash32, []byte]
	limit  *rate.Limiter

	srv *http.Server
	eg  errgroup.Group
}

func NewServer(sync synchronizer, view viewState, cfg Config, opts ...ServerOpt) (*Server, error) {
	s := &Server{
		logger: zap.NewNop(),
		cfg:    cfg,
		sync:   sync,
		view:   view,
	}
	for _, opt := range opts {
		opt(s)
	}
	size := max(cfg.CacheSize, 1)
	cache, err := lru.New[types.Hash32, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create response cache: %w", err)
	}
	s.cache = cache
	n := max(cfg.RequestsPerInterval, 1)
	s.limit = rate.NewLimiter(rate.Every(cfg.RequestInterval/time.Duration(n)), n)
	mux := http.NewServeMux()
	mux.HandleFunc(GetDataPath, s.handleGetData)
	s.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the HTTP handler serving sync requests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start listens on cfg.Listen and serves in the background.
// Returns the address actually listened on.
func (s *Server) Start() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	s.logger.Info("sync server starts serving", zap.Stringer("addr", ln.Addr()))
	s.eg.Go(func() error {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("sync server stopped", zap.Error(err))
			return err
		}
		return nil
	})
	return ln.Addr(), nil
}

func (s *Server) Stop(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown sync server: %w", err)
	}
	return s.eg.Wait()
}

func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := s.getData(w, r)
	serverRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	serverLatency.Observe(time.Since(start).Seconds())
}

func (s *Server) getData(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		return s.fail(w, http.StatusMethodNotAllowed, "method not allowed")
	}
	if !s.view.Ready() {
		return s.fail(w, http.StatusServiceUnavailable, "not ready")
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestSize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return s.fail(w, http.StatusRequestEntityTooLarge, "request too large")
		}
		return s.fail(w, http.StatusBadRequest, "read request")
	}

	key := s.cacheKey(body)
	if data, ok := s.cache.Get(key); ok {
		cacheHits.Inc()
		return s.write(w, data)
	}

	if err := s.limit.Wait(r.Context()); err != nil {
		rateLimited.Inc()
		return s.fail(w, http.StatusTooManyRequests, "rate limited")
	}
	var req hashsync.Request
	if err := codec.Decode(body, &req); err != nil {
		s.logger.Debug("malformed sync request",
			zap.String("remote", r.RemoteAddr),
			zap.Error(err),
		)
		return s.fail(w, http.StatusBadRequest, "malformed request")
	}
	resp, err := s.sync.BuildResponse(&req, s.cfg.MaxResponseSize)
	switch {
	case errors.Is(err, multistore.ErrNotReady):
		return s.fail(w, http.StatusServiceUnavailable, "not ready")
	case err != nil:
		s.logger.Error("failed to build sync response", zap.Error(err))
		return s.fail(w, http.StatusInternalServerError, "internal error")
	}
	data, err := codec.Encode(resp)
	if err != nil {
		s.logger.Error("failed to encode sync response", zap.Error(err))
		return s.fail(w, http.StatusInternalServerError, "internal error")
	}
	s.cache.Add(key, data)
	s.logger.Debug("served sync request",
		zap.String("remote", r.RemoteAddr),
		zap.Int("entries", len(req.Entries)),
		zap.Int("records", len(resp.Records)),
		zap.Bool("truncated", resp.Truncated),
	)
	return s.write(w, data)
}

// cacheKey binds the request to the current content of the view, so a cached
// response is never served after the live store changed.
func (s *Server) cacheKey(body []byte) types.Hash32 {
	var gen [8]byte
	binary.BigEndian.PutUint64(gen[:], s.view.Generation())
	return hash.Sum(gen[:], body)
}

func (s *Server) write(w http.ResponseWriter, data []byte) int {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("write sync response", zap.Error(err))
	}
	return http.StatusOK
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string) int {
	http.Error(w, msg, status)
	return status
}
