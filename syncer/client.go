package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/bisq-network/bisq-sub006/codec"
	"github.com/bisq-network/bisq-sub006/hashsync"
)

var (
	ErrPeerNotReady   = errors.New("peer is not ready")
	ErrInvalidRequest = errors.New("invalid request")
)

// ParsePeer returns the base URL of a peer. An address without a scheme,
// such as "localhost:7780", is taken as http.
func ParsePeer(peer string) (*url.URL, error) {
	if !strings.Contains(peer, "://") {
		peer = "http://" + peer
	}
	base, err := url.Parse(peer)
	if err != nil {
		return nil, fmt.Errorf("parse peer address %q: %w", peer, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("peer address %q: unsupported scheme %q", peer, base.Scheme)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("peer address %q: missing host", peer)
	}
	return base, nil
}

// A wrapper around zap.Logger to make it compatible with
// retryablehttp.LeveledLogger interface.
type retryableHttpLogger struct {
	inner *zap.Logger
}

func (r retryableHttpLogger) Error(format string, args ...any) {
	r.inner.Sugar().Errorw(format, args...)
}

func (r retryableHttpLogger) Info(format string, args ...any) {
	r.inner.Sugar().Infow(format, args...)
}

func (r retryableHttpLogger) Warn(format string, args ...any) {
	r.inner.Sugar().Warnw(format, args...)
}

func (r retryableHttpLogger) Debug(format string, args ...any) {
	r.inner.Sugar().Debugw(format, args...)
}

type ClientOpt func(*Client)

func WithClientLogger(logger *zap.Logger) ClientOpt {
	return func(c *Client) {
		c.logger = logger
		c.client.Logger = &retryableHttpLogger{inner: logger}
		c.client.ResponseLogHook = func(_ retryablehttp.Logger, resp *http.Response) {
			c.logger.Debug(
				"response received",
				zap.Stringer("url", resp.Request.URL),
				zap.Int("status", resp.StatusCode),
			)
		}
	}
}

func withCustomHttpClient(client *http.Client) ClientOpt {
	return func(c *Client) {
		c.client.HTTPClient = client
	}
}

// Client fetches records from peers' sync servers.
type Client struct {
	logger  *zap.Logger
	client  *retryablehttp.Client
	maxBody int64
}

func NewClient(cfg Config, opts ...ClientOpt) *Client {
	c := &Client{
		logger: zap.NewNop(),
		client: &retryablehttp.Client{
			HTTPClient:   &http.Client{Timeout: cfg.RequestTimeout},
			RetryMax:     cfg.MaxRequestRetries,
			RetryWaitMin: cfg.RequestRetryDelay,
			RetryWaitMax: 2 * cfg.RequestRetryDelay,
			Backoff:      retryablehttp.LinearJitterBackoff,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			// return the last response so callers see the peer's status
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
		},
		// encoded records may exceed the budget by their length prefixes
		maxBody: int64(cfg.MaxResponseSize) + int64(hashsync.MaxRecords)*8 + 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetData sends req to the sync server at peer, a base URL.
func (c *Client) GetData(ctx context.Context, peer string, req *hashsync.Request) (*hashsync.Response, error) {
	base, err := ParsePeer(peer)
	if err != nil {
		return nil, err
	}
	body, err := codec.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	hreq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, base.JoinPath(GetDataPath).String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	hreq.Header.Set("Content-Type", contentType)

	res, err := c.client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("doing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: %s", ErrPeerNotReady, peer)
	case http.StatusBadRequest:
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, fmt.Errorf("%w: response status code: %s, body: %s", ErrInvalidRequest, res.Status, bytes.TrimSpace(msg))
	default:
		return nil, fmt.Errorf("unrecognized error: status code: %s", res.Status)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	var resp hashsync.Response
	if err := codec.Decode(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}
