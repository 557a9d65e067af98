package syncer

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	// Listen is the address of the sync server, e.g. ":7780". Empty disables it.
	Listen string `mapstructure:"listen"`
	// Peers are base URLs of nodes to pull records from, e.g.
	// "http://10.0.0.1:7780". A missing scheme defaults to http.
	Peers []string `mapstructure:"peers"`
	// Interval between sync rounds with all peers.
	Interval time.Duration `mapstructure:"interval"`
	// MaxRounds bounds the requests sent to one peer in a sync round while
	// responses keep coming back truncated.
	MaxRounds int `mapstructure:"max-rounds"`
	// MaxPeers is the number of peers synced concurrently.
	MaxPeers int `mapstructure:"max-peers"`

	RequestTimeout    time.Duration `mapstructure:"request-timeout"`
	MaxRequestRetries int           `mapstructure:"max-request-retries"`
	RequestRetryDelay time.Duration `mapstructure:"request-retry-delay"`

	// MaxResponseSize is the size budget of records in one response.
	MaxResponseSize int `mapstructure:"max-response-size"`
	// MaxRequestSize limits the body of an incoming request.
	MaxRequestSize int64 `mapstructure:"max-request-size"`
	// CacheSize is the number of encoded responses kept for repeated requests.
	CacheSize int `mapstructure:"cache-size"`
	// RequestsPerInterval and RequestInterval limit the rate at which the
	// server builds responses. Requests over the limit wait for their turn.
	RequestsPerInterval int           `mapstructure:"requests-per-interval"`
	RequestInterval     time.Duration `mapstructure:"request-interval"`
}

func DefaultConfig() Config {
	return Config{
		Listen:            ":7780",
		Interval:          5 * time.Minute,
		MaxRounds:         10,
		MaxPeers:          4,
		RequestTimeout:    time.Minute,
		MaxRequestRetries: 3,
		RequestRetryDelay: time.Second,
		MaxResponseSize:   8 << 20,
		MaxRequestSize:    64 << 20,
		CacheSize:         64,

		RequestsPerInterval: 100,
		RequestInterval:     time.Second,
	}
}

// Validate reports settings the server, client or syncer can't run with.
func (c Config) Validate() error {
	var errs []error
	if len(c.Peers) > 0 && c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %v", c.Interval))
	}
	if c.RequestInterval <= 0 {
		errs = append(errs, fmt.Errorf("request-interval must be positive, got %v", c.RequestInterval))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request-timeout must not be negative, got %v", c.RequestTimeout))
	}
	if c.MaxResponseSize <= 0 {
		errs = append(errs, fmt.Errorf("max-response-size must be positive, got %d", c.MaxResponseSize))
	}
	for _, peer := range c.Peers {
		if _, err := ParsePeer(peer); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
