package reporter

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/HerbHall/tracelens/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var _ Reporter = (*Network)(nil)

// Network posts each event as JSON to a collection endpoint. It tries the
// beacon first and falls back to a background POST when the beacon is
// missing or refuses the payload. Events are sent at most once.
type Network struct {
	url     string
	client  *http.Client
	beacon  Beacon
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NetworkOption configures a Network reporter.
type NetworkOption func(*Network)

// WithBeacon sets the preferred sender.
func WithBeacon(b Beacon) NetworkOption {
	return func(n *Network) { n.beacon = b }
}

// WithHTTPClient sets the client used by the fallback sender. Nil keeps
// http.DefaultClient.
func WithHTTPClient(c *http.Client) NetworkOption {
	return func(n *Network) {
		if c != nil {
			n.client = c
		}
	}
}

// WithRateLimit drops events beyond r per second with the given burst.
// A zero rate disables limiting.
func WithRateLimit(r float64, burst int) NetworkOption {
	return func(n *Network) {
		if r <= 0 {
			n.limiter = nil
			return
		}
		n.limiter = rate.NewLimiter(rate.Limit(r), max(burst, 1))
	}
}

// WithSendTimeout bounds each fallback POST.
func WithSendTimeout(d time.Duration) NetworkOption {
	return func(n *Network) { n.timeout = d }
}

// NewNetwork creates a Network reporter targeting url.
func NewNetwork(url string, logger *zap.Logger, opts ...NetworkOption) *Network {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Network{
		url:     url,
		client:  http.DefaultClient,
		timeout: defaultSendTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Network) Name() string { return NameNetwork }

// URL returns the collection endpoint.
func (n *Network) URL() string { return n.url }

func (n *Network) Report(e models.PerformanceEvent) {
	if n.limiter != nil && !n.limiter.Allow() {
		n.logger.Debug("report dropped by rate limit", zap.String("type", string(e.Type)))
		return
	}
	body, err := json.Marshal(e)
	if err != nil {
		n.logger.Debug("encode performance event", zap.Error(err))
		return
	}
	if n.beacon != nil && n.beacon.Send(n.url, "application/json", body) {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		post(n.client, n.timeout, n.url, "application/json", body, n.logger)
	}()
}

// Wait blocks until every fallback send has finished. Sends handed to the
// beacon are not tracked.
func (n *Network) Wait() {
	n.wg.Wait()
}

// Close returns at once. Sends already started keep running to completion
// or to their timeout; none are cancelled.
func (n *Network) Close() error {
	return nil
}
