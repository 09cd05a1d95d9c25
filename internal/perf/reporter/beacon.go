package reporter

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Beacon is a fire-and-forget sender. Send reports whether the payload was
// accepted for delivery; it never waits for the result.
type Beacon interface {
	Send(url, contentType string, body []byte) bool
}

const (
	defaultBeaconInFlight = 4
	defaultSendTimeout    = 10 * time.Second
)

// HTTPBeacon posts payloads in the background with a fixed in-flight quota.
// Send refuses new payloads while the quota is used up.
type HTTPBeacon struct {
	client  *http.Client
	logger  *zap.Logger
	timeout time.Duration
	slots   chan struct{}
	wg      sync.WaitGroup
}

// NewHTTPBeacon creates a beacon allowing inFlight concurrent sends. A nil
// client means http.DefaultClient.
func NewHTTPBeacon(client *http.Client, inFlight int, logger *zap.Logger) *HTTPBeacon {
	if client == nil {
		client = http.DefaultClient
	}
	if inFlight <= 0 {
		inFlight = defaultBeaconInFlight
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPBeacon{
		client:  client,
		logger:  logger,
		timeout: defaultSendTimeout,
		slots:   make(chan struct{}, inFlight),
	}
}

func (b *HTTPBeacon) Send(url, contentType string, body []byte) bool {
	select {
	case b.slots <- struct{}{}:
	default:
		return false
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() { <-b.slots }()
		post(b.client, b.timeout, url, contentType, body, b.logger)
	}()
	return true
}

// Wait blocks until every accepted send has finished.
func (b *HTTPBeacon) Wait() {
	b.wg.Wait()
}

// post performs one POST detached from any caller context. The outcome is
// only logged.
func post(client *http.Client, timeout time.Duration, url, contentType string, body []byte, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		logger.Debug("build report request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		logger.Debug("send report", zap.String("url", url), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		logger.Debug("report rejected",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
	}
}
