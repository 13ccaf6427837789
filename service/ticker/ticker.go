package ticker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tracesanford134/aksol-dapp/service/metrics"
)

// Quote is the last successfully fetched SOL price.
type Quote struct {
	PriceUSD  float64   `json:"price_usd"`
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale"`
}

// Ticker polls an external market-data API for the SOL/USD price. It degrades
// gracefully: a failed poll keeps the previous quote and marks it stale rather
// than failing the panel.
type Ticker struct {
	url        string
	interval   time.Duration
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu   sync.RWMutex
	last *Quote
}

// New creates a price ticker. If httpClient is nil a 10s-timeout default is
// used; if logger is nil, logs are discarded.
func New(url string, interval time.Duration, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Ticker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Ticker{
		url:        url,
		interval:   interval,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
}

// Run polls until ctx is done. The first fetch happens immediately so the
// panel has a price shortly after startup.
func (t *Ticker) Run(ctx context.Context) {
	if err := t.fetch(ctx); err != nil {
		t.logger.WarnContext(ctx, "initial price fetch failed", "error", err)
	}

	tick := time.NewTicker(t.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if err := t.fetch(ctx); err != nil {
				t.logger.WarnContext(ctx, "price fetch failed, keeping previous quote", "error", err)
			}
		}
	}
}

// Current returns the latest quote. ok is false until the first successful
// fetch. A quote older than three poll intervals is marked stale.
func (t *Ticker) Current() (Quote, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.last == nil {
		return Quote{}, false
	}
	q := *t.last
	if time.Since(q.FetchedAt) > 3*t.interval {
		q.Stale = true
	}
	return q, true
}

// priceResponse matches the CoinGecko simple-price shape.
type priceResponse struct {
	Solana struct {
		USD float64 `json:"usd"`
	} `json:"solana"`
}

// fetch performs one poll of the market-data API.
func (t *Ticker) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", t.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.recordFetch("unreachable")
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.recordFetch("error")
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	var body priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.recordFetch("error")
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if body.Solana.USD <= 0 {
		t.recordFetch("error")
		return fmt.Errorf("response has no usable price")
	}

	t.mu.Lock()
	t.last = &Quote{PriceUSD: body.Solana.USD, FetchedAt: time.Now().UTC()}
	t.mu.Unlock()

	t.recordFetch("success")
	t.logger.DebugContext(ctx, "price updated", "price_usd", body.Solana.USD)
	return nil
}

func (t *Ticker) recordFetch(status string) {
	if t.metrics != nil {
		t.metrics.RecordPriceFetch(status)
	}
}
