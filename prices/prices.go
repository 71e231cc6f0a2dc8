// Package prices values reserve collateral in USD. Rates come from an
// optional HTTP feed with a TTL cache; configured static rates serve as
// fallback when the feed is unset or unreachable.
package prices

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/lamassu-labs/mentowatch/am"
	"github.com/lamassu-labs/mentowatch/errors"
	"github.com/lamassu-labs/mentowatch/internal/httpclient"
	"github.com/lamassu-labs/mentowatch/logger"
)

const maxFeedBody = 1 << 20 // 1 MiB

// Feed resolves USD rates for reserve asset symbols.
type Feed struct {
	url    string
	ttl    time.Duration
	static map[string]float64
	client *httpclient.SaferClient

	mu        sync.Mutex
	cached    map[string]float64
	fetchedAt time.Time

	now func() time.Time
}

// feedResponse is the expected shape of the rate endpoint:
//
//	{"rates": {"CELO": 0.62, "USDC": 1.0}}
type feedResponse struct {
	Rates map[string]float64 `json:"rates"`
}

// NewFeed builds a feed from config. An empty URL means static rates
// only.
func NewFeed(cfg am.PricesConfig) *Feed {
	static := map[string]float64{}
	for s, r := range cfg.Static {
		static[s] = r
	}
	return &Feed{
		url:    cfg.URL,
		ttl:    time.Duration(cfg.TTLSeconds) * time.Second,
		static: static,
		client: httpclient.NewSaferClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
		now:    time.Now,
	}
}

// Rate returns the USD rate for symbol and whether one is known. Feed
// rates take precedence over static rates; a stale cache is refreshed
// at most once per TTL.
func (f *Feed) Rate(symbol string) (float64, bool) {
	rates := f.currentRates()
	if r, ok := rates[symbol]; ok && r > 0 {
		return r, true
	}
	if r, ok := f.static[symbol]; ok && r > 0 {
		return r, true
	}
	return 0, false
}

func (f *Feed) currentRates() map[string]float64 {
	if f.url == "" {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cached != nil && f.now().Sub(f.fetchedAt) < f.ttl {
		return f.cached
	}

	rates, err := f.fetch()
	if err != nil {
		logger.Warnw("price feed fetch failed", logger.FieldError, err)
		// Keep serving the stale cache over nothing.
		return f.cached
	}

	f.cached = rates
	f.fetchedAt = f.now()
	logger.Debugw("price feed refreshed", logger.FieldCount, len(rates))
	return f.cached
}

func (f *Feed) fetch() (map[string]float64, error) {
	resp, err := f.client.Get(f.url)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching rates from %s", f.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, errors.Newf("rate endpoint %s returned status %d", f.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return nil, errors.Wrap(err, "reading rate response")
	}

	var parsed feedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(err, "parsing rate response")
	}
	if len(parsed.Rates) == 0 {
		return nil, errors.New("rate response contained no rates")
	}
	return parsed.Rates, nil
}
