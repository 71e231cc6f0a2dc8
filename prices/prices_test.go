package prices

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamassu-labs/mentowatch/am"
	"github.com/lamassu-labs/mentowatch/internal/httpclient"
)

func testFeed(t *testing.T, handler http.HandlerFunc, cfg am.PricesConfig) (*Feed, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.URL = srv.URL
	f := NewFeed(cfg)
	// httptest binds to loopback, which the default client blocks.
	f.client = httpclient.WrapClient(srv.Client())
	return f, srv
}

func TestStaticOnlyWhenNoURL(t *testing.T) {
	f := NewFeed(am.PricesConfig{
		TimeoutSeconds: 1,
		Static:         map[string]float64{"USDC": 1.0},
	})

	r, ok := f.Rate("USDC")
	require.True(t, ok)
	assert.Equal(t, 1.0, r)

	_, ok = f.Rate("CELO")
	assert.False(t, ok)
}

func TestFeedRatesOverrideStatic(t *testing.T) {
	f, _ := testFeed(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rates":{"CELO":0.62,"USDC":0.999}}`))
	}, am.PricesConfig{
		TTLSeconds:     300,
		TimeoutSeconds: 1,
		Static:         map[string]float64{"USDC": 1.0, "USDT": 1.0},
	})

	r, ok := f.Rate("CELO")
	require.True(t, ok)
	assert.Equal(t, 0.62, r)

	r, ok = f.Rate("USDC")
	require.True(t, ok)
	assert.Equal(t, 0.999, r)

	// Symbol missing from the feed falls back to static.
	r, ok = f.Rate("USDT")
	require.True(t, ok)
	assert.Equal(t, 1.0, r)
}

func TestCacheRespectsTTL(t *testing.T) {
	var calls atomic.Int64
	f, _ := testFeed(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"rates":{"CELO":0.62}}`))
	}, am.PricesConfig{TTLSeconds: 300, TimeoutSeconds: 1})

	clock := time.Unix(1700000000, 0)
	f.now = func() time.Time { return clock }

	f.Rate("CELO")
	f.Rate("CELO")
	assert.Equal(t, int64(1), calls.Load())

	clock = clock.Add(301 * time.Second)
	f.Rate("CELO")
	assert.Equal(t, int64(2), calls.Load())
}

func TestStaleCacheSurvivesFeedFailure(t *testing.T) {
	var fail atomic.Bool
	f, _ := testFeed(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"rates":{"CELO":0.62}}`))
	}, am.PricesConfig{TTLSeconds: 1, TimeoutSeconds: 1})

	clock := time.Unix(1700000000, 0)
	f.now = func() time.Time { return clock }

	r, ok := f.Rate("CELO")
	require.True(t, ok)
	assert.Equal(t, 0.62, r)

	fail.Store(true)
	clock = clock.Add(2 * time.Second)

	r, ok = f.Rate("CELO")
	require.True(t, ok)
	assert.Equal(t, 0.62, r)
}

func TestBadResponses(t *testing.T) {
	cases := map[string]string{
		"empty rates": `{"rates":{}}`,
		"not json":    `onchain oracle says no`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			f, _ := testFeed(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}, am.PricesConfig{TTLSeconds: 300, TimeoutSeconds: 1})

			_, ok := f.Rate("CELO")
			assert.False(t, ok)
		})
	}
}
