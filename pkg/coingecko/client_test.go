package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimplePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		assert.Equal(t, "true", r.URL.Query().Get("include_24hr_change"))
		assert.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"bitcoin": {"usd": 67000.5, "usd_market_cap": 1.3e12, "usd_24h_vol": 2.1e10, "usd_24h_change": -1.2},
			"ethereum": {"usd": 3500}
		}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	quotes, err := c.SimplePrice(context.Background(), []string{"bitcoin", "ethereum"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	btc := quotes["bitcoin"]
	require.NotNil(t, btc.USD)
	assert.InDelta(t, 67000.5, *btc.USD, 0.001)
	require.NotNil(t, btc.USD24hChange)
	assert.InDelta(t, -1.2, *btc.USD24hChange, 0.001)

	// Fields the API omitted stay nil.
	eth := quotes["ethereum"]
	require.NotNil(t, eth.USD)
	assert.Nil(t, eth.USDMarketCap)
	assert.Nil(t, eth.USD24hVol)
}

func TestSimplePriceAppliesAliases(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "binancecoin,ripple", r.URL.Query().Get("ids"))
		w.Write([]byte(`{"binancecoin": {"usd": 600}, "ripple": {"usd": 0.5}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	quotes, err := c.SimplePrice(context.Background(), []string{"bnb", "xrp"})
	require.NoError(t, err)

	// Results come back under the caller's ids.
	require.Contains(t, quotes, "bnb")
	require.Contains(t, quotes, "xrp")
	assert.InDelta(t, 600, *quotes["bnb"].USD, 0.001)
	assert.InDelta(t, 0.5, *quotes["xrp"].USD, 0.001)
}

func TestSimplePriceUnknownIDsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bitcoin": {"usd": 67000}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	quotes, err := c.SimplePrice(context.Background(), []string{"bitcoin", "not-a-coin"})
	require.NoError(t, err)
	assert.Contains(t, quotes, "bitcoin")
	assert.NotContains(t, quotes, "not-a-coin")
}

func TestSimplePriceAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.SimplePrice(context.Background(), []string{"bitcoin"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestSimplePriceEmptyIDs(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:0"))
	quotes, err := c.SimplePrice(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestSimplePriceSendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "demo-key", r.Header.Get("x-cg-demo-api-key"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithAPIKey("demo-key"))
	_, err := c.SimplePrice(context.Background(), []string{"bitcoin"})
	require.NoError(t, err)
}
