// Package coingecko is a minimal client for the public simple-price API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// Listing ids that differ from the price API's canonical ids.
var idAliases = map[string]string{
	"bnb": "binancecoin",
	"xrp": "ripple",
}

// Quote is one coin's USD pricing data.
type Quote struct {
	USD          *float64 `json:"usd"`
	USDMarketCap *float64 `json:"usd_market_cap"`
	USD24hVol    *float64 `json:"usd_24h_vol"`
	USD24hChange *float64 `json:"usd_24h_change"`
}

// Client fetches spot prices for a set of coin ids.
type Client interface {
	// SimplePrice returns quotes keyed by the caller's ids. Ids unknown to
	// the API are simply absent from the result.
	SimplePrice(ctx context.Context, ids []string) (map[string]Quote, error)
}

// APIError is a non-2xx response from the price API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coingecko: api returned %d: %s", e.StatusCode, e.Body)
}

type client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures the client.
type Option func(*client)

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) Option {
	return func(c *client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithAPIKey attaches a demo/pro API key to every request.
func WithAPIKey(key string) Option {
	return func(c *client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// NewClient creates a price API client. The free tier allows roughly 30
// requests per minute; the built-in limiter stays under that.
func NewClient(opts ...Option) Client {
	c := &client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) SimplePrice(ctx context.Context, ids []string) (map[string]Quote, error) {
	if len(ids) == 0 {
		return map[string]Quote{}, nil
	}

	apiIDs := make([]string, len(ids))
	for i, id := range ids {
		apiIDs[i] = canonicalID(id)
	}

	q := url.Values{}
	q.Set("ids", strings.Join(apiIDs, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_market_cap", "true")
	q.Set("include_24hr_vol", "true")
	q.Set("include_24hr_change", "true")

	var raw map[string]Quote
	if err := c.get(ctx, "/simple/price?"+q.Encode(), &raw); err != nil {
		return nil, err
	}

	// Key the result by the caller's ids, not the API's canonical ones.
	out := make(map[string]Quote, len(raw))
	for i, id := range ids {
		if quote, ok := raw[apiIDs[i]]; ok {
			out[id] = quote
		}
	}
	return out, nil
}

func (c *client) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "coingecko: rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "coingecko: build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "coinwatch/1.0")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "coingecko: execute request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "coingecko: read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "coingecko: decode response")
	}
	return nil
}

func canonicalID(id string) string {
	if alias, ok := idAliases[strings.ToLower(id)]; ok {
		return alias
	}
	return id
}
