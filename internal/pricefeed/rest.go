package pricefeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

// RESTClient fetches spot prices over HTTP. It backs the feed when the
// WebSocket stream is stale or degraded.
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRESTClient creates a REST price client.
func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// FetchPrice returns the current spot price for the asset.
func (c *RESTClient) FetchPrice(ctx context.Context, asset types.Asset) (float64, error) {
	reqURL := fmt.Sprintf("%s?symbol=%s", c.baseURL, url.QueryEscape(asset.StreamSymbol()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var ticker tickerResponse
	err = json.NewDecoder(resp.Body).Decode(&ticker)
	if err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", ticker.Price, err)
	}

	if price <= 0 {
		return 0, fmt.Errorf("non-positive price %f for %s", price, asset)
	}

	return price, nil
}
