// Package discovery polls the Gamma API for open up/down candle markets
// and hands new market windows to the session manager.
package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

// Client is an HTTP client for the Gamma markets API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Gamma API client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// gammaMarket is the subset of the Gamma market payload we consume.
// Outcomes and token IDs arrive as JSON-encoded string arrays.
type gammaMarket struct {
	ID           string `json:"id"`
	Question     string `json:"question"`
	Slug         string `json:"slug"`
	ConditionID  string `json:"conditionId"`
	Outcomes     string `json:"outcomes"`
	ClobTokenIDs string `json:"clobTokenIds"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	Active       bool   `json:"active"`
	Closed       bool   `json:"closed"`
}

// FetchCandleMarkets returns open up/down candle markets for the requested
// assets, soonest-ending first. Markets that are not recognizable candle
// markets are filtered out.
func (c *Client) FetchCandleMarkets(ctx context.Context, assets []types.Asset, limit int) ([]*types.CandleMarket, error) {
	endpoint := fmt.Sprintf("%s/markets", c.baseURL)

	params := url.Values{}
	params.Add("closed", "false")
	params.Add("active", "true")
	params.Add("limit", strconv.Itoa(limit))
	params.Add("order", "endDate")
	params.Add("ascending", "true")

	requestURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	// Gamma returns a direct array, not a wrapped object.
	var raw []gammaMarket
	err = json.Unmarshal(body, &raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	markets := make([]*types.CandleMarket, 0, len(raw))
	for i := range raw {
		market, ok := c.parseCandleMarket(&raw[i], assets)
		if !ok {
			continue
		}
		markets = append(markets, market)
	}

	c.logger.Debug("fetched-candle-markets",
		zap.Int("raw-count", len(raw)),
		zap.Int("candle-count", len(markets)))

	return markets, nil
}

// parseCandleMarket converts a Gamma market into a CandleMarket. It returns
// false for markets that are not up/down candles for a tracked asset.
func (c *Client) parseCandleMarket(gm *gammaMarket, assets []types.Asset) (*types.CandleMarket, bool) {
	asset, ok := assetFromSlug(gm.Slug, assets)
	if !ok {
		return nil, false
	}

	var outcomes []string
	if json.Unmarshal([]byte(gm.Outcomes), &outcomes) != nil {
		return nil, false
	}

	var tokenIDs []string
	if json.Unmarshal([]byte(gm.ClobTokenIDs), &tokenIDs) != nil {
		return nil, false
	}

	if len(outcomes) != 2 || len(tokenIDs) != 2 {
		return nil, false
	}

	var upToken, downToken string
	for i, outcome := range outcomes {
		switch strings.ToLower(outcome) {
		case "up":
			upToken = tokenIDs[i]
		case "down":
			downToken = tokenIDs[i]
		}
	}
	if upToken == "" || downToken == "" {
		return nil, false
	}

	startTime, err := time.Parse(time.RFC3339, gm.StartDate)
	if err != nil {
		return nil, false
	}
	endTime, err := time.Parse(time.RFC3339, gm.EndDate)
	if err != nil {
		return nil, false
	}

	timeframe, ok := timeframeFromWindow(endTime.Sub(startTime))
	if !ok {
		c.logger.Debug("skipping-market-odd-window",
			zap.String("slug", gm.Slug),
			zap.Duration("window", endTime.Sub(startTime)))
		return nil, false
	}

	return &types.CandleMarket{
		ID:          gm.ID,
		Slug:        gm.Slug,
		Question:    gm.Question,
		Asset:       asset,
		Timeframe:   timeframe,
		ConditionID: gm.ConditionID,
		UpTokenID:   upToken,
		DownTokenID: downToken,
		StartTime:   startTime,
		EndTime:     endTime,
	}, true
}

// slugKeywords maps slug substrings to assets.
var slugKeywords = map[string]types.Asset{
	"bitcoin":  types.AssetBTC,
	"btc":      types.AssetBTC,
	"ethereum": types.AssetETH,
	"eth":      types.AssetETH,
	"solana":   types.AssetSOL,
	"sol":      types.AssetSOL,
}

// assetFromSlug matches an up/down candle slug to a tracked asset.
func assetFromSlug(slug string, assets []types.Asset) (types.Asset, bool) {
	if !strings.Contains(slug, "up-or-down") {
		return "", false
	}

	for keyword, asset := range slugKeywords {
		if !strings.HasPrefix(slug, keyword+"-") {
			continue
		}
		for _, tracked := range assets {
			if tracked == asset {
				return asset, true
			}
		}
		return "", false
	}

	return "", false
}

// timeframeFromWindow matches a market window to a known timeframe,
// tolerating one minute of scheduling slop.
func timeframeFromWindow(window time.Duration) (types.Timeframe, bool) {
	const slop = time.Minute

	for _, tf := range []types.Timeframe{
		types.Timeframe5m,
		types.Timeframe15m,
		types.Timeframe1h,
		types.Timeframe4h,
		types.Timeframe1d,
	} {
		d := tf.Duration()
		if window >= d-slop && window <= d+slop {
			return tf, true
		}
	}

	return "", false
}
