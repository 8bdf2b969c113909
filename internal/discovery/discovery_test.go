package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

func gammaMarketJSON(id, slug string, start, end time.Time) string {
	return fmt.Sprintf(`{
		"id": %q,
		"question": "Bitcoin Up or Down?",
		"slug": %q,
		"conditionId": "0xcond-%s",
		"outcomes": "[\"Up\", \"Down\"]",
		"clobTokenIds": "[\"tok-up-%s\", \"tok-down-%s\"]",
		"startDate": %q,
		"endDate": %q,
		"active": true,
		"closed": false
	}`, id, slug, id, id, id, start.Format(time.RFC3339), end.Format(time.RFC3339))
}

func TestClient_FetchCandleMarkets(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("closed"))
		assert.Equal(t, "endDate", r.URL.Query().Get("order"))

		body := "[" +
			gammaMarketJSON("1", "bitcoin-up-or-down-aug-31-3pm", now, now.Add(time.Hour)) + "," +
			gammaMarketJSON("2", "ethereum-up-or-down-aug-31", now, now.Add(5*time.Minute)) + "," +
			// Not a candle market.
			gammaMarketJSON("3", "who-wins-the-election", now, now.Add(time.Hour)) + "," +
			// Untracked asset.
			gammaMarketJSON("4", "solana-up-or-down-aug-31", now, now.Add(time.Hour)) + "," +
			// Window matches no known timeframe.
			gammaMarketJSON("5", "bitcoin-up-or-down-odd", now, now.Add(7*time.Minute)) +
			"]"
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())

	markets, err := client.FetchCandleMarkets(context.Background(),
		[]types.Asset{types.AssetBTC, types.AssetETH}, 50)
	require.NoError(t, err)
	require.Len(t, markets, 2)

	assert.Equal(t, types.AssetBTC, markets[0].Asset)
	assert.Equal(t, types.Timeframe1h, markets[0].Timeframe)
	assert.Equal(t, "tok-up-1", markets[0].UpTokenID)
	assert.Equal(t, "tok-down-1", markets[0].DownTokenID)

	assert.Equal(t, types.AssetETH, markets[1].Asset)
	assert.Equal(t, types.Timeframe5m, markets[1].Timeframe)
}

func TestClient_FetchCandleMarkets_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())

	_, err := client.FetchCandleMarkets(context.Background(), []types.Asset{types.AssetBTC}, 50)
	require.Error(t, err)
}

func TestAssetFromSlug(t *testing.T) {
	tracked := []types.Asset{types.AssetBTC, types.AssetETH}

	tests := []struct {
		slug      string
		wantAsset types.Asset
		wantOK    bool
	}{
		{"bitcoin-up-or-down-aug-31-3pm", types.AssetBTC, true},
		{"btc-up-or-down-5m", types.AssetBTC, true},
		{"ethereum-up-or-down-1h", types.AssetETH, true},
		{"solana-up-or-down-1h", "", false}, // not tracked
		{"bitcoin-above-100k", "", false},   // not a candle market
		{"up-or-down-mystery", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			asset, ok := assetFromSlug(tt.slug, tracked)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantAsset, asset)
		})
	}
}

func TestTimeframeFromWindow(t *testing.T) {
	tf, ok := timeframeFromWindow(time.Hour)
	require.True(t, ok)
	assert.Equal(t, types.Timeframe1h, tf)

	// Scheduling slop tolerated.
	tf, ok = timeframeFromWindow(time.Hour + 30*time.Second)
	require.True(t, ok)
	assert.Equal(t, types.Timeframe1h, tf)

	_, ok = timeframeFromWindow(7 * time.Minute)
	assert.False(t, ok)
}

func newTestService(client *Client) *Service {
	return New(&Config{
		Client:       client,
		Assets:       []types.Asset{types.AssetBTC, types.AssetETH},
		Timeframes:   []types.Timeframe{types.Timeframe5m, types.Timeframe1h},
		PollInterval: time.Minute,
		MarketLimit:  50,
		MinRemaining: 3 * time.Minute,
		Logger:       zap.NewNop(),
	})
}

func TestService_FilterNew(t *testing.T) {
	svc := newTestService(nil)
	now := time.Now()

	fresh := &types.CandleMarket{
		ID: "1", Asset: types.AssetBTC, Timeframe: types.Timeframe1h,
		StartTime: now, EndTime: now.Add(time.Hour),
	}
	almostOver := &types.CandleMarket{
		ID: "2", Asset: types.AssetBTC, Timeframe: types.Timeframe5m,
		StartTime: now.Add(-3 * time.Minute), EndTime: now.Add(2 * time.Minute),
	}
	wrongTimeframe := &types.CandleMarket{
		ID: "3", Asset: types.AssetBTC, Timeframe: types.Timeframe1d,
		StartTime: now, EndTime: now.Add(24 * time.Hour),
	}

	out := svc.filterNew([]*types.CandleMarket{fresh, almostOver, wrongTimeframe}, now)
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].ID)

	// A second poll returns nothing new.
	out = svc.filterNew([]*types.CandleMarket{fresh, almostOver}, now)
	assert.Empty(t, out)
}

func TestService_PruneSeen(t *testing.T) {
	svc := newTestService(nil)
	now := time.Now()

	svc.seen["old"] = now.Add(-25 * time.Hour)
	svc.seen["recent"] = now.Add(-time.Hour)

	svc.pruneSeen(now)

	assert.NotContains(t, svc.seen, "old")
	assert.Contains(t, svc.seen, "recent")
}
