package stream

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

func testConfig() Config {
	logger := zap.NewNop()
	return Config{
		URL:                   "wss://stream.binance.com:9443/ws",
		DialTimeout:           10 * time.Second,
		PingInterval:          10 * time.Second,
		ReconnectInitialDelay: 1 * time.Second,
		ReconnectMaxDelay:     30 * time.Second,
		ReconnectBackoffMult:  2.0,
		ReconnectMaxAttempts:  5,
		TickBufferSize:        1000,
		Logger:                logger,
	}
}

func TestNew(t *testing.T) {
	cfg := testConfig()
	mgr := New(cfg)

	if mgr == nil {
		t.Fatal("expected non-nil manager")
	}

	if mgr.url != cfg.URL {
		t.Errorf("expected URL %q, got %q", cfg.URL, mgr.url)
	}

	if mgr.reconnectMgr == nil {
		t.Error("expected non-nil reconnect manager")
	}

	if cap(mgr.tickChan) != cfg.TickBufferSize {
		t.Errorf("expected tick channel capacity %d, got %d", cfg.TickBufferSize, cap(mgr.tickChan))
	}

	if mgr.Degraded() {
		t.Error("new manager should not start degraded")
	}
}

func TestSubscribe_EmptyAssets(t *testing.T) {
	mgr := New(testConfig())

	err := mgr.Subscribe(context.Background(), nil)
	if err != nil {
		t.Errorf("expected no error for empty assets, got %v", err)
	}
}

func TestParseTick_TradeEvent(t *testing.T) {
	mgr := New(testConfig())
	mgr.subscribed["BTCUSDT"] = types.AssetBTC

	message := []byte(`{"e":"trade","E":1700000000100,"s":"BTCUSDT","t":987654321,"p":"50123.45","q":"0.01","T":1700000000000,"m":true,"M":true}`)

	tick, ok := mgr.parseTick(message)
	if !ok {
		t.Fatal("expected trade event to parse")
	}

	if tick.Asset != types.AssetBTC {
		t.Errorf("expected BTC, got %s", tick.Asset)
	}

	if tick.Price != 50123.45 {
		t.Errorf("expected price 50123.45, got %f", tick.Price)
	}

	if tick.Time != time.UnixMilli(1700000000000) {
		t.Errorf("unexpected tick time %v", tick.Time)
	}
}

func TestParseTick_SkipsControlAndUnknown(t *testing.T) {
	mgr := New(testConfig())
	mgr.subscribed["BTCUSDT"] = types.AssetBTC

	tests := []struct {
		name    string
		message string
	}{
		{"subscribe ack", `{"result":null,"id":1}`},
		{"unsubscribed symbol", `{"e":"trade","s":"ETHUSDT","p":"3000.00","T":1700000000000}`},
		{"non-trade event", `{"e":"kline","s":"BTCUSDT","p":"50000.00","T":1700000000000}`},
		{"zero price", `{"e":"trade","s":"BTCUSDT","p":"0","T":1700000000000}`},
		{"garbage price", `{"e":"trade","s":"BTCUSDT","p":"abc","T":1700000000000}`},
		{"not json", `hello`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := mgr.parseTick([]byte(tt.message))
			if ok {
				t.Errorf("expected message to be skipped: %s", tt.message)
			}
		})
	}
}

func TestSubscribe_DuplicateAssets(t *testing.T) {
	mgr := New(testConfig())

	mgr.mu.Lock()
	mgr.subscribed["BTCUSDT"] = types.AssetBTC
	mgr.mu.Unlock()

	// All assets already subscribed, so no write should be attempted even
	// though there is no live connection.
	err := mgr.Subscribe(context.Background(), []types.Asset{types.AssetBTC})
	if err != nil {
		t.Errorf("expected no error for duplicate assets, got %v", err)
	}
}
