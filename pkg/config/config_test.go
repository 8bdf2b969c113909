package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, []types.Asset{types.AssetBTC, types.AssetETH}, cfg.Assets)
	assert.Equal(t, []types.Timeframe{types.Timeframe5m, types.Timeframe15m, types.Timeframe1h}, cfg.Timeframes)
	assert.Equal(t, 0.55, cfg.MinProbability)
	assert.Equal(t, 25.0, cfg.BudgetPerMarket[types.Timeframe5m])
	assert.Equal(t, 10*time.Second, cfg.TradeTickInterval)
	assert.Equal(t, 5*time.Minute, cfg.RedemptionInterval)
	assert.Equal(t, 30*time.Second, cfg.StreamStaleThreshold)
	assert.Equal(t, 5, cfg.StreamReconnectAttempts)
	assert.Equal(t, "memory", cfg.StorageMode)
	assert.NotEmpty(t, cfg.RPCEndpoints)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("ASSETS", "SOL")
	t.Setenv("TIMEFRAMES", "1h,4h")
	t.Setenv("BUDGET_1H", "50")
	t.Setenv("MIN_PROBABILITY", "0.6")
	t.Setenv("DRY_RUN", "false")
	t.Setenv("POLYGON_RPC_ENDPOINTS", "https://a.example,https://b.example")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, []types.Asset{types.AssetSOL}, cfg.Assets)
	assert.Equal(t, []types.Timeframe{types.Timeframe1h, types.Timeframe4h}, cfg.Timeframes)
	assert.Equal(t, 50.0, cfg.BudgetPerMarket[types.Timeframe1h])
	assert.Equal(t, 25.0, cfg.BudgetPerMarket[types.Timeframe4h])
	assert.Equal(t, 0.6, cfg.MinProbability)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.RPCEndpoints)
}

func TestLoadFromEnv_InvalidAsset(t *testing.T) {
	t.Setenv("ASSETS", "DOGE")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ASSETS")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HTTPPort:                "8080",
			Assets:                  []types.Asset{types.AssetBTC},
			Timeframes:              []types.Timeframe{types.Timeframe1h},
			BudgetPerMarket:         map[types.Timeframe]float64{types.Timeframe1h: 25},
			MinProbability:          0.55,
			InitialBudget:           100,
			RPCEndpoints:            []string{"https://polygon-rpc.com"},
			StorageMode:             "memory",
			StreamReconnectAttempts: 5,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "empty port",
			mutate:  func(c *Config) { c.HTTPPort = "" },
			wantErr: "HTTP_PORT",
		},
		{
			name:    "no assets",
			mutate:  func(c *Config) { c.Assets = nil },
			wantErr: "ASSETS",
		},
		{
			name:    "probability too low",
			mutate:  func(c *Config) { c.MinProbability = 0.5 },
			wantErr: "MIN_PROBABILITY",
		},
		{
			name:    "probability too high",
			mutate:  func(c *Config) { c.MinProbability = 1.0 },
			wantErr: "MIN_PROBABILITY",
		},
		{
			name:    "negative budget",
			mutate:  func(c *Config) { c.BudgetPerMarket[types.Timeframe1h] = -1 },
			wantErr: "budget",
		},
		{
			name:    "no rpc endpoints",
			mutate:  func(c *Config) { c.RPCEndpoints = nil },
			wantErr: "POLYGON_RPC_ENDPOINTS",
		},
		{
			name:    "bad storage mode",
			mutate:  func(c *Config) { c.StorageMode = "sqlite" },
			wantErr: "STORAGE_MODE",
		},
		{
			name:    "zero reconnect attempts",
			mutate:  func(c *Config) { c.StreamReconnectAttempts = 0 },
			wantErr: "STREAM_RECONNECT_MAX_ATTEMPTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDefaultTranches_BudgetsSumToOne(t *testing.T) {
	for tf, points := range defaultTranches {
		var sum float64
		prev := -1.0
		for _, p := range points {
			assert.Greater(t, p.FracTime, prev, "tranche times must be increasing for %s", tf)
			prev = p.FracTime
			sum += p.FracBudget
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "budget fractions for %s should sum to 1", tf)
	}
}
