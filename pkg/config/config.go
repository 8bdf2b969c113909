package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

// TranchePoint is one entry of a staged bet schedule: fire at FracTime of
// the window, staking FracBudget of the per-market budget.
type TranchePoint struct {
	FracTime   float64
	FracBudget float64
}

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string
	DryRun   bool

	// Strategy
	StrategyID     string
	Assets         []types.Asset
	Timeframes     []types.Timeframe
	BudgetPerMarket map[types.Timeframe]float64
	Tranches        map[types.Timeframe][]TranchePoint
	MinProbability  float64
	InitialBudget   float64

	// Polymarket API
	PolymarketGammaURL   string
	PolymarketCLOBURL    string
	PolymarketAPIKey     string
	PolymarketSecret     string
	PolymarketPassphrase string
	PolymarketPrivateKey string
	PolymarketProxyAddr  string

	// Price stream
	StreamURL               string
	StreamRESTURL           string
	StreamDialTimeout       time.Duration
	StreamPingInterval      time.Duration
	StreamStaleThreshold    time.Duration
	StreamReconnectInitial  time.Duration
	StreamReconnectMax      time.Duration
	StreamReconnectBackoff  float64
	StreamReconnectAttempts int
	StreamBufferSize        int

	// Loops
	DiscoveryPollInterval time.Duration
	DiscoveryMarketLimit  int
	MinWindowRemaining    time.Duration
	TradeTickInterval     time.Duration
	RedemptionInterval    time.Duration
	ResolutionGracePeriod time.Duration
	WalletPollInterval    time.Duration

	// Settlement RPC
	RPCEndpoints []string
	RPCTimeout   time.Duration
	TxWaitTimeout time.Duration

	// Ledger storage
	StorageMode  string // "postgres" or "memory"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// defaultTranches holds the staged schedules per timeframe. Budget
// fractions sum to 1.0 for each timeframe.
//
//nolint:gochecknoglobals // Static schedule table
var defaultTranches = map[types.Timeframe][]TranchePoint{
	types.Timeframe5m: {
		{FracTime: 0.2, FracBudget: 0.25},
		{FracTime: 0.5, FracBudget: 0.35},
		{FracTime: 0.8, FracBudget: 0.40},
	},
	types.Timeframe15m: {
		{FracTime: 0.07, FracBudget: 0.125},
		{FracTime: 0.27, FracBudget: 0.25},
		{FracTime: 0.47, FracBudget: 0.375},
		{FracTime: 0.67, FracBudget: 0.25},
	},
	types.Timeframe1h: {
		{FracTime: 0.08, FracBudget: 0.15},
		{FracTime: 0.25, FracBudget: 0.25},
		{FracTime: 0.50, FracBudget: 0.35},
		{FracTime: 0.75, FracBudget: 0.25},
	},
	types.Timeframe4h: {
		{FracTime: 0.06, FracBudget: 0.15},
		{FracTime: 0.25, FracBudget: 0.25},
		{FracTime: 0.50, FracBudget: 0.35},
		{FracTime: 0.75, FracBudget: 0.25},
	},
	types.Timeframe1d: {
		{FracTime: 0.04, FracBudget: 0.15},
		{FracTime: 0.17, FracBudget: 0.25},
		{FracTime: 0.50, FracBudget: 0.35},
		{FracTime: 0.75, FracBudget: 0.25},
	},
}

// defaultRPCEndpoints are public Polygon RPCs tried in preference order.
//
//nolint:gochecknoglobals // Static endpoint table
var defaultRPCEndpoints = []string{
	"https://polygon-rpc.com",
	"https://polygon-bor-rpc.publicnode.com",
	"https://rpc.ankr.com/polygon",
	"https://1rpc.io/matic",
	"https://polygon.drpc.org",
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	assets, err := parseAssets(getEnvOrDefault("ASSETS", "BTC,ETH"))
	if err != nil {
		return nil, fmt.Errorf("parse ASSETS: %w", err)
	}

	timeframes, err := parseTimeframes(getEnvOrDefault("TIMEFRAMES", "5m,15m,1h"))
	if err != nil {
		return nil, fmt.Errorf("parse TIMEFRAMES: %w", err)
	}

	budgets := make(map[types.Timeframe]float64, len(timeframes))
	for _, tf := range timeframes {
		key := "BUDGET_" + strings.ToUpper(string(tf))
		budgets[tf] = getFloat64OrDefault(key, 25.0)
	}

	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),
		DryRun:   getBoolOrDefault("DRY_RUN", true),

		// Strategy defaults
		StrategyID:      getEnvOrDefault("STRATEGY_ID", "updown-candle"),
		Assets:          assets,
		Timeframes:      timeframes,
		BudgetPerMarket: budgets,
		Tranches:        defaultTranches,
		MinProbability:  getFloat64OrDefault("MIN_PROBABILITY", 0.55),
		InitialBudget:   getFloat64OrDefault("INITIAL_BUDGET", 100.0),

		// Polymarket API defaults
		PolymarketGammaURL:   getEnvOrDefault("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		PolymarketCLOBURL:    getEnvOrDefault("POLYMARKET_CLOB_URL", "https://clob.polymarket.com"),
		PolymarketAPIKey:     os.Getenv("POLYMARKET_API_KEY"),
		PolymarketSecret:     os.Getenv("POLYMARKET_SECRET"),
		PolymarketPassphrase: os.Getenv("POLYMARKET_PASSPHRASE"),
		PolymarketPrivateKey: os.Getenv("POLYMARKET_PRIVATE_KEY"),
		PolymarketProxyAddr:  os.Getenv("POLYMARKET_PROXY_ADDRESS"),

		// Price stream defaults
		StreamURL:               getEnvOrDefault("PRICE_STREAM_URL", "wss://stream.binance.com:9443/ws"),
		StreamRESTURL:           getEnvOrDefault("PRICE_REST_URL", "https://api.binance.com/api/v3/ticker/price"),
		StreamDialTimeout:       getDurationOrDefault("STREAM_DIAL_TIMEOUT", 10*time.Second),
		StreamPingInterval:      getDurationOrDefault("STREAM_PING_INTERVAL", 30*time.Second),
		StreamStaleThreshold:    getDurationOrDefault("STREAM_STALE_THRESHOLD", 30*time.Second),
		StreamReconnectInitial:  getDurationOrDefault("STREAM_RECONNECT_INITIAL_DELAY", 1*time.Second),
		StreamReconnectMax:      getDurationOrDefault("STREAM_RECONNECT_MAX_DELAY", 30*time.Second),
		StreamReconnectBackoff:  getFloat64OrDefault("STREAM_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		StreamReconnectAttempts: getIntOrDefault("STREAM_RECONNECT_MAX_ATTEMPTS", 5),
		StreamBufferSize:        getIntOrDefault("STREAM_BUFFER_SIZE", 1000),

		// Loop defaults
		DiscoveryPollInterval: getDurationOrDefault("DISCOVERY_POLL_INTERVAL", 30*time.Second),
		DiscoveryMarketLimit:  getIntOrDefault("DISCOVERY_MARKET_LIMIT", 50),
		MinWindowRemaining:    getDurationOrDefault("MIN_WINDOW_REMAINING", 3*time.Minute),
		TradeTickInterval:     getDurationOrDefault("TRADE_TICK_INTERVAL", 10*time.Second),
		RedemptionInterval:    getDurationOrDefault("REDEMPTION_INTERVAL", 5*time.Minute),
		ResolutionGracePeriod: getDurationOrDefault("RESOLUTION_GRACE_PERIOD", 30*time.Minute),
		WalletPollInterval:    getDurationOrDefault("WALLET_POLL_INTERVAL", time.Minute),

		// Settlement RPC defaults
		RPCEndpoints:  parseList(getEnvOrDefault("POLYGON_RPC_ENDPOINTS", strings.Join(defaultRPCEndpoints, ","))),
		RPCTimeout:    getDurationOrDefault("RPC_TIMEOUT", 15*time.Second),
		TxWaitTimeout: getDurationOrDefault("TX_WAIT_TIMEOUT", 30*time.Second),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "memory"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "polymarket"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "polymarket123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "polymarket_updown"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if len(c.Assets) == 0 {
		return fmt.Errorf("ASSETS cannot be empty")
	}

	if len(c.Timeframes) == 0 {
		return fmt.Errorf("TIMEFRAMES cannot be empty")
	}

	if c.MinProbability <= 0.5 || c.MinProbability >= 1.0 {
		return fmt.Errorf("MIN_PROBABILITY must be between 0.5 and 1.0, got %f", c.MinProbability)
	}

	if c.InitialBudget <= 0 {
		return fmt.Errorf("INITIAL_BUDGET must be positive, got %f", c.InitialBudget)
	}

	for tf, budget := range c.BudgetPerMarket {
		if budget <= 0 {
			return fmt.Errorf("budget for timeframe %s must be positive, got %f", tf, budget)
		}
	}

	if len(c.RPCEndpoints) == 0 {
		return fmt.Errorf("POLYGON_RPC_ENDPOINTS cannot be empty")
	}

	if c.StorageMode != "postgres" && c.StorageMode != "memory" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'memory', got %q", c.StorageMode)
	}

	if c.StreamReconnectAttempts <= 0 {
		return fmt.Errorf("STREAM_RECONNECT_MAX_ATTEMPTS must be positive, got %d", c.StreamReconnectAttempts)
	}

	return nil
}

func parseAssets(s string) ([]types.Asset, error) {
	parts := parseList(s)
	assets := make([]types.Asset, 0, len(parts))
	for _, p := range parts {
		asset, err := types.ParseAsset(p)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

func parseTimeframes(s string) ([]types.Timeframe, error) {
	parts := parseList(s)
	timeframes := make([]types.Timeframe, 0, len(parts))
	for _, p := range parts {
		tf, err := types.ParseTimeframe(p)
		if err != nil {
			return nil, err
		}
		timeframes = append(timeframes, tf)
	}
	return timeframes, nil
}

func parseList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
