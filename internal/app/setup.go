package app

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mselser95/polymarket-updown/internal/discovery"
	"github.com/mselser95/polymarket-updown/internal/exchange"
	"github.com/mselser95/polymarket-updown/internal/ledger"
	"github.com/mselser95/polymarket-updown/internal/pricefeed"
	"github.com/mselser95/polymarket-updown/internal/redemption"
	"github.com/mselser95/polymarket-updown/internal/session"
	"github.com/mselser95/polymarket-updown/internal/settlement"
	"github.com/mselser95/polymarket-updown/internal/strategy"
	"github.com/mselser95/polymarket-updown/pkg/cache"
	"github.com/mselser95/polymarket-updown/pkg/config"
	"github.com/mselser95/polymarket-updown/pkg/healthprobe"
	"github.com/mselser95/polymarket-updown/pkg/httpserver"
	"github.com/mselser95/polymarket-updown/pkg/stream"
	"github.com/mselser95/polymarket-updown/pkg/wallet"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	marketCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	store, err := setupStore(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup store: %w", err)
	}

	budget, err := strategy.NewBudgetManager(ctx, store, cfg.StrategyID, cfg.InitialBudget, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup budget: %w", err)
	}

	streamManager := setupStream(cfg, logger)
	priceFeed := setupPriceFeed(cfg, logger, streamManager)
	discoveryService := setupDiscovery(cfg, logger, marketCache)

	privateKey, walletAddress, err := loadSignerKey(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("load signer key: %w", err)
	}

	exchangeClient, err := setupExchange(cfg, logger, privateKey)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup exchange: %w", err)
	}

	sessionManager, err := session.NewManager(session.Config{
		Feed:            priceFeed,
		Exchange:        exchangeClient,
		Store:           store,
		Budget:          budget,
		Strategy:        strategy.New(cfg.MinProbability, logger),
		TranchePoints:   cfg.Tranches,
		Budgets:         cfg.BudgetPerMarket,
		StrategyID:      cfg.StrategyID,
		TickInterval:    cfg.TradeTickInterval,
		ResolutionGrace: cfg.ResolutionGracePeriod,
		RequestTimeout:  cfg.RPCTimeout,
		Logger:          logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup session manager: %w", err)
	}

	endpointPool, err := settlement.NewEndpointPool(cfg.RPCEndpoints, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup endpoint pool: %w", err)
	}

	redemptionEngine, err := redemption.NewEngine(redemption.Config{
		Store:         store,
		Pool:          endpointPool,
		Cache:         marketCache,
		PrivateKey:    privateKey,
		WalletAddress: walletAddress,
		StrategyID:    cfg.StrategyID,
		Interval:      cfg.RedemptionInterval,
		RPCTimeout:    cfg.RPCTimeout,
		TxWaitTimeout: cfg.TxWaitTimeout,
		DryRun:        cfg.DryRun,
		Logger:        logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup redemption engine: %w", err)
	}

	walletTracker, err := setupWalletTracker(cfg, logger, walletAddress)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup wallet tracker: %w", err)
	}

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Store:         store,
		Sessions:      sessionManager,
		StrategyID:    cfg.StrategyID,
	})

	return &App{
		cfg:              cfg,
		logger:           logger,
		healthChecker:    healthChecker,
		httpServer:       httpServer,
		store:            store,
		streamManager:    streamManager,
		priceFeed:        priceFeed,
		discoveryService: discoveryService,
		sessionManager:   sessionManager,
		redemptionEngine: redemptionEngine,
		walletTracker:    walletTracker,
		ctx:              ctx,
		cancel:           cancel,
	}, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupStore(cfg *config.Config, logger *zap.Logger) (ledger.Store, error) {
	if cfg.StorageMode == "postgres" {
		store, err := ledger.NewPostgresStore(&ledger.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres store: %w", err)
		}
		return store, nil
	}

	return ledger.NewMemoryStore(logger), nil
}

func setupStream(cfg *config.Config, logger *zap.Logger) *stream.Manager {
	return stream.New(stream.Config{
		URL:                   cfg.StreamURL,
		DialTimeout:           cfg.StreamDialTimeout,
		PingInterval:          cfg.StreamPingInterval,
		ReconnectInitialDelay: cfg.StreamReconnectInitial,
		ReconnectMaxDelay:     cfg.StreamReconnectMax,
		ReconnectBackoffMult:  cfg.StreamReconnectBackoff,
		ReconnectMaxAttempts:  cfg.StreamReconnectAttempts,
		TickBufferSize:        cfg.StreamBufferSize,
		Logger:                logger,
	})
}

func setupPriceFeed(cfg *config.Config, logger *zap.Logger, mgr *stream.Manager) *pricefeed.Feed {
	return pricefeed.New(mgr, pricefeed.Config{
		Assets:         cfg.Assets,
		RESTURL:        cfg.StreamRESTURL,
		RESTTimeout:    cfg.StreamDialTimeout,
		StaleThreshold: cfg.StreamStaleThreshold,
		Logger:         logger,
	})
}

func setupDiscovery(cfg *config.Config, logger *zap.Logger, marketCache cache.Cache) *discovery.Service {
	return discovery.New(&discovery.Config{
		Client:       discovery.NewClient(cfg.PolymarketGammaURL, logger),
		Cache:        marketCache,
		Assets:       cfg.Assets,
		Timeframes:   cfg.Timeframes,
		PollInterval: cfg.DiscoveryPollInterval,
		MarketLimit:  cfg.DiscoveryMarketLimit,
		MinRemaining: cfg.MinWindowRemaining,
		Logger:       logger,
	})
}

// loadSignerKey parses the configured private key. Live mode requires one;
// dry-run falls back to an ephemeral key so the CLOB client can still read
// market odds.
func loadSignerKey(cfg *config.Config, logger *zap.Logger) (*ecdsa.PrivateKey, common.Address, error) {
	if cfg.PolymarketPrivateKey == "" {
		if !cfg.DryRun {
			return nil, common.Address{}, fmt.Errorf("POLYMARKET_PRIVATE_KEY is required in live mode")
		}

		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, common.Address{}, fmt.Errorf("generate ephemeral key: %w", err)
		}

		logger.Info("using-ephemeral-key",
			zap.String("note", "dry-run mode without POLYMARKET_PRIVATE_KEY"))
		return key, crypto.PubkeyToAddress(key.PublicKey), nil
	}

	address, err := wallet.AddressFromKey(cfg.PolymarketPrivateKey)
	if err != nil {
		return nil, common.Address{}, err
	}

	key, err := crypto.HexToECDSA(trimHexPrefix(cfg.PolymarketPrivateKey))
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("parse private key: %w", err)
	}

	return key, address, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func setupExchange(cfg *config.Config, logger *zap.Logger, key *ecdsa.PrivateKey) (exchange.Client, error) {
	keyHex := cfg.PolymarketPrivateKey
	if keyHex == "" {
		keyHex = fmt.Sprintf("%x", crypto.FromECDSA(key))
	}

	clob, err := exchange.NewCLOBClient(&exchange.CLOBConfig{
		BaseURL: cfg.PolymarketCLOBURL,
		Credentials: exchange.Credentials{
			APIKey:     cfg.PolymarketAPIKey,
			Secret:     cfg.PolymarketSecret,
			Passphrase: cfg.PolymarketPassphrase,
		},
		PrivateKey:   keyHex,
		ProxyAddress: cfg.PolymarketProxyAddr,
		Timeout:      cfg.RPCTimeout,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create clob client: %w", err)
	}

	if cfg.DryRun {
		logger.Info("exchange-dry-run",
			zap.String("note", "orders are simulated at the requested price"))
		return exchange.NewDryRunClient(clob, logger), nil
	}

	return clob, nil
}

func setupWalletTracker(cfg *config.Config, logger *zap.Logger, address common.Address) (*wallet.Tracker, error) {
	if cfg.PolymarketPrivateKey == "" {
		logger.Info("wallet-tracker-disabled",
			zap.String("reason", "no private key configured"))
		return nil, nil
	}

	if len(cfg.RPCEndpoints) == 0 {
		return nil, fmt.Errorf("no RPC endpoints configured")
	}

	return wallet.New(&wallet.Config{
		RPCEndpoint:  cfg.RPCEndpoints[0],
		Address:      address,
		PollInterval: cfg.WalletPollInterval,
		Logger:       logger,
	})
}
