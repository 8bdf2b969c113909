package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/cache"
	"github.com/mselser95/polymarket-updown/pkg/types"
)

// Service discovers new candle markets by polling the Gamma API.
type Service struct {
	client       *Client
	cache        cache.Cache
	assets       []types.Asset
	timeframes   map[types.Timeframe]bool
	pollInterval time.Duration
	marketLimit  int
	minRemaining time.Duration
	logger       *zap.Logger
	mu           sync.RWMutex
	seen         map[string]time.Time // market ID -> end time
	newMarketsCh chan *types.CandleMarket
}

// Config holds discovery service configuration.
type Config struct {
	Client       *Client
	Cache        cache.Cache
	Assets       []types.Asset
	Timeframes   []types.Timeframe
	PollInterval time.Duration
	MarketLimit  int
	MinRemaining time.Duration
	Logger       *zap.Logger
}

// New creates a discovery service.
func New(cfg *Config) *Service {
	timeframes := make(map[types.Timeframe]bool, len(cfg.Timeframes))
	for _, tf := range cfg.Timeframes {
		timeframes[tf] = true
	}

	return &Service{
		client:       cfg.Client,
		cache:        cfg.Cache,
		assets:       cfg.Assets,
		timeframes:   timeframes,
		pollInterval: cfg.PollInterval,
		marketLimit:  cfg.MarketLimit,
		minRemaining: cfg.MinRemaining,
		logger:       cfg.Logger,
		seen:         make(map[string]time.Time),
		newMarketsCh: make(chan *types.CandleMarket, 100),
	}
}

// Run starts the discovery polling loop.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("discovery-service-starting",
		zap.Duration("poll-interval", s.pollInterval),
		zap.Int("market-limit", s.marketLimit))

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	err := s.poll(ctx)
	if err != nil {
		s.logger.Error("initial-poll-failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("discovery-service-stopping")
			close(s.newMarketsCh)
			return ctx.Err()
		case <-ticker.C:
			err := s.poll(ctx)
			if err != nil {
				s.logger.Error("poll-failed", zap.Error(err))
			}
		}
	}
}

// poll fetches candle markets and hands new tradeable ones downstream.
func (s *Service) poll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		PollDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	markets, err := s.client.FetchCandleMarkets(ctx, s.assets, s.marketLimit)
	if err != nil {
		PollErrorsTotal.Inc()
		return fmt.Errorf("fetch candle markets: %w", err)
	}

	MarketsSeenTotal.Add(float64(len(markets)))

	newMarkets := s.filterNew(markets, time.Now())

	for _, market := range newMarkets {
		s.cacheMarket(market)

		select {
		case s.newMarketsCh <- market:
			NewMarketsTotal.Inc()
			s.logger.Info("new-market-discovered",
				zap.String("market-id", market.ID),
				zap.String("slug", market.Slug),
				zap.String("asset", string(market.Asset)),
				zap.String("timeframe", string(market.Timeframe)),
				zap.Time("end-time", market.EndTime))
		default:
			s.logger.Warn("new-markets-channel-full",
				zap.String("market-id", market.ID))
		}
	}

	s.pruneSeen(time.Now())

	s.logger.Debug("poll-complete",
		zap.Int("total-markets", len(markets)),
		zap.Int("new-markets", len(newMarkets)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// filterNew returns unseen markets that are still worth trading.
func (s *Service) filterNew(markets []*types.CandleMarket, now time.Time) []*types.CandleMarket {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.CandleMarket
	for _, market := range markets {
		if _, exists := s.seen[market.ID]; exists {
			continue
		}

		if !s.timeframes[market.Timeframe] {
			MarketsSkippedTotal.WithLabelValues("timeframe").Inc()
			continue
		}

		// Too little time left to stage tranches.
		if market.Remaining(now) < s.minRemaining {
			MarketsSkippedTotal.WithLabelValues("window_too_short").Inc()
			s.seen[market.ID] = market.EndTime
			continue
		}

		s.seen[market.ID] = market.EndTime
		out = append(out, market)
	}

	return out
}

// pruneSeen drops entries for markets that ended long ago so the seen set
// does not grow without bound.
func (s *Service) pruneSeen(now time.Time) {
	const retention = 24 * time.Hour

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, endTime := range s.seen {
		if now.Sub(endTime) > retention {
			delete(s.seen, id)
		}
	}
}

// NewMarketsChan returns the channel of newly discovered markets.
func (s *Service) NewMarketsChan() <-chan *types.CandleMarket {
	return s.newMarketsCh
}

// cacheMarket stores a market in the metadata cache.
func (s *Service) cacheMarket(market *types.CandleMarket) {
	if s.cache == nil {
		return
	}

	const cacheTTL = 24 * time.Hour
	ok := s.cache.Set(market.ID, market, cacheTTL)
	if !ok {
		s.logger.Warn("failed-to-cache-market", zap.String("market-id", market.ID))
	}
}

// GetMarket retrieves a market from the cache, or nil.
func (s *Service) GetMarket(marketID string) *types.CandleMarket {
	if s.cache == nil {
		return nil
	}

	value, found := s.cache.Get(marketID)
	if !found {
		return nil
	}

	market, ok := value.(*types.CandleMarket)
	if !ok {
		s.logger.Warn("invalid-market-type-in-cache",
			zap.String("market-id", marketID))
		return nil
	}

	return market
}
