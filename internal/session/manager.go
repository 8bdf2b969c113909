package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/internal/exchange"
	"github.com/mselser95/polymarket-updown/internal/ledger"
	"github.com/mselser95/polymarket-updown/internal/strategy"
	"github.com/mselser95/polymarket-updown/pkg/config"
	"github.com/mselser95/polymarket-updown/pkg/types"
)

// PriceSource is the slice of the price feed the manager reads. A degraded
// or stale feed is treated as having no signal, so no side gets locked and
// no tranche fires until it recovers.
type PriceSource interface {
	Latest(asset types.Asset) (types.PricePoint, bool)
	Stale(asset types.Asset, now time.Time) bool
	Degraded() bool
}

// Config holds the session manager dependencies.
type Config struct {
	Feed            PriceSource
	Exchange        exchange.Client
	Store           ledger.Store
	Budget          *strategy.BudgetManager
	Strategy        *strategy.Strategy
	TranchePoints   map[types.Timeframe][]config.TranchePoint
	Budgets         map[types.Timeframe]float64
	StrategyID      string
	TickInterval    time.Duration
	ResolutionGrace time.Duration
	RequestTimeout  time.Duration
	Logger          *zap.Logger
}

// Manager runs the trading loop over all open sessions. New markets arrive
// on a channel from discovery; every tick interval each session gets one
// evaluation. A failing session never stops the others.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Feed == nil {
		return nil, errors.New("price feed cannot be nil")
	}

	if cfg.Exchange == nil {
		return nil, errors.New("exchange client cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	if cfg.Budget == nil {
		return nil, errors.New("budget manager cannot be nil")
	}

	if cfg.Strategy == nil {
		return nil, errors.New("strategy cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Manager{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: make(map[string]*Session),
	}, nil
}

// Run consumes discovered markets and ticks every open session until the
// context is cancelled.
func (m *Manager) Run(ctx context.Context, markets <-chan *types.CandleMarket) {
	m.logger.Info("session-manager-started",
		zap.Duration("tick-interval", m.cfg.TickInterval))

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("session-manager-stopped")
			return
		case market, ok := <-markets:
			if !ok {
				m.logger.Info("session-manager-stopped")
				return
			}
			m.admit(market, time.Now())
		case <-ticker.C:
			m.tickAll(ctx, time.Now())
		}
	}
}

// admit opens a session for a newly discovered market. The spot price at
// admission becomes the session's fixed open price, so without a live price
// for the asset the market is skipped.
func (m *Manager) admit(market *types.CandleMarket, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[market.ID]; exists {
		return
	}

	open, ok := m.cfg.Feed.Latest(market.Asset)
	if !ok {
		m.logger.Warn("market-skipped-no-price",
			zap.String("market-id", market.ID),
			zap.String("asset", string(market.Asset)))
		return
	}

	points, ok := m.cfg.TranchePoints[market.Timeframe]
	if !ok {
		m.logger.Warn("market-skipped-no-schedule",
			zap.String("market-id", market.ID),
			zap.String("timeframe", string(market.Timeframe)))
		return
	}

	budget := m.cfg.Budgets[market.Timeframe]
	tranches := strategy.BuildSchedule(points, market.Timeframe.Duration(), budget)

	m.sessions[market.ID] = NewSession(market, open.Price, tranches, m.cfg.StrategyID, now)
	ActiveSessions.Set(float64(len(m.sessions)))
	SessionsOpenedTotal.WithLabelValues(string(market.Asset), string(market.Timeframe)).Inc()

	m.logger.Info("session-opened",
		zap.String("market-id", market.ID),
		zap.String("slug", market.Slug),
		zap.String("asset", string(market.Asset)),
		zap.String("timeframe", string(market.Timeframe)),
		zap.Float64("open-price", open.Price),
		zap.Float64("budget", budget),
		zap.Int("tranches", len(tranches)),
		zap.Time("end-time", market.EndTime))
}

// tickAll evaluates every session once. Finished sessions are dropped from
// the active set after their terminal transition.
func (m *Manager) tickAll(ctx context.Context, now time.Time) {
	m.mu.RLock()
	active := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		active = append(active, s)
	}
	m.mu.RUnlock()

	for _, s := range active {
		err := m.tick(ctx, s, now)
		if err != nil {
			TickErrorsTotal.Inc()
			m.logger.Error("session-tick-failed",
				zap.String("market-id", s.market.ID),
				zap.Error(err))
		}

		if s.Result() != types.ResultPending {
			m.remove(s.market.ID)
		}
	}
}

func (m *Manager) remove(marketID string) {
	m.mu.Lock()
	delete(m.sessions, marketID)
	ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
}

// tick runs one evaluation of a session: settle it when its window has
// ended, otherwise decide a side and fire at most one due tranche.
func (m *Manager) tick(ctx context.Context, s *Session, now time.Time) error {
	if s.Ended(now) {
		return m.settle(ctx, s, now)
	}

	// No trading decisions without a live signal.
	if m.cfg.Feed.Degraded() || m.cfg.Feed.Stale(s.market.Asset, now) {
		m.logger.Debug("session-tick-no-signal",
			zap.String("market-id", s.market.ID),
			zap.Bool("degraded", m.cfg.Feed.Degraded()))
		return nil
	}

	latest, ok := m.cfg.Feed.Latest(s.market.Asset)
	if !ok {
		return nil
	}

	oddsCtx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
	odds, err := m.cfg.Exchange.MarketOdds(oddsCtx, s.market)
	cancel()
	if err != nil {
		return err
	}

	if s.Side() == types.SideNone {
		pct := s.PctChangeFromOpen(latest.Price)
		decision := m.cfg.Strategy.DecideSide(pct, odds)
		if decision.Side == types.SideNone {
			m.logger.Debug("side-undecided",
				zap.String("market-id", s.market.ID),
				zap.Float64("pct-change", pct),
				zap.String("reason", decision.Reason))
			return nil
		}

		err = s.LockSide(decision.Side, decision.Probability, now)
		if err != nil {
			return err
		}

		SidesLockedTotal.WithLabelValues(string(decision.Side), decision.Reason).Inc()
		m.logger.Info("side-locked",
			zap.String("market-id", s.market.ID),
			zap.String("side", string(decision.Side)),
			zap.Float64("probability", decision.Probability),
			zap.Float64("pct-change", pct),
			zap.String("reason", decision.Reason))
	}

	idx := s.NextDueTranche(s.Elapsed(now))
	if idx < 0 {
		return nil
	}

	return m.fireTranche(ctx, s, idx, odds, now)
}

// fireTranche re-validates the locked side and executes one due tranche. A
// declined or rejected tranche stays unexecuted and is retried on the next
// tick.
func (m *Manager) fireTranche(ctx context.Context, s *Session, idx int, odds types.Odds, now time.Time) error {
	side := s.Side()

	// probability is the snapshot the threshold decision is made on; both
	// the declined and fired events report this same value.
	probability := odds.ProbabilityFor(side)

	if !m.cfg.Strategy.MeetsThreshold(side, odds) {
		TranchesDeclinedTotal.WithLabelValues("below-threshold").Inc()
		m.logger.Info("tranche-declined",
			zap.String("market-id", s.market.ID),
			zap.Int("tranche", idx),
			zap.String("side", string(side)),
			zap.Float64("probability", probability))
		return nil
	}

	tranche := s.Tranche(idx)
	price := strategy.MakerPrice(odds.PriceFor(side))

	err := m.cfg.Budget.Reserve(ctx, tranche.Stake)
	if err != nil {
		if errors.Is(err, strategy.ErrInsufficientBudget) {
			TranchesDeclinedTotal.WithLabelValues("budget").Inc()
			m.logger.Warn("tranche-rejected-budget",
				zap.String("market-id", s.market.ID),
				zap.Int("tranche", idx),
				zap.Float64("stake", tranche.Stake),
				zap.Float64("available", m.cfg.Budget.Available()))
			return nil
		}
		return err
	}

	tokenID := s.market.TokenFor(side)

	orderCtx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
	fill, err := m.cfg.Exchange.PlaceOrder(orderCtx, tokenID, price, tranche.Stake)
	cancel()
	if err != nil {
		releaseErr := m.cfg.Budget.Release(ctx, tranche.Stake)
		if releaseErr != nil {
			m.logger.Error("budget-release-failed",
				zap.String("market-id", s.market.ID),
				zap.Error(releaseErr))
		}
		TranchesDeclinedTotal.WithLabelValues("order-error").Inc()
		return err
	}

	err = s.MarkExecuted(idx, fill.FilledPrice, fill.FilledShares)
	if err != nil {
		return err
	}

	bet := &ledger.Bet{
		ID:           uuid.NewString(),
		StrategyID:   m.cfg.StrategyID,
		MarketID:     s.market.ID,
		MarketSlug:   s.market.Slug,
		ConditionID:  s.market.ConditionID,
		Asset:        s.market.Asset,
		Timeframe:    s.market.Timeframe,
		Side:         side,
		TokenID:      tokenID,
		OrderID:      fill.OrderID,
		TrancheIndex: idx,
		Amount:       tranche.Stake,
		Price:        fill.FilledPrice,
		Shares:       fill.FilledShares,
		Status:       ledger.StatusPending,
		Result:       types.ResultPending,
		PlacedAt:     now,
	}
	err = m.cfg.Store.CreateBet(ctx, bet)
	if err != nil {
		m.logger.Error("bet-record-failed",
			zap.String("market-id", s.market.ID),
			zap.String("order-id", fill.OrderID),
			zap.Error(err))
		return err
	}

	TranchesFiredTotal.WithLabelValues(string(s.market.Asset), string(s.market.Timeframe)).Inc()
	ledger.BetsPlacedTotal.WithLabelValues(
		string(s.market.Asset), string(s.market.Timeframe), string(side)).Inc()

	m.logger.Info("tranche-fired",
		zap.String("market-id", s.market.ID),
		zap.String("bet-id", bet.ID),
		zap.Int("tranche", idx),
		zap.String("side", string(side)),
		zap.Float64("stake", tranche.Stake),
		zap.Float64("price", fill.FilledPrice),
		zap.Float64("shares", fill.FilledShares),
		zap.Float64("probability", probability),
		zap.Float64("ev", strategy.EV(fill.FilledPrice, probability)))

	return nil
}

// settle closes a session whose window has ended. Sessions that never took
// a position are dropped; otherwise the session resolves against the close
// price, crediting the budget with the resolved payout. A market with no
// observable close price within the grace period is abandoned explicitly.
func (m *Manager) settle(ctx context.Context, s *Session, now time.Time) error {
	if s.Side() == types.SideNone {
		SessionsClosedTotal.WithLabelValues("no-position").Inc()
		m.logger.Info("session-closed-no-position",
			zap.String("market-id", s.market.ID),
			zap.String("slug", s.market.Slug))
		m.remove(s.market.ID)
		return nil
	}

	// Resolution needs a fresh close price. Latest keeps returning the last
	// recorded tick even after the feed dies, so a stale or degraded feed
	// holds settlement open rather than crediting against an old price.
	latest, ok := m.cfg.Feed.Latest(s.market.Asset)
	if !ok || m.cfg.Feed.Degraded() || m.cfg.Feed.Stale(s.market.Asset, now) {
		if now.After(s.market.EndTime.Add(m.cfg.ResolutionGrace)) {
			return m.abandon(s, now)
		}
		return nil
	}

	result, payout, profit, first := s.Resolve(latest.Price, now)
	if !first {
		return nil
	}

	SessionsClosedTotal.WithLabelValues(string(result)).Inc()
	m.logger.Info("session-resolved",
		zap.String("market-id", s.market.ID),
		zap.String("slug", s.market.Slug),
		zap.String("result", string(result)),
		zap.Float64("open-price", s.OpenPrice()),
		zap.Float64("close-price", latest.Price),
		zap.Float64("invested", s.TotalInvested()),
		zap.Float64("payout", payout),
		zap.Float64("profit", profit))

	err := m.cfg.Budget.Credit(ctx, payout)
	if err != nil {
		return err
	}

	return nil
}

// abandon retires a session whose market never produced a close price
// within the grace period. The transition is logged and counted so an
// abandoned session is distinguishable from one still pending.
func (m *Manager) abandon(s *Session, now time.Time) error {
	if !s.Abandon(now) {
		return nil
	}

	SessionsClosedTotal.WithLabelValues(string(types.ResultAbandoned)).Inc()
	m.logger.Warn("session-abandoned",
		zap.String("market-id", s.market.ID),
		zap.String("slug", s.market.Slug),
		zap.Float64("invested", s.TotalInvested()),
		zap.Duration("grace", m.cfg.ResolutionGrace))

	return nil
}

// Sessions returns snapshots of all open sessions.
func (m *Manager) Sessions() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Snapshot())
	}

	return out
}
