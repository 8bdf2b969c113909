// Package session owns the per-market trading state machine: one session per
// candle market window, with a locked side, a staged tranche schedule, and a
// deterministic resolution against the window's open and close prices.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mselser95/polymarket-updown/internal/strategy"
	"github.com/mselser95/polymarket-updown/pkg/types"
)

var (
	// ErrSideAlreadyLocked is returned when a session's side is set twice.
	ErrSideAlreadyLocked = errors.New("side already locked")

	// ErrTrancheExecuted is returned when a tranche would fire twice.
	ErrTrancheExecuted = errors.New("tranche already executed")
)

// Session is one market window being traded. All mutating methods hold the
// session lock, so a tranche execution is a single critical section over the
// tranche list.
type Session struct {
	mu sync.Mutex

	market     *types.CandleMarket
	strategyID string
	openPrice  float64
	openedAt   time.Time

	chosenSide  types.Side
	probability float64
	lockedAt    *time.Time

	tranches      []strategy.Tranche
	totalInvested float64
	totalShares   float64

	result     types.Result
	payout     float64
	profit     float64
	resolvedAt *time.Time
}

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	MarketID      string             `json:"marketId"`
	MarketSlug    string             `json:"marketSlug"`
	Asset         types.Asset        `json:"asset"`
	Timeframe     types.Timeframe    `json:"timeframe"`
	OpenPrice     float64            `json:"openPrice"`
	ChosenSide    types.Side         `json:"chosenSide"`
	Probability   float64            `json:"probability"`
	LockedAt      *time.Time         `json:"lockedAt,omitempty"`
	Tranches      []strategy.Tranche `json:"tranches"`
	TotalInvested float64            `json:"totalInvested"`
	TotalShares   float64            `json:"totalShares"`
	Result        types.Result       `json:"result"`
	Payout        float64            `json:"payout"`
	Profit        float64            `json:"profit"`
	EndTime       time.Time          `json:"endTime"`
}

// NewSession opens a session for a market window. The open price is the spot
// price observed when the session starts and stays fixed for its lifetime.
func NewSession(market *types.CandleMarket, openPrice float64, tranches []strategy.Tranche, strategyID string, now time.Time) *Session {
	return &Session{
		market:     market,
		strategyID: strategyID,
		openPrice:  openPrice,
		openedAt:   now,
		chosenSide: types.SideNone,
		tranches:   tranches,
		result:     types.ResultPending,
	}
}

// Market returns the session's market.
func (s *Session) Market() *types.CandleMarket {
	return s.market
}

// OpenPrice returns the fixed session-open spot price.
func (s *Session) OpenPrice() float64 {
	return s.openPrice
}

// PctChangeFromOpen returns the percent move from the session-open price.
func (s *Session) PctChangeFromOpen(current float64) float64 {
	return (current - s.openPrice) / s.openPrice * 100
}

// Side returns the locked side, or SideNone before a decision.
func (s *Session) Side() types.Side {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.chosenSide
}

// LockSide records the side decision. It may succeed at most once per
// session; later tranches are evaluated only against this side.
func (s *Session) LockSide(side types.Side, probability float64, at time.Time) error {
	if side == types.SideNone {
		return errors.New("cannot lock SideNone")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chosenSide != types.SideNone {
		return fmt.Errorf("session %s: %w", s.market.ID, ErrSideAlreadyLocked)
	}

	s.chosenSide = side
	s.probability = probability
	lockedAt := at
	s.lockedAt = &lockedAt

	return nil
}

// NextDueTranche returns the index of the earliest unexecuted tranche past
// its trigger, or -1.
func (s *Session) NextDueTranche(elapsed time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return strategy.NextDue(s.tranches, elapsed)
}

// Tranche returns a copy of the tranche at index i.
func (s *Session) Tranche(i int) strategy.Tranche {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tranches[i]
}

// MarkExecuted records a fill for tranche i. A tranche transitions to
// executed exactly once.
func (s *Session) MarkExecuted(i int, fillPrice, shares float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.tranches) {
		return fmt.Errorf("tranche index %d out of range", i)
	}

	t := &s.tranches[i]
	if t.Executed {
		return fmt.Errorf("tranche %d: %w", i, ErrTrancheExecuted)
	}

	t.Executed = true
	t.FillPrice = fillPrice
	t.Shares = shares

	s.totalInvested += t.Stake
	s.totalShares += shares

	return nil
}

// TotalInvested returns the sum of executed tranche stakes.
func (s *Session) TotalInvested() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.totalInvested
}

// TotalShares returns the sum of filled shares.
func (s *Session) TotalShares() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.totalShares
}

// Elapsed returns the time since the market window started.
func (s *Session) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.market.StartTime)
}

// Ended reports whether the market window's nominal end has passed.
func (s *Session) Ended(now time.Time) bool {
	return now.After(s.market.EndTime)
}

// Result returns the session's result.
func (s *Session) Result() types.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.result
}

// Resolve settles the session against the window's close price: a win when
// the price direction matches the chosen side, paying one unit per share.
// The first call decides; repeat calls return the recorded outcome
// unchanged, whatever close price they pass.
func (s *Session) Resolve(closePrice float64, at time.Time) (result types.Result, payout, profit float64, first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result != types.ResultPending {
		return s.result, s.payout, s.profit, false
	}

	wentUp := closePrice > s.openPrice
	won := wentUp == (s.chosenSide == types.SideUp)

	if won {
		s.result = types.ResultWin
		s.payout = s.totalShares
	} else {
		s.result = types.ResultLoss
		s.payout = 0
	}
	s.profit = s.payout - s.totalInvested
	resolvedAt := at
	s.resolvedAt = &resolvedAt

	return s.result, s.payout, s.profit, true
}

// Abandon marks a session whose market never resolved within the grace
// period. Terminal; no further tranches fire and no redemption is expected
// from this session's accounting.
func (s *Session) Abandon(at time.Time) (first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result != types.ResultPending {
		return false
	}

	s.result = types.ResultAbandoned
	s.payout = 0
	s.profit = -s.totalInvested
	resolvedAt := at
	s.resolvedAt = &resolvedAt

	return true
}

// Snapshot returns a copy of the session state for reporting.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	tranches := make([]strategy.Tranche, len(s.tranches))
	copy(tranches, s.tranches)

	return Snapshot{
		MarketID:      s.market.ID,
		MarketSlug:    s.market.Slug,
		Asset:         s.market.Asset,
		Timeframe:     s.market.Timeframe,
		OpenPrice:     s.openPrice,
		ChosenSide:    s.chosenSide,
		Probability:   s.probability,
		LockedAt:      s.lockedAt,
		Tranches:      tranches,
		TotalInvested: s.totalInvested,
		TotalShares:   s.totalShares,
		Result:        s.result,
		Payout:        s.payout,
		Profit:        s.profit,
		EndTime:       s.market.EndTime,
	}
}
