// Package ledger is the durable record of every bet the system places and
// of each strategy's running budget. Bets are never deleted; their status
// only moves forward: pending -> resolved -> redeemed.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

// BetStatus is the lifecycle state of a bet.
type BetStatus string

const (
	StatusPending  BetStatus = "pending"
	StatusResolved BetStatus = "resolved"
	StatusRedeemed BetStatus = "redeemed"
)

// rank orders statuses for the forward-only transition check.
func (s BetStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusResolved:
		return 1
	case StatusRedeemed:
		return 2
	default:
		return -1
	}
}

var (
	// ErrNotFound is returned when a bet or budget does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a status update would move a
	// bet backwards in its lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Bet is a single tranche placed on one side of a candle market.
type Bet struct {
	ID           string
	StrategyID   string
	MarketID     string
	MarketSlug   string
	ConditionID  string
	Asset        types.Asset
	Timeframe    types.Timeframe
	Side         types.Side
	TokenID      string
	OrderID      string
	TrancheIndex int
	Amount       float64 // USDC staked
	Price        float64 // fill price per share
	Shares       float64
	Status       BetStatus
	Result       types.Result
	Payout       float64 // USDC returned at resolution, 0 on loss
	PlacedAt     time.Time
	ResolvedAt   *time.Time
	RedeemedAt   *time.Time
	RedeemTxHash string
}

// PnL returns the realized profit for a settled bet.
func (b *Bet) PnL() float64 {
	if b.Status == StatusPending {
		return 0
	}
	return b.Payout - b.Amount
}

// StrategyBudget tracks the capital state of one strategy.
type StrategyBudget struct {
	StrategyID       string
	InitialBudget    float64
	CurrentBudget    float64
	TotalInvested    float64
	TotalReturned    float64
	ProtectedFloor   float64
	ProtectionActive bool
	UpdatedAt        time.Time
}

// RealizedPnL is the net profit over the life of the strategy.
func (sb *StrategyBudget) RealizedPnL() float64 {
	return sb.TotalReturned - sb.TotalInvested
}

// BetFilter selects bets in list queries. Zero-value fields match all.
type BetFilter struct {
	StrategyID string
	MarketID   string
	Status     BetStatus
	Result     types.Result
}

// Store persists bets and strategy budgets.
type Store interface {
	// CreateBet inserts a new pending bet.
	CreateBet(ctx context.Context, bet *Bet) error

	// GetBet returns the bet with the given ID.
	GetBet(ctx context.Context, id string) (*Bet, error)

	// ListBets returns bets matching the filter, oldest first.
	ListBets(ctx context.Context, filter BetFilter) ([]*Bet, error)

	// MarkResolved transitions a pending bet to resolved with its outcome.
	MarkResolved(ctx context.Context, id string, result types.Result, payout float64, at time.Time) error

	// MarkRedeemed transitions a bet to redeemed with the on-chain payout.
	// A bet may move here straight from pending when its winning claim is
	// redeemed before a separate resolve pass saw it.
	MarkRedeemed(ctx context.Context, id string, payout float64, txHash string, at time.Time) error

	// GetBudget returns the budget for a strategy.
	GetBudget(ctx context.Context, strategyID string) (*StrategyBudget, error)

	// SaveBudget inserts or updates a strategy budget.
	SaveBudget(ctx context.Context, budget *StrategyBudget) error

	// Close closes the store.
	Close() error
}
