package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

// MemoryStore implements Store in memory. It backs dry runs and tests.
type MemoryStore struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	bets    map[string]*Bet
	budgets map[string]*StrategyBudget
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	logger.Info("memory-store-initialized")
	return &MemoryStore{
		logger:  logger,
		bets:    make(map[string]*Bet),
		budgets: make(map[string]*StrategyBudget),
	}
}

// CreateBet inserts a new pending bet.
func (m *MemoryStore) CreateBet(_ context.Context, bet *Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bets[bet.ID]; exists {
		return fmt.Errorf("bet %s already exists", bet.ID)
	}

	stored := *bet
	m.bets[bet.ID] = &stored

	return nil
}

// GetBet returns the bet with the given ID.
func (m *MemoryStore) GetBet(_ context.Context, id string) (*Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bet, ok := m.bets[id]
	if !ok {
		return nil, fmt.Errorf("bet %s: %w", id, ErrNotFound)
	}

	copied := *bet
	return &copied, nil
}

// ListBets returns bets matching the filter, oldest first.
func (m *MemoryStore) ListBets(_ context.Context, filter BetFilter) ([]*Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Bet, 0, len(m.bets))
	for _, bet := range m.bets {
		if filter.StrategyID != "" && bet.StrategyID != filter.StrategyID {
			continue
		}
		if filter.MarketID != "" && bet.MarketID != filter.MarketID {
			continue
		}
		if filter.Status != "" && bet.Status != filter.Status {
			continue
		}
		if filter.Result != "" && bet.Result != filter.Result {
			continue
		}
		copied := *bet
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].PlacedAt.Before(out[j].PlacedAt)
	})

	return out, nil
}

// MarkResolved transitions a pending bet to resolved.
func (m *MemoryStore) MarkResolved(_ context.Context, id string, result types.Result, payout float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bet, ok := m.bets[id]
	if !ok {
		return fmt.Errorf("bet %s: %w", id, ErrNotFound)
	}

	if bet.Status.rank() >= StatusResolved.rank() {
		return fmt.Errorf("bet %s is %s: %w", id, bet.Status, ErrInvalidTransition)
	}

	bet.Status = StatusResolved
	bet.Result = result
	bet.Payout = payout
	resolvedAt := at
	bet.ResolvedAt = &resolvedAt

	return nil
}

// MarkRedeemed transitions a bet to redeemed with the on-chain payout.
func (m *MemoryStore) MarkRedeemed(_ context.Context, id string, payout float64, txHash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bet, ok := m.bets[id]
	if !ok {
		return fmt.Errorf("bet %s: %w", id, ErrNotFound)
	}

	if bet.Status == StatusRedeemed {
		return fmt.Errorf("bet %s is %s: %w", id, bet.Status, ErrInvalidTransition)
	}

	bet.Status = StatusRedeemed
	bet.Result = types.ResultWin
	bet.Payout = payout
	bet.RedeemTxHash = txHash
	redeemedAt := at
	bet.RedeemedAt = &redeemedAt

	return nil
}

// GetBudget returns the budget for a strategy.
func (m *MemoryStore) GetBudget(_ context.Context, strategyID string) (*StrategyBudget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	budget, ok := m.budgets[strategyID]
	if !ok {
		return nil, fmt.Errorf("budget %s: %w", strategyID, ErrNotFound)
	}

	copied := *budget
	return &copied, nil
}

// SaveBudget inserts or updates a strategy budget.
func (m *MemoryStore) SaveBudget(_ context.Context, budget *StrategyBudget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *budget
	m.budgets[budget.StrategyID] = &stored

	return nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	m.logger.Info("closing-memory-store")
	return nil
}
