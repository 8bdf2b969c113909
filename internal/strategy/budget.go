package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/internal/ledger"
)

const (
	// protectionTrigger fires profit protection once the balance reaches
	// this multiple of the initial budget.
	protectionTrigger = 3.0

	// protectionLock is the multiple of the initial budget locked away
	// when protection fires.
	protectionLock = 2.0
)

// ErrInsufficientBudget is returned when a stake would overdraw the
// tradeable balance.
var ErrInsufficientBudget = errors.New("insufficient budget")

// BudgetManager guards a strategy's capital. Stakes are reserved up front
// and payouts credited back; the locked profit floor is never staked.
type BudgetManager struct {
	store      ledger.Store
	strategyID string
	logger     *zap.Logger
	mu         sync.Mutex
	budget     *ledger.StrategyBudget
}

// NewBudgetManager loads the strategy's budget, creating it with the
// initial balance on first run.
func NewBudgetManager(ctx context.Context, store ledger.Store, strategyID string, initial float64, logger *zap.Logger) (*BudgetManager, error) {
	budget, err := store.GetBudget(ctx, strategyID)
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			return nil, fmt.Errorf("load budget: %w", err)
		}

		budget = &ledger.StrategyBudget{
			StrategyID:    strategyID,
			InitialBudget: initial,
			CurrentBudget: initial,
			UpdatedAt:     time.Now(),
		}
		err = store.SaveBudget(ctx, budget)
		if err != nil {
			return nil, fmt.Errorf("create budget: %w", err)
		}

		logger.Info("budget-initialized",
			zap.String("strategy", strategyID),
			zap.Float64("initial", initial))
	}

	m := &BudgetManager{
		store:      store,
		strategyID: strategyID,
		logger:     logger,
		budget:     budget,
	}
	m.publishMetrics()

	return m, nil
}

// Available returns the balance that may be staked: the current balance
// minus the locked profit floor.
func (m *BudgetManager) Available() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.budget.CurrentBudget - m.budget.ProtectedFloor
}

// Snapshot returns a copy of the current budget state.
func (m *BudgetManager) Snapshot() ledger.StrategyBudget {
	m.mu.Lock()
	defer m.mu.Unlock()

	return *m.budget
}

// Reserve debits a stake from the tradeable balance. Overdraws are
// rejected, never clamped.
func (m *BudgetManager) Reserve(ctx context.Context, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("stake must be positive, got %f", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	available := m.budget.CurrentBudget - m.budget.ProtectedFloor
	if amount > available {
		BudgetRejectionsTotal.Inc()
		return fmt.Errorf("stake %.2f exceeds available %.2f: %w", amount, available, ErrInsufficientBudget)
	}

	m.budget.CurrentBudget -= amount
	m.budget.TotalInvested += amount
	m.budget.UpdatedAt = time.Now()

	err := m.store.SaveBudget(ctx, m.budget)
	if err != nil {
		// Roll back the in-memory state so a retry sees the old balance.
		m.budget.CurrentBudget += amount
		m.budget.TotalInvested -= amount
		return fmt.Errorf("persist budget: %w", err)
	}

	ledger.AmountInvestedTotal.Add(amount)
	m.publishMetricsLocked()

	return nil
}

// Release returns a reserved stake that was never deployed, e.g. when an
// order fails to fill.
func (m *BudgetManager) Release(ctx context.Context, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.budget.CurrentBudget += amount
	m.budget.TotalInvested -= amount
	m.budget.UpdatedAt = time.Now()

	err := m.store.SaveBudget(ctx, m.budget)
	if err != nil {
		m.budget.CurrentBudget -= amount
		m.budget.TotalInvested += amount
		return fmt.Errorf("persist budget: %w", err)
	}

	m.publishMetricsLocked()

	return nil
}

// Credit adds a settlement payout to the balance and applies the
// profit-protection rule.
func (m *BudgetManager) Credit(ctx context.Context, payout float64) error {
	if payout < 0 {
		return fmt.Errorf("payout must be non-negative, got %f", payout)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.budget.CurrentBudget += payout
	m.budget.TotalReturned += payout
	m.budget.UpdatedAt = time.Now()

	m.applyProfitProtectionLocked()

	err := m.store.SaveBudget(ctx, m.budget)
	if err != nil {
		return fmt.Errorf("persist budget: %w", err)
	}

	m.publishMetricsLocked()

	return nil
}

// applyProfitProtectionLocked locks 2x the initial budget once the balance
// reaches 3x. It fires at most once per budget lifetime.
func (m *BudgetManager) applyProfitProtectionLocked() {
	if m.budget.ProtectionActive {
		return
	}

	if m.budget.CurrentBudget < protectionTrigger*m.budget.InitialBudget {
		return
	}

	m.budget.ProtectedFloor = protectionLock * m.budget.InitialBudget
	m.budget.ProtectionActive = true

	m.logger.Info("profit-protection-fired",
		zap.String("strategy", m.strategyID),
		zap.Float64("balance", m.budget.CurrentBudget),
		zap.Float64("locked", m.budget.ProtectedFloor))
}

func (m *BudgetManager) publishMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishMetricsLocked()
}

func (m *BudgetManager) publishMetricsLocked() {
	ledger.CurrentBudget.WithLabelValues(m.strategyID).Set(m.budget.CurrentBudget)
	ledger.RealizedPnL.WithLabelValues(m.strategyID).Set(m.budget.RealizedPnL())
	if m.budget.ProtectionActive {
		ProfitProtectionFired.WithLabelValues(m.strategyID).Set(1)
	} else {
		ProfitProtectionFired.WithLabelValues(m.strategyID).Set(0)
	}
}
