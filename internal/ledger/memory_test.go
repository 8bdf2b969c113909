package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

func testBet(id string) *Bet {
	return &Bet{
		ID:           id,
		StrategyID:   "updown-candle",
		MarketID:     "mkt-1",
		MarketSlug:   "btc-up-down-1h",
		ConditionID:  "0xcond",
		Asset:        types.AssetBTC,
		Timeframe:    types.Timeframe1h,
		Side:         types.SideUp,
		TokenID:      "token-up",
		TrancheIndex: 0,
		Amount:       10,
		Price:        0.6,
		Shares:       16.67,
		Status:       StatusPending,
		Result:       types.ResultPending,
		PlacedAt:     time.Now(),
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	bet := testBet("bet-1")
	require.NoError(t, store.CreateBet(ctx, bet))

	err := store.CreateBet(ctx, bet)
	assert.Error(t, err, "duplicate ID should be rejected")

	got, err := store.GetBet(ctx, "bet-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, types.SideUp, got.Side)

	_, err = store.GetBet(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_StatusLifecycle(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.CreateBet(ctx, testBet("bet-1")))

	now := time.Now()
	require.NoError(t, store.MarkResolved(ctx, "bet-1", types.ResultLoss, 0, now))

	got, err := store.GetBet(ctx, "bet-1")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, got.Status)
	assert.Equal(t, types.ResultLoss, got.Result)
	assert.Equal(t, 0.0, got.Payout)
	require.NotNil(t, got.ResolvedAt)

	// Resolving twice must fail - the record is immutable once settled.
	err = store.MarkResolved(ctx, "bet-1", types.ResultWin, 16.67, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMemoryStore_RedeemFromPending(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.CreateBet(ctx, testBet("bet-1")))

	// A winning claim can be redeemed straight from pending.
	require.NoError(t, store.MarkRedeemed(ctx, "bet-1", 16.67, "0xabc", time.Now()))

	got, err := store.GetBet(ctx, "bet-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRedeemed, got.Status)
	assert.Equal(t, types.ResultWin, got.Result)
	assert.Equal(t, 16.67, got.Payout)
	assert.Equal(t, "0xabc", got.RedeemTxHash)

	// Redeemed is terminal.
	err = store.MarkRedeemed(ctx, "bet-1", 99, "0xdef", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err = store.GetBet(ctx, "bet-1")
	require.NoError(t, err)
	assert.Equal(t, 16.67, got.Payout, "payout from the first redemption is preserved")
	assert.Equal(t, "0xabc", got.RedeemTxHash)
}

func TestMemoryStore_ListBets(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	base := time.Now()

	b1 := testBet("bet-1")
	b1.PlacedAt = base

	b2 := testBet("bet-2")
	b2.MarketID = "mkt-2"
	b2.Side = types.SideDown
	b2.PlacedAt = base.Add(time.Minute)

	b3 := testBet("bet-3")
	b3.PlacedAt = base.Add(2 * time.Minute)

	for _, b := range []*Bet{b2, b3, b1} {
		require.NoError(t, store.CreateBet(ctx, b))
	}

	all, err := store.ListBets(ctx, BetFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "bet-1", all[0].ID, "oldest first")
	assert.Equal(t, "bet-3", all[2].ID)

	byMarket, err := store.ListBets(ctx, BetFilter{MarketID: "mkt-2"})
	require.NoError(t, err)
	require.Len(t, byMarket, 1)
	assert.Equal(t, "bet-2", byMarket[0].ID)

	require.NoError(t, store.MarkResolved(ctx, "bet-1", types.ResultLoss, 0, time.Now()))

	pending, err := store.ListBets(ctx, BetFilter{Status: StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	losses, err := store.ListBets(ctx, BetFilter{Result: types.ResultLoss})
	require.NoError(t, err)
	require.Len(t, losses, 1)
	assert.Equal(t, 0.0, losses[0].Payout)
	assert.Equal(t, -10.0, losses[0].PnL())
}

func TestMemoryStore_Budget(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	_, err := store.GetBudget(ctx, "updown-candle")
	assert.ErrorIs(t, err, ErrNotFound)

	budget := &StrategyBudget{
		StrategyID:    "updown-candle",
		InitialBudget: 100,
		CurrentBudget: 100,
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, store.SaveBudget(ctx, budget))

	budget.CurrentBudget = 90
	budget.TotalInvested = 10
	require.NoError(t, store.SaveBudget(ctx, budget))

	got, err := store.GetBudget(ctx, "updown-candle")
	require.NoError(t, err)
	assert.Equal(t, 90.0, got.CurrentBudget)
	assert.Equal(t, 10.0, got.TotalInvested)
	assert.Equal(t, -10.0, got.RealizedPnL())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.CreateBet(ctx, testBet("bet-1")))

	got, err := store.GetBet(ctx, "bet-1")
	require.NoError(t, err)
	got.Amount = 999

	again, err := store.GetBet(ctx, "bet-1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, again.Amount, "mutating a returned bet must not affect the store")
}

func TestBetStatus_RankOrdering(t *testing.T) {
	assert.Less(t, StatusPending.rank(), StatusResolved.rank())
	assert.Less(t, StatusResolved.rank(), StatusRedeemed.rank())
	assert.Equal(t, -1, BetStatus("bogus").rank())
	assert.True(t, errors.Is(ErrInvalidTransition, ErrInvalidTransition))
}
