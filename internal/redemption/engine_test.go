package redemption

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/internal/ledger"
	"github.com/mselser95/polymarket-updown/internal/settlement"
	"github.com/mselser95/polymarket-updown/pkg/types"
)

const testStrategy = "updown-candle"

type fakeChain struct {
	denominators     map[string]*big.Int
	balances         map[string]*big.Int
	redeemErr        map[string]error
	redeemCalls      int
	denominatorCalls int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		denominators: make(map[string]*big.Int),
		balances:     make(map[string]*big.Int),
		redeemErr:    make(map[string]error),
	}
}

func (f *fakeChain) PayoutDenominator(_ context.Context, conditionID common.Hash) (*big.Int, error) {
	f.denominatorCalls++
	d, ok := f.denominators[conditionID.Hex()]
	if !ok {
		return big.NewInt(0), nil
	}
	return d, nil
}

func (f *fakeChain) BalanceOf(_ context.Context, _ common.Address, tokenID *big.Int) (*big.Int, error) {
	b, ok := f.balances[tokenID.String()]
	if !ok {
		return big.NewInt(0), nil
	}
	return b, nil
}

func (f *fakeChain) RedeemPositions(_ context.Context, _ *ecdsa.PrivateKey, conditionID common.Hash, _ time.Duration) (string, error) {
	f.redeemCalls++
	if err := f.redeemErr[conditionID.Hex()]; err != nil {
		return "", err
	}
	// Collateral claimed, outcome tokens burned.
	return "0x" + conditionID.Hex()[2:10], nil
}

// mapCache is a synchronous stand-in for the ristretto cache, whose writes
// land asynchronously.
type mapCache struct {
	entries map[string]interface{}
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]interface{})}
}

func (c *mapCache) Get(key string) (interface{}, bool) {
	v, ok := c.entries[key]
	return v, ok
}

func (c *mapCache) Set(key string, value interface{}, _ time.Duration) bool {
	c.entries[key] = value
	return true
}

func (c *mapCache) Delete(key string) { delete(c.entries, key) }
func (c *mapCache) Clear()            { c.entries = make(map[string]interface{}) }
func (c *mapCache) Close()            {}

type testEnv struct {
	engine *Engine
	store  *ledger.MemoryStore
	chain  *fakeChain
}

func newTestEnv(t *testing.T, dryRun bool) *testEnv {
	t.Helper()

	store := ledger.NewMemoryStore(zap.NewNop())

	pool, err := settlement.NewEndpointPool([]string{"http://unused.invalid"}, zap.NewNop())
	require.NoError(t, err)

	var key *ecdsa.PrivateKey
	if !dryRun {
		key, err = crypto.GenerateKey()
		require.NoError(t, err)
	}

	engine, err := NewEngine(Config{
		Store:         store,
		Pool:          pool,
		PrivateKey:    key,
		WalletAddress: common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		StrategyID:    testStrategy,
		Interval:      time.Minute,
		RPCTimeout:    time.Second,
		TxWaitTimeout: time.Second,
		DryRun:        dryRun,
		Logger:        zap.NewNop(),
	})
	require.NoError(t, err)

	chain := newFakeChain()
	engine.connect = func(_ context.Context) (chainCaller, string, func(), error) {
		return chain, "fake", func() {}, nil
	}

	return &testEnv{engine: engine, store: store, chain: chain}
}

func placeBet(t *testing.T, store *ledger.MemoryStore, id, conditionID, tokenID string, amount float64) *ledger.Bet {
	t.Helper()

	bet := &ledger.Bet{
		ID:          id,
		StrategyID:  testStrategy,
		MarketID:    "mkt-" + id,
		MarketSlug:  "bitcoin-up-or-down-" + id,
		ConditionID: conditionID,
		Asset:       types.AssetBTC,
		Timeframe:   types.Timeframe1h,
		Side:        types.SideUp,
		TokenID:     tokenID,
		Amount:      amount,
		Price:       0.6,
		Shares:      amount / 0.6,
		Status:      ledger.StatusPending,
		Result:      types.ResultPending,
		PlacedAt:    time.Now().Add(-time.Hour),
	}
	require.NoError(t, store.CreateBet(context.Background(), bet))

	return bet
}

func TestNewEngine_Validation(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	pool, err := settlement.NewEndpointPool([]string{"http://unused.invalid"}, zap.NewNop())
	require.NoError(t, err)

	base := Config{
		Store: store, Pool: pool,
		StrategyID: testStrategy, DryRun: true, Logger: zap.NewNop(),
	}

	_, err = NewEngine(base)
	require.NoError(t, err)

	live := base
	live.DryRun = false
	_, err = NewEngine(live)
	assert.Error(t, err, "live mode without a private key must fail")

	noStore := base
	noStore.Store = nil
	_, err = NewEngine(noStore)
	assert.Error(t, err)
}

func TestCheckAndRedeemAll_UnresolvedSkipped(t *testing.T) {
	env := newTestEnv(t, true)
	placeBet(t, env.store, "b1", "0x01", "1001", 10)

	summary, err := env.engine.CheckAndRedeemAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Checked)
	assert.Zero(t, summary.Resolved)
	assert.Zero(t, summary.Redeemed)
	assert.Zero(t, summary.Failed)

	bet, err := env.store.GetBet(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, bet.Status)
}

func TestCheckAndRedeemAll_LosingBetResolved(t *testing.T) {
	env := newTestEnv(t, true)
	placeBet(t, env.store, "b1", "0x01", "1001", 10)
	env.chain.denominators[common.HexToHash("0x01").Hex()] = big.NewInt(2)

	summary, err := env.engine.CheckAndRedeemAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Resolved)
	assert.Zero(t, summary.Redeemed)
	assert.InDelta(t, -10.0, summary.TotalPnL, 1e-9)

	bet, err := env.store.GetBet(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusResolved, bet.Status)
	assert.Equal(t, types.ResultLoss, bet.Result)
	assert.Zero(t, bet.Payout)
	require.NotNil(t, bet.ResolvedAt)
}

func TestCheckAndRedeemAll_WinningBetRedeemed(t *testing.T) {
	env := newTestEnv(t, false)
	placeBet(t, env.store, "b1", "0x01", "1001", 10)
	env.chain.denominators[common.HexToHash("0x01").Hex()] = big.NewInt(2)
	env.chain.balances["1001"] = big.NewInt(16_666666)

	summary, err := env.engine.CheckAndRedeemAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Redeemed)
	assert.InDelta(t, 16.666666-10.0, summary.TotalPnL, 1e-6)
	assert.Equal(t, 1, env.chain.redeemCalls)

	bet, err := env.store.GetBet(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusRedeemed, bet.Status)
	assert.Equal(t, types.ResultWin, bet.Result)
	assert.InDelta(t, 16.666666, bet.Payout, 1e-6)
	assert.NotEmpty(t, bet.RedeemTxHash)
	require.NotNil(t, bet.RedeemedAt)
}

func TestCheckAndRedeemAll_DryRunSkipsTransaction(t *testing.T) {
	env := newTestEnv(t, true)
	placeBet(t, env.store, "b1", "0x01", "1001", 10)
	env.chain.denominators[common.HexToHash("0x01").Hex()] = big.NewInt(2)
	env.chain.balances["1001"] = big.NewInt(20_000000)

	summary, err := env.engine.CheckAndRedeemAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Redeemed)
	assert.Zero(t, env.chain.redeemCalls)

	bet, err := env.store.GetBet(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "dry-run", bet.RedeemTxHash)
	assert.InDelta(t, 20.0, bet.Payout, 1e-9)
}

func TestCheckAndRedeemAll_TxFailureLeavesPending(t *testing.T) {
	env := newTestEnv(t, false)
	placeBet(t, env.store, "b1", "0x01", "1001", 10)
	env.chain.denominators[common.HexToHash("0x01").Hex()] = big.NewInt(2)
	env.chain.balances["1001"] = big.NewInt(15_000000)
	env.chain.redeemErr[common.HexToHash("0x01").Hex()] = errors.New("gas too low")

	summary, err := env.engine.CheckAndRedeemAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Zero(t, summary.Redeemed)

	bet, err := env.store.GetBet(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, bet.Status, "failed redemption stays pending for retry")
}

func TestCheckAndRedeemAll_OneFailureNeverAbortsBatch(t *testing.T) {
	env := newTestEnv(t, false)
	for i := 1; i <= 3; i++ {
		conditionID := fmt.Sprintf("0x0%d", i)
		tokenID := fmt.Sprintf("100%d", i)
		placeBet(t, env.store, fmt.Sprintf("b%d", i), conditionID, tokenID, 10)
		env.chain.denominators[common.HexToHash(conditionID).Hex()] = big.NewInt(2)
		env.chain.balances[tokenID] = big.NewInt(15_000000)
	}
	env.chain.redeemErr[common.HexToHash("0x02").Hex()] = errors.New("nonce too low")

	summary, err := env.engine.CheckAndRedeemAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Checked)
	assert.Equal(t, 2, summary.Redeemed)
	assert.Equal(t, 1, summary.Failed)

	b2, err := env.store.GetBet(context.Background(), "b2")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, b2.Status)
}

func TestCheckAndRedeemAll_SecondSweepIsNoOp(t *testing.T) {
	env := newTestEnv(t, true)
	placeBet(t, env.store, "b1", "0x01", "1001", 10)
	env.chain.denominators[common.HexToHash("0x01").Hex()] = big.NewInt(2)
	env.chain.balances["1001"] = big.NewInt(15_000000)

	first, err := env.engine.CheckAndRedeemAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Redeemed)

	firstBet, err := env.store.GetBet(context.Background(), "b1")
	require.NoError(t, err)

	second, err := env.engine.CheckAndRedeemAll(context.Background())
	require.NoError(t, err)

	assert.Zero(t, second.Checked, "redeemed bets are no longer pending")

	again, err := env.store.GetBet(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, firstBet.Payout, again.Payout, "payout is never rewritten")
	assert.Equal(t, firstBet.RedeemTxHash, again.RedeemTxHash)
}

func TestCheckAndRedeemAll_ResolvedConditionCheckedOnce(t *testing.T) {
	env := newTestEnv(t, false)
	env.engine.cfg.Cache = newMapCache()

	// Two tranches of the same market share one condition. A transient tx
	// failure keeps both pending across sweeps.
	placeBet(t, env.store, "b1", "0x01", "1001", 10)
	placeBet(t, env.store, "b2", "0x01", "1002", 10)
	env.chain.denominators[common.HexToHash("0x01").Hex()] = big.NewInt(2)
	env.chain.balances["1001"] = big.NewInt(15_000000)
	env.chain.balances["1002"] = big.NewInt(15_000000)
	env.chain.redeemErr[common.HexToHash("0x01").Hex()] = errors.New("gas too low")

	_, err := env.engine.CheckAndRedeemAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, env.chain.denominatorCalls, "bets sharing a condition reuse one oracle check")

	_, err = env.engine.CheckAndRedeemAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, env.chain.denominatorCalls, "later sweeps reuse the cached resolution")

	delete(env.chain.redeemErr, common.HexToHash("0x01").Hex())
	summary, err := env.engine.CheckAndRedeemAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Redeemed)
	assert.Equal(t, 1, env.chain.denominatorCalls)
}

func TestCheckAndRedeemAll_UnresolvedConditionNeverCached(t *testing.T) {
	env := newTestEnv(t, true)
	env.engine.cfg.Cache = newMapCache()
	placeBet(t, env.store, "b1", "0x01", "1001", 10)

	for sweep := 1; sweep <= 2; sweep++ {
		summary, err := env.engine.CheckAndRedeemAll(context.Background())
		require.NoError(t, err)
		assert.Zero(t, summary.Resolved)
		assert.Equal(t, sweep, env.chain.denominatorCalls, "an open oracle must be re-queried")
	}

	// Resolution lands: the next sweep settles and the cache now holds the
	// terminal state.
	env.chain.denominators[common.HexToHash("0x01").Hex()] = big.NewInt(2)
	summary, err := env.engine.CheckAndRedeemAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Resolved)
	assert.Equal(t, 3, env.chain.denominatorCalls)

	_, cached := env.engine.cfg.Cache.Get("resolved:0x01")
	assert.True(t, cached)
}

func TestCheckAndRedeemAll_NoEndpointCountsFailed(t *testing.T) {
	env := newTestEnv(t, true)
	placeBet(t, env.store, "b1", "0x01", "1001", 10)

	env.engine.connect = func(_ context.Context) (chainCaller, string, func(), error) {
		return nil, "", nil, settlement.ErrNoHealthyEndpoint
	}

	summary, err := env.engine.CheckAndRedeemAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Failed)

	bet, err := env.store.GetBet(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, bet.Status)
}

func TestRawToUSD(t *testing.T) {
	assert.InDelta(t, 0.0, rawToUSD(big.NewInt(0)), 1e-12)
	assert.InDelta(t, 1.0, rawToUSD(big.NewInt(1_000000)), 1e-9)
	assert.InDelta(t, 16.666666, rawToUSD(big.NewInt(16_666666)), 1e-9)
}
