package redemption

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/internal/ledger"
	"github.com/mselser95/polymarket-updown/internal/settlement"
	"github.com/mselser95/polymarket-updown/pkg/cache"
	"github.com/mselser95/polymarket-updown/pkg/types"
)

const usdcDecimals = 1e6

// resolvedConditionTTL bounds cached oracle resolutions. A resolved
// condition never un-resolves, so the TTL only caps memory for conditions
// whose bets have long since been finalized.
const resolvedConditionTTL = 24 * time.Hour

// chainCaller is the slice of the CTF client the engine needs. Narrowed to
// an interface so sweeps can run against a fake chain in tests.
type chainCaller interface {
	PayoutDenominator(ctx context.Context, conditionID common.Hash) (*big.Int, error)
	BalanceOf(ctx context.Context, owner common.Address, tokenID *big.Int) (*big.Int, error)
	RedeemPositions(ctx context.Context, privateKey *ecdsa.PrivateKey, conditionID common.Hash, waitTimeout time.Duration) (string, error)
}

// connectFunc establishes a chain connection for one bet check. The returned
// cleanup closes the underlying connection.
type connectFunc func(ctx context.Context) (chain chainCaller, endpoint string, cleanup func(), err error)

// Summary reports the outcome of one redemption sweep.
type Summary struct {
	Checked  int
	Resolved int
	Redeemed int
	Failed   int
	TotalPnL float64
}

// Config holds the redemption engine dependencies. Cache is optional; when
// set, resolved conditions are remembered so bets sharing a condition (and
// later sweeps) skip the payout denominator RPC.
type Config struct {
	Store         ledger.Store
	Pool          *settlement.EndpointPool
	Cache         cache.Cache
	PrivateKey    *ecdsa.PrivateKey
	WalletAddress common.Address
	StrategyID    string
	Interval      time.Duration
	RPCTimeout    time.Duration
	TxWaitTimeout time.Duration
	DryRun        bool
	Logger        *zap.Logger
}

// Engine sweeps pending bets, resolves losses, and redeems winning claims
// on-chain. Each bet picks its RPC endpoint fresh from the pool, so a flaky
// endpoint never pins a bet to failure.
type Engine struct {
	cfg     Config
	connect connectFunc
	logger  *zap.Logger
}

// NewEngine creates a redemption engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	if cfg.Pool == nil {
		return nil, errors.New("endpoint pool cannot be nil")
	}

	if !cfg.DryRun && cfg.PrivateKey == nil {
		return nil, errors.New("private key required outside dry-run mode")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	e := &Engine{
		cfg:    cfg,
		logger: cfg.Logger,
	}

	e.connect = func(ctx context.Context) (chainCaller, string, func(), error) {
		client, endpoint, err := cfg.Pool.Acquire(ctx)
		if err != nil {
			return nil, "", nil, err
		}

		ctf, err := settlement.NewCTF(client, cfg.Logger)
		if err != nil {
			client.Close()
			return nil, "", nil, err
		}

		return ctf, endpoint, client.Close, nil
	}

	return e, nil
}

// Run sweeps immediately and then on every interval tick until the context
// is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("redemption-engine-started",
		zap.Duration("interval", e.cfg.Interval),
		zap.Bool("dry-run", e.cfg.DryRun))

	e.sweep(ctx)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("redemption-engine-stopped")
			return
		case <-ticker.C:
			e.sweep(ctx)
		}
	}
}

func (e *Engine) sweep(ctx context.Context) {
	summary, err := e.CheckAndRedeemAll(ctx)
	if err != nil {
		SweepsTotal.WithLabelValues("error").Inc()
		e.logger.Error("redemption-sweep-failed", zap.Error(err))
		return
	}

	SweepsTotal.WithLabelValues("ok").Inc()
	e.logger.Info("redemption-sweep-complete",
		zap.Int("checked", summary.Checked),
		zap.Int("resolved", summary.Resolved),
		zap.Int("redeemed", summary.Redeemed),
		zap.Int("failed", summary.Failed),
		zap.Float64("total-pnl", summary.TotalPnL))
}

// CheckAndRedeemAll examines every pending bet once. Per bet it checks the
// condition's oracle state, marks zero-balance claims as losses, and redeems
// positive balances for collateral. A failing bet never aborts the batch.
func (e *Engine) CheckAndRedeemAll(ctx context.Context) (summary Summary, err error) {
	start := time.Now()
	defer func() {
		SweepDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	bets, err := e.cfg.Store.ListBets(ctx, ledger.BetFilter{
		StrategyID: e.cfg.StrategyID,
		Status:     ledger.StatusPending,
	})
	if err != nil {
		return summary, fmt.Errorf("list pending bets: %w", err)
	}

	for _, bet := range bets {
		summary.Checked++
		BetsCheckedTotal.Inc()

		outcome := e.checkBet(ctx, bet, &summary)
		OutcomesTotal.WithLabelValues(outcome).Inc()
	}

	return summary, nil
}

func (e *Engine) checkBet(ctx context.Context, bet *ledger.Bet, summary *Summary) (outcome string) {
	chain, endpoint, cleanup, err := e.connect(ctx)
	if err != nil {
		summary.Failed++
		e.logger.Error("bet-check-no-endpoint",
			zap.String("bet-id", bet.ID),
			zap.Error(err))
		return "no_endpoint"
	}
	defer cleanup()

	conditionID := common.HexToHash(bet.ConditionID)

	if !e.conditionResolved(bet.ConditionID) {
		rpcCtx, cancel := context.WithTimeout(ctx, e.cfg.RPCTimeout)
		denominator, err := chain.PayoutDenominator(rpcCtx, conditionID)
		cancel()
		if err != nil {
			summary.Failed++
			e.logger.Error("payout-denominator-check-failed",
				zap.String("bet-id", bet.ID),
				zap.String("endpoint", endpoint),
				zap.Error(err))
			return "rpc_error"
		}

		if denominator.Sign() == 0 {
			e.logger.Debug("condition-unresolved",
				zap.String("bet-id", bet.ID),
				zap.String("condition-id", bet.ConditionID))
			return "unresolved"
		}

		e.markConditionResolved(bet.ConditionID)
	}

	tokenID, err := settlement.ParseTokenID(bet.TokenID)
	if err != nil {
		summary.Failed++
		e.logger.Error("invalid-token-id",
			zap.String("bet-id", bet.ID),
			zap.Error(err))
		return "bad_token"
	}

	rpcCtx, cancel := context.WithTimeout(ctx, e.cfg.RPCTimeout)
	balance, err := chain.BalanceOf(rpcCtx, e.cfg.WalletAddress, tokenID)
	cancel()
	if err != nil {
		summary.Failed++
		e.logger.Error("balance-check-failed",
			zap.String("bet-id", bet.ID),
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return "rpc_error"
	}

	if balance.Sign() == 0 {
		return e.markLoss(ctx, bet, summary)
	}

	return e.redeemWin(ctx, chain, bet, balance, summary)
}

// conditionResolved reports whether a condition's resolution was observed
// on a previous check. Only terminal states are cached, so a hit is always
// trustworthy.
func (e *Engine) conditionResolved(conditionID string) bool {
	if e.cfg.Cache == nil {
		return false
	}

	_, ok := e.cfg.Cache.Get(resolvedKey(conditionID))
	return ok
}

func (e *Engine) markConditionResolved(conditionID string) {
	if e.cfg.Cache == nil {
		return
	}

	e.cfg.Cache.Set(resolvedKey(conditionID), true, resolvedConditionTTL)
}

func resolvedKey(conditionID string) string {
	return "resolved:" + conditionID
}

// markLoss finalizes a bet whose outcome tokens are worthless after
// resolution.
func (e *Engine) markLoss(ctx context.Context, bet *ledger.Bet, summary *Summary) (outcome string) {
	err := e.cfg.Store.MarkResolved(ctx, bet.ID, types.ResultLoss, 0, time.Now())
	if err != nil {
		summary.Failed++
		e.logger.Error("mark-loss-failed",
			zap.String("bet-id", bet.ID),
			zap.Error(err))
		return "store_error"
	}

	summary.Resolved++
	summary.TotalPnL -= bet.Amount
	ledger.BetsResolvedTotal.WithLabelValues(string(types.ResultLoss)).Inc()

	e.logger.Info("bet-resolved-loss",
		zap.String("bet-id", bet.ID),
		zap.String("market", bet.MarketSlug),
		zap.Float64("amount", bet.Amount))

	return "loss"
}

// redeemWin claims a winning position's collateral. The observed on-chain
// balance is the authoritative payout; the redemption transaction converts
// it to USDC at 1:1.
func (e *Engine) redeemWin(
	ctx context.Context,
	chain chainCaller,
	bet *ledger.Bet,
	balance *big.Int,
	summary *Summary,
) (outcome string) {
	payout := rawToUSD(balance)

	txHash := "dry-run"
	if !e.cfg.DryRun {
		var err error
		txHash, err = chain.RedeemPositions(ctx, e.cfg.PrivateKey,
			common.HexToHash(bet.ConditionID), e.cfg.TxWaitTimeout)
		if err != nil {
			summary.Failed++
			e.logger.Error("redeem-tx-failed",
				zap.String("bet-id", bet.ID),
				zap.String("market", bet.MarketSlug),
				zap.Error(err))
			return "tx_error"
		}
	}

	err := e.cfg.Store.MarkRedeemed(ctx, bet.ID, payout, txHash, time.Now())
	if err != nil {
		summary.Failed++
		e.logger.Error("mark-redeemed-failed",
			zap.String("bet-id", bet.ID),
			zap.Error(err))
		return "store_error"
	}

	summary.Redeemed++
	summary.TotalPnL += payout - bet.Amount
	ledger.BetsResolvedTotal.WithLabelValues(string(types.ResultWin)).Inc()
	ledger.BetsRedeemedTotal.Inc()

	e.logger.Info("bet-redeemed",
		zap.String("bet-id", bet.ID),
		zap.String("market", bet.MarketSlug),
		zap.Float64("payout", payout),
		zap.Float64("pnl", payout-bet.Amount),
		zap.String("tx-hash", txHash),
		zap.Bool("dry-run", e.cfg.DryRun))

	return "redeemed"
}

// rawToUSD converts a 6-decimal token balance to USD.
func rawToUSD(raw *big.Int) float64 {
	v, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), big.NewFloat(usdcDecimals)).Float64()
	return v
}
