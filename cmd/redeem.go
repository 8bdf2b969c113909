package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/mselser95/polymarket-updown/internal/ledger"
	"github.com/mselser95/polymarket-updown/internal/redemption"
	"github.com/mselser95/polymarket-updown/internal/settlement"
	"github.com/mselser95/polymarket-updown/pkg/config"
	"github.com/mselser95/polymarket-updown/pkg/wallet"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var redeemCmd = &cobra.Command{
	Use:   "redeem",
	Short: "Sweep pending bets and redeem winning positions",
	Long: `Checks every pending bet in the ledger against the CTF contract on
Polygon. Bets whose window resolved against the chosen side are marked as
losses; winning claims are redeemed for USDC on-chain.

By default a single sweep runs and the command exits. Use --auto to keep
sweeping at a fixed interval.`,
	RunE: runRedeem,
}

//nolint:gochecknoglobals // Cobra flags
var (
	redeemDryRun   bool
	redeemAuto     bool
	redeemInterval time.Duration
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(redeemCmd)

	redeemCmd.Flags().BoolVar(&redeemDryRun, "dry-run", false, "Check outcomes without sending transactions")
	redeemCmd.Flags().BoolVar(&redeemAuto, "auto", false, "Keep sweeping at a fixed interval")
	redeemCmd.Flags().DurationVar(&redeemInterval, "interval", 5*time.Minute, "Sweep interval with --auto")
}

func runRedeem(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found\n")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if cfg.StorageMode != "postgres" {
		return fmt.Errorf("redeem needs STORAGE_MODE=postgres, the memory ledger does not survive restarts")
	}

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
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	pool, err := settlement.NewEndpointPool(cfg.RPCEndpoints, logger)
	if err != nil {
		return fmt.Errorf("create endpoint pool: %w", err)
	}

	engineCfg := redemption.Config{
		Store:         store,
		Pool:          pool,
		StrategyID:    cfg.StrategyID,
		Interval:      redeemInterval,
		RPCTimeout:    cfg.RPCTimeout,
		TxWaitTimeout: cfg.TxWaitTimeout,
		DryRun:        redeemDryRun,
		Logger:        logger,
	}

	if !redeemDryRun {
		if cfg.PolymarketPrivateKey == "" {
			return fmt.Errorf("POLYMARKET_PRIVATE_KEY not set in .env")
		}

		address, addrErr := wallet.AddressFromKey(cfg.PolymarketPrivateKey)
		if addrErr != nil {
			return fmt.Errorf("derive address: %w", addrErr)
		}

		key, keyErr := crypto.HexToECDSA(stripHexPrefix(cfg.PolymarketPrivateKey))
		if keyErr != nil {
			return fmt.Errorf("parse private key: %w", keyErr)
		}

		engineCfg.PrivateKey = key
		engineCfg.WalletAddress = address
		fmt.Printf("Wallet: %s\n", address.Hex())
	}

	engine, err := redemption.NewEngine(engineCfg)
	if err != nil {
		return fmt.Errorf("create redemption engine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if redeemAuto {
		go func() {
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			<-sigChan
			cancel()
		}()

		fmt.Printf("Sweeping every %s, Ctrl-C to stop\n\n", redeemInterval)
		engine.Run(ctx)
		return nil
	}

	summary, err := engine.CheckAndRedeemAll(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	fmt.Printf("\n=== Redemption Sweep ===\n")
	fmt.Printf("Checked:  %d\n", summary.Checked)
	fmt.Printf("Resolved: %d\n", summary.Resolved)
	fmt.Printf("Redeemed: %d\n", summary.Redeemed)
	fmt.Printf("Failed:   %d\n", summary.Failed)
	fmt.Printf("P&L:      $%.2f\n", summary.TotalPnL)

	return nil
}

func stripHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
