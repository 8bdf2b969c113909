package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/mselser95/polymarket-updown/internal/ledger"
	"github.com/mselser95/polymarket-updown/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var betsCmd = &cobra.Command{
	Use:   "bets",
	Short: "List bets and show running P&L",
	Long: `Lists the bets recorded in the ledger, newest windows last, and prints
a win/loss/P&L summary. Requires STORAGE_MODE=postgres.`,
	RunE: runBets,
}

//nolint:gochecknoglobals // Cobra flags
var betsStatus string

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(betsCmd)

	betsCmd.Flags().StringVar(&betsStatus, "status", "", "Filter by status: pending, resolved, redeemed")
}

func runBets(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found\n")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger("warn")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	if cfg.StorageMode != "postgres" {
		return fmt.Errorf("bets needs STORAGE_MODE=postgres, the memory ledger does not survive restarts")
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

	filter := ledger.BetFilter{StrategyID: cfg.StrategyID}
	if betsStatus != "" {
		filter.Status = ledger.BetStatus(betsStatus)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bets, err := store.ListBets(ctx, filter)
	if err != nil {
		return fmt.Errorf("list bets: %w", err)
	}

	if len(bets) == 0 {
		fmt.Printf("No bets found\n")
		return nil
	}

	var wins, losses, pending int
	var staked, settledStaked, payout float64

	fmt.Printf("%-38s %-5s %-4s %-4s %8s %7s %9s %8s\n",
		"MARKET", "TF", "SIDE", "TR", "STAKE", "PRICE", "RESULT", "P&L")
	for _, b := range bets {
		staked += b.Amount

		result := string(b.Result)
		switch b.Status {
		case ledger.StatusPending:
			pending++
			result = "..."
		default:
			settledStaked += b.Amount
			if b.Result == "WIN" {
				wins++
				payout += b.Payout
			} else {
				losses++
			}
		}

		fmt.Printf("%-38s %-5s %-4s %4d %8.2f %7.3f %9s %8.2f\n",
			truncate(b.MarketSlug, 38), b.Timeframe, b.Side, b.TrancheIndex,
			b.Amount, b.Price, result, b.PnL())
	}

	fmt.Printf("\n=== Summary ===\n")
	fmt.Printf("Bets:    %d (%d wins, %d losses, %d pending)\n", len(bets), wins, losses, pending)
	fmt.Printf("Staked:  $%.2f\n", staked)
	fmt.Printf("Payout:  $%.2f\n", payout)
	fmt.Printf("P&L:     $%.2f (settled bets only)\n", payout-settledStaked)

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
