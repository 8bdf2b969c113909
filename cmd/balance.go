package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/mselser95/polymarket-updown/pkg/config"
	"github.com/mselser95/polymarket-updown/pkg/wallet"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Check your wallet balances",
	Long: `Display your current holdings:
- POL balance (for redemption gas)
- USDC balance (for betting)
- USDC allowance (approved to CTF Exchange)`,
	RunE: runBalance,
}

//nolint:gochecknoglobals // Cobra flags
var balanceRPC string

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().StringVarP(&balanceRPC, "rpc", "r", "https://polygon-rpc.com", "Polygon RPC endpoint")
}

func runBalance(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found\n")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.PolymarketPrivateKey == "" {
		return fmt.Errorf("POLYMARKET_PRIVATE_KEY not set in .env")
	}

	address, err := wallet.AddressFromKey(cfg.PolymarketPrivateKey)
	if err != nil {
		return fmt.Errorf("derive address: %w", err)
	}

	client, err := wallet.NewClient(balanceRPC, zap.NewNop())
	if err != nil {
		return fmt.Errorf("create wallet client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	balances, err := client.GetBalances(ctx, address)
	if err != nil {
		return fmt.Errorf("get balances: %w", err)
	}

	fmt.Printf("=== Wallet Balance Sheet ===\n\n")
	fmt.Printf("Address: %s\n\n", address.Hex())
	fmt.Printf("POL Balance:    %.6f POL\n", balances.POLFloat())
	fmt.Printf("USDC Balance:   %.2f USDC\n", balances.USDCFloat())
	fmt.Printf("USDC Allowance: %.2f USDC\n", balances.AllowanceFloat())

	if balances.POLFloat() < 0.1 {
		fmt.Printf("\nWarning: low POL balance, redemptions may fail for lack of gas\n")
	}

	return nil
}
