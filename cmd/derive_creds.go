package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/mselser95/polymarket-updown/internal/exchange"
	"github.com/mselser95/polymarket-updown/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var deriveCredsCmd = &cobra.Command{
	Use:   "derive-creds",
	Short: "Derive CLOB API credentials from your private key",
	Long: `Derives (or creates) the L2 API credentials the CLOB requires for
order placement, using an L1 signature from POLYMARKET_PRIVATE_KEY.
Put the printed values in your .env file.`,
	RunE: runDeriveCreds,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(deriveCredsCmd)
}

func runDeriveCreds(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	creds, err := exchange.DeriveCredentials(ctx, cfg.PolymarketCLOBURL, cfg.PolymarketPrivateKey)
	if err != nil {
		return fmt.Errorf("derive credentials: %w", err)
	}

	fmt.Printf("=== CLOB API Credentials ===\n\n")
	fmt.Printf("POLYMARKET_API_KEY=%s\n", creds.APIKey)
	fmt.Printf("POLYMARKET_SECRET=%s\n", creds.Secret)
	fmt.Printf("POLYMARKET_PASSPHRASE=%s\n", creds.Passphrase)

	return nil
}
