package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/mselser95/polymarket-updown/internal/app"
	"github.com/mselser95/polymarket-updown/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the betting bot",
	Long: `Starts the up/down betting bot, which will:
1. Connect to the live price stream and track spot prices
2. Discover open candle markets from the Gamma API
3. Stake tranches on a side once the implied probability clears the threshold
4. Sweep resolved windows and redeem winning positions on-chain

Set DRY_RUN=false to place real orders.`,
	RunE: runBot,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
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

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
