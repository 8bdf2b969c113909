package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "polymarket-updown",
	Short: "Polymarket up/down candle betting bot",
	Long: `Automated betting on short-duration Polymarket up/down candle markets.

The bot watches live spot prices, discovers open candle windows via the
Gamma API, stakes a side in staged tranches when the market's implied
probability clears the configured threshold, and redeems winning positions
on-chain once the window resolves.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
