// Package exchange is the CLOB trading client: L1 credential derivation,
// signed order submission, and implied-probability lookups.
package exchange

import (
	"context"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

// Fill is the result of a submitted order.
type Fill struct {
	OrderID      string
	FilledShares float64
	FilledPrice  float64
}

// Credentials are the L2 API credentials derived from a signing key.
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
}

// Client places orders and reads market-implied probabilities.
type Client interface {
	// PlaceOrder submits a buy order for the given outcome token.
	PlaceOrder(ctx context.Context, tokenID string, price, size float64) (*Fill, error)

	// GetImpliedProbability returns the token's midpoint price in [0,1].
	GetImpliedProbability(ctx context.Context, tokenID string) (float64, error)

	// MarketOdds returns both sides' prices and implied probabilities.
	MarketOdds(ctx context.Context, market *types.CandleMarket) (types.Odds, error)
}
