package exchange

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

// DryRunClient wraps a real client: probability reads pass through, but
// order submissions are simulated and logged, never sent.
type DryRunClient struct {
	odds   Client
	logger *zap.Logger
}

// NewDryRunClient creates a simulating client. The odds client is used for
// read-only probability lookups.
func NewDryRunClient(odds Client, logger *zap.Logger) *DryRunClient {
	logger.Info("dry-run-mode-enabled")
	return &DryRunClient{
		odds:   odds,
		logger: logger,
	}
}

// PlaceOrder simulates an immediate full fill at the requested price.
func (d *DryRunClient) PlaceOrder(_ context.Context, tokenID string, price, size float64) (*Fill, error) {
	if price <= 0 {
		return nil, fmt.Errorf("price must be positive, got %f", price)
	}

	fill := &Fill{
		OrderID:      "dry-" + uuid.NewString(),
		FilledShares: size / price,
		FilledPrice:  price,
	}

	d.logger.Info("dry-run-order",
		zap.String("order-id", fill.OrderID),
		zap.String("token-id", tokenID),
		zap.Float64("price", price),
		zap.Float64("size", size),
		zap.Float64("shares", fill.FilledShares))

	OrdersPlacedTotal.WithLabelValues("dry_run").Inc()

	return fill, nil
}

// GetImpliedProbability passes through to the real client.
func (d *DryRunClient) GetImpliedProbability(ctx context.Context, tokenID string) (float64, error) {
	return d.odds.GetImpliedProbability(ctx, tokenID)
}

// MarketOdds passes through to the real client.
func (d *DryRunClient) MarketOdds(ctx context.Context, market *types.CandleMarket) (types.Odds, error) {
	return d.odds.MarketOdds(ctx, market)
}
