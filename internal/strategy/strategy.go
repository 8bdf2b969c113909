// Package strategy holds the side-selection and pricing math for up/down
// candle markets, the staged tranche schedules, and the budget manager with
// its profit-protection rule.
package strategy

import (
	"math"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

const (
	// deadZone is the minimum movement strength required for a
	// directional signal. Weaker moves are treated as noise.
	deadZone = 0.1

	// fullStrengthPct is the percent move that saturates the
	// movement-strength signal at 1.0.
	fullStrengthPct = 0.5

	// makerOffset is subtracted from the market price to bias toward
	// resting fills.
	makerOffset = 0.01

	// minMakerPrice is the exchange's price floor.
	minMakerPrice = 0.01
)

// Decision is the outcome of a side-selection evaluation.
type Decision struct {
	Side        types.Side
	Probability float64
	Reason      string
}

// Strategy makes betting decisions against live prices and market odds.
type Strategy struct {
	minProbability float64
	logger         *zap.Logger
}

// New creates a strategy with the given probability threshold.
func New(minProbability float64, logger *zap.Logger) *Strategy {
	return &Strategy{
		minProbability: minProbability,
		logger:         logger,
	}
}

// MovementStrength maps a percent price change to a 0-1 significance
// signal, saturating at a 0.5% move.
func MovementStrength(pctChange float64) float64 {
	strength := math.Abs(pctChange) / fullStrengthPct
	if strength > 1 {
		return 1
	}
	return strength
}

// DecideSide chooses a side from the price move and the market-implied
// probabilities. A move inside the dead zone yields no decision. When the
// move's own side does not clear the threshold but the opposite side does,
// the market's confidence overrides the raw direction.
func (s *Strategy) DecideSide(pctChange float64, odds types.Odds) Decision {
	strength := MovementStrength(pctChange)
	if strength < deadZone {
		DecisionsTotal.WithLabelValues("dead-zone").Inc()
		return Decision{Side: types.SideNone, Reason: "movement below dead zone"}
	}

	preferred := types.SideUp
	if pctChange < 0 {
		preferred = types.SideDown
	}

	prob := odds.ProbabilityFor(preferred)
	if prob >= s.minProbability {
		DecisionsTotal.WithLabelValues("directional").Inc()
		s.logger.Debug("side-decided",
			zap.String("side", string(preferred)),
			zap.Float64("probability", prob),
			zap.Float64("pct-change", pctChange))
		return Decision{Side: preferred, Probability: prob, Reason: "directional"}
	}

	opposite := preferred.Opposite()
	oppProb := odds.ProbabilityFor(opposite)
	if oppProb >= s.minProbability {
		DecisionsTotal.WithLabelValues("opposite-override").Inc()
		s.logger.Debug("side-decided-opposite",
			zap.String("side", string(opposite)),
			zap.Float64("probability", oppProb),
			zap.Float64("pct-change", pctChange))
		return Decision{Side: opposite, Probability: oppProb, Reason: "opposite probability override"}
	}

	DecisionsTotal.WithLabelValues("below-threshold").Inc()
	return Decision{Side: types.SideNone, Reason: "no side clears probability threshold"}
}

// MeetsThreshold re-validates the chosen side's probability before a
// tranche fires.
func (s *Strategy) MeetsThreshold(side types.Side, odds types.Odds) bool {
	return odds.ProbabilityFor(side) >= s.minProbability
}

// MakerPrice returns the limit price for a resting order: the market price
// minus a fixed offset, floored at the exchange minimum.
func MakerPrice(marketPrice float64) float64 {
	price := marketPrice - makerOffset
	if price < minMakerPrice {
		return minMakerPrice
	}
	return price
}

// EV returns the expected value per share of buying at price with win
// probability probability.
func EV(price, probability float64) float64 {
	return probability*(1-price) - (1-probability)*price
}
