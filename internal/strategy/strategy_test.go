package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

func TestMovementStrength(t *testing.T) {
	tests := []struct {
		name      string
		pctChange float64
		want      float64
	}{
		{"no move", 0, 0},
		{"quarter strength", 0.125, 0.25},
		{"half strength", 0.25, 0.5},
		{"full strength", 0.5, 1.0},
		{"clamped above", 0.6, 1.0},
		{"negative move", -0.25, 0.5},
		{"large negative clamped", -2.0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MovementStrength(tt.pctChange), 1e-9)
		})
	}
}

func TestMovementStrength_MonotonicAndBounded(t *testing.T) {
	prev := -1.0
	for pct := 0.0; pct <= 2.0; pct += 0.01 {
		s := MovementStrength(pct)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
		assert.GreaterOrEqual(t, s, prev, "strength must not decrease with |pct|")
		prev = s
	}
}

func oddsUpDown(up, down float64) types.Odds {
	return types.Odds{
		UpPrice:         up,
		DownPrice:       down,
		UpProbability:   up,
		DownProbability: down,
	}
}

func TestDecideSide(t *testing.T) {
	s := New(0.55, zap.NewNop())

	tests := []struct {
		name      string
		pctChange float64
		odds      types.Odds
		wantSide  types.Side
	}{
		{
			// 0.6% move saturates strength at 1.0, up clears 0.55.
			name:      "strong up move with confident market",
			pctChange: 0.6,
			odds:      oddsUpDown(0.60, 0.40),
			wantSide:  types.SideUp,
		},
		{
			// Strength 0.05*2 = ... 0.025% move -> strength 0.05 < 0.1.
			name:      "dead zone ignores probabilities",
			pctChange: 0.025,
			odds:      oddsUpDown(0.90, 0.10),
			wantSide:  types.SideNone,
		},
		{
			name:      "down move with confident down market",
			pctChange: -0.3,
			odds:      oddsUpDown(0.35, 0.65),
			wantSide:  types.SideDown,
		},
		{
			// Price moved up but the market is confident on down.
			name:      "opposite probability override",
			pctChange: 0.2,
			odds:      oddsUpDown(0.40, 0.60),
			wantSide:  types.SideDown,
		},
		{
			name:      "neither side clears threshold",
			pctChange: 0.2,
			odds:      oddsUpDown(0.50, 0.50),
			wantSide:  types.SideNone,
		},
		{
			name:      "exactly at threshold counts",
			pctChange: 0.2,
			odds:      oddsUpDown(0.55, 0.45),
			wantSide:  types.SideUp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.DecideSide(tt.pctChange, tt.odds)
			assert.Equal(t, tt.wantSide, got.Side)
			if tt.wantSide != types.SideNone {
				assert.GreaterOrEqual(t, got.Probability, 0.55)
			}
		})
	}
}

func TestMeetsThreshold(t *testing.T) {
	s := New(0.55, zap.NewNop())

	odds := oddsUpDown(0.60, 0.40)
	assert.True(t, s.MeetsThreshold(types.SideUp, odds))
	assert.False(t, s.MeetsThreshold(types.SideDown, odds))
}

func TestMakerPrice(t *testing.T) {
	assert.InDelta(t, 0.59, MakerPrice(0.60), 1e-9)
	assert.InDelta(t, 0.01, MakerPrice(0.01), 1e-9, "floored at exchange minimum")
	assert.InDelta(t, 0.01, MakerPrice(0.005), 1e-9)
}

func TestEV(t *testing.T) {
	// Fair coin at fair price has zero EV.
	assert.InDelta(t, 0.0, EV(0.5, 0.5), 1e-9)

	// Buying cheap with high probability is positive.
	assert.Greater(t, EV(0.55, 0.65), 0.0)

	// Buying expensive with low probability is negative.
	assert.Less(t, EV(0.65, 0.55), 0.0)

	// p(1-price) - (1-p)*price spot check.
	assert.InDelta(t, 0.6*0.4-0.4*0.6, EV(0.6, 0.6), 1e-9)
}
