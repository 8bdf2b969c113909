package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/polymarket-updown/pkg/config"
)

func TestBuildSchedule(t *testing.T) {
	points := []config.TranchePoint{
		{FracTime: 0.2, FracBudget: 0.25},
		{FracTime: 0.5, FracBudget: 0.35},
		{FracTime: 0.8, FracBudget: 0.40},
	}

	tranches := BuildSchedule(points, time.Hour, 25)

	require.Len(t, tranches, 3)
	assert.Equal(t, 12*time.Minute, tranches[0].TriggerOffset)
	assert.Equal(t, 30*time.Minute, tranches[1].TriggerOffset)
	assert.Equal(t, 48*time.Minute, tranches[2].TriggerOffset)

	var total float64
	for _, tr := range tranches {
		assert.False(t, tr.Executed)
		total += tr.Stake
	}
	assert.InDelta(t, 25.0, total, 1e-9, "stakes cover the full budget")
}

func TestNextDue(t *testing.T) {
	tranches := []Tranche{
		{TriggerOffset: 10 * time.Minute, Stake: 5},
		{TriggerOffset: 30 * time.Minute, Stake: 10},
		{TriggerOffset: 50 * time.Minute, Stake: 10},
	}

	assert.Equal(t, -1, NextDue(tranches, 5*time.Minute), "nothing due yet")
	assert.Equal(t, 0, NextDue(tranches, 10*time.Minute), "first tranche exactly due")

	// Even when several triggers have passed, the earliest fires first.
	assert.Equal(t, 0, NextDue(tranches, 55*time.Minute))

	tranches[0].Executed = true
	assert.Equal(t, 1, NextDue(tranches, 55*time.Minute))

	tranches[1].Executed = true
	tranches[2].Executed = true
	assert.Equal(t, -1, NextDue(tranches, 55*time.Minute), "all executed")
}

func TestNextDue_OrderPreserved(t *testing.T) {
	// An executed early tranche does not unblock later not-yet-due ones.
	tranches := []Tranche{
		{TriggerOffset: 10 * time.Minute, Stake: 5, Executed: true},
		{TriggerOffset: 30 * time.Minute, Stake: 10},
	}

	assert.Equal(t, -1, NextDue(tranches, 20*time.Minute))
	assert.Equal(t, 1, NextDue(tranches, 31*time.Minute))
}
