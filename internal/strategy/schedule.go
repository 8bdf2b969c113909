package strategy

import (
	"time"

	"github.com/mselser95/polymarket-updown/pkg/config"
)

// Tranche is one staged stake within a market session.
type Tranche struct {
	TriggerOffset time.Duration
	Stake         float64
	Executed      bool
	FillPrice     float64
	Shares        float64
}

// BuildSchedule expands a (fractional-time, fractional-budget) schedule
// into concrete tranches for a window of the given length and budget.
func BuildSchedule(points []config.TranchePoint, window time.Duration, budget float64) []Tranche {
	tranches := make([]Tranche, 0, len(points))
	for _, p := range points {
		tranches = append(tranches, Tranche{
			TriggerOffset: time.Duration(p.FracTime * float64(window)),
			Stake:         p.FracBudget * budget,
		})
	}
	return tranches
}

// NextDue returns the index of the earliest unexecuted tranche whose
// trigger time has passed, or -1. At most one tranche fires per tick and
// tranches fire strictly in schedule order: an unexecuted earlier tranche
// blocks later ones.
func NextDue(tranches []Tranche, elapsed time.Duration) int {
	for i := range tranches {
		if tranches[i].Executed {
			continue
		}
		if tranches[i].TriggerOffset <= elapsed {
			return i
		}
		return -1
	}
	return -1
}
