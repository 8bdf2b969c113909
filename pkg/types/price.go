package types

import "time"

// PriceTick is a single trade price observation for an asset.
type PriceTick struct {
	Asset Asset
	Price float64
	Time  time.Time
}

// PricePoint is a timestamped price kept in the rolling history window.
type PricePoint struct {
	Price float64
	Time  time.Time
}
