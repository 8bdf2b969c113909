package types

import (
	"fmt"
	"time"
)

// Asset is a tracked crypto asset with an up/down candle market series.
type Asset string

const (
	AssetBTC Asset = "BTC"
	AssetETH Asset = "ETH"
	AssetSOL Asset = "SOL"
)

// StreamSymbol returns the Binance trade-stream symbol for the asset.
func (a Asset) StreamSymbol() string {
	return string(a) + "USDT"
}

// ParseAsset validates and normalizes an asset name.
func ParseAsset(s string) (Asset, error) {
	switch Asset(s) {
	case AssetBTC, AssetETH, AssetSOL:
		return Asset(s), nil
	}
	return "", fmt.Errorf("unknown asset %q", s)
}

// Timeframe is the duration of one candle market window.
type Timeframe string

const (
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// Duration returns the window length for a timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	}
	return 0
}

// ParseTimeframe validates and normalizes a timeframe name.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if tf.Duration() == 0 {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}

// Side is the outcome a session bets on.
type Side string

const (
	SideNone Side = ""
	SideUp   Side = "UP"
	SideDown Side = "DOWN"
)

// Opposite returns the other tradable side.
func (s Side) Opposite() Side {
	switch s {
	case SideUp:
		return SideDown
	case SideDown:
		return SideUp
	}
	return SideNone
}

// Result is the terminal outcome of a session or bet.
type Result string

const (
	ResultPending   Result = "PENDING"
	ResultWin       Result = "WIN"
	ResultLoss      Result = "LOSS"
	ResultAbandoned Result = "ABANDONED"
)

// CandleMarket is one up/down market window discovered on the exchange.
type CandleMarket struct {
	ID          string
	Slug        string
	Question    string
	Asset       Asset
	Timeframe   Timeframe
	ConditionID string
	UpTokenID   string
	DownTokenID string
	StartTime   time.Time
	EndTime     time.Time
}

// TokenFor returns the outcome token id for a side.
func (m *CandleMarket) TokenFor(side Side) string {
	switch side {
	case SideUp:
		return m.UpTokenID
	case SideDown:
		return m.DownTokenID
	}
	return ""
}

// Remaining returns the time left in the window relative to now.
func (m *CandleMarket) Remaining(now time.Time) time.Duration {
	return m.EndTime.Sub(now)
}

// Odds is a snapshot of the market-implied probabilities for both sides.
// Prices and probabilities are interchangeable on a binary market: the
// last traded price of an outcome token is its implied probability.
type Odds struct {
	UpPrice         float64
	DownPrice       float64
	UpProbability   float64
	DownProbability float64
}

// ProbabilityFor returns the implied probability of the given side.
func (o Odds) ProbabilityFor(side Side) float64 {
	switch side {
	case SideUp:
		return o.UpProbability
	case SideDown:
		return o.DownProbability
	}
	return 0
}

// PriceFor returns the current market price of the given side's token.
func (o Odds) PriceFor(side Side) float64 {
	switch side {
	case SideUp:
		return o.UpPrice
	case SideDown:
		return o.DownPrice
	}
	return 0
}
