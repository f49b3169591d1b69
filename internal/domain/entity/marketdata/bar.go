package marketdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar is one 1-minute OHLCV record. (Ticker, PriceTime) is the natural
// key; the matching unique constraint turns duplicate inserts into no-ops.
type PriceBar struct {
	ID        int64
	Ticker    string
	PriceTime time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    int64
	CreatedAt time.Time
}

// RawBar is a provider bar before conversion to fixed-point storage form.
type RawBar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// DayCoverage summarizes the stored bars of one calendar day for one ticker.
type DayCoverage struct {
	FirstBarAt time.Time
	LastBarAt  time.Time
	BarCount   int64
}

// MissingRange is a closed interval of market-local time for which stored
// data is absent or below the completeness threshold.
type MissingRange struct {
	Start time.Time
	End   time.Time
}
