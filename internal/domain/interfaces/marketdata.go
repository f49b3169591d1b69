package interfaces

import (
	"context"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
)

type PriceRepository interface {
	GetDayCoverage(ctx context.Context, ticker string, from, to time.Time) ([]marketdata.DayCoverage, error)
	BulkInsertBars(ctx context.Context, bars []marketdata.PriceBar) (int64, error)
	Close()
}

// BarFetcher is the upstream price data capability. Implementations retry
// transient failures internally; an exhausted retry budget surfaces as an
// error, while a range the provider simply has no data for returns an empty
// slice.
type BarFetcher interface {
	Fetch1mBars(ctx context.Context, ticker string, from, to time.Time) ([]marketdata.RawBar, error)
}
