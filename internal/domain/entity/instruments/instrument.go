package instruments

import "time"

// Instrument is one tracked ticker from the registry. Rows are managed by an
// external registration process; this service only reads them.
type Instrument struct {
	ID        int64
	Ticker    string
	Name      *string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
