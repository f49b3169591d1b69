package interfaces

import (
	"context"

	domain "main/internal/domain/entity/instruments"
)

type InstrumentsRepository interface {
	ListAll(ctx context.Context) ([]domain.Instrument, error)
	ListActive(ctx context.Context, ticker string) ([]domain.Instrument, error)
	Close()
}
