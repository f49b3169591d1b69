package instruments

import (
	"context"

	domain "main/internal/domain/entity/instruments"
	interfaces "main/internal/domain/interfaces"
)

type Service struct {
	repo interfaces.InstrumentsRepository
}

func NewService(repo interfaces.InstrumentsRepository) *Service {
	return &Service{repo: repo}
}

// ListAll returns every registered instrument, active or not.
func (s *Service) ListAll(ctx context.Context) ([]domain.Instrument, error) {
	return s.repo.ListAll(ctx)
}

// ListActive returns instruments eligible for ingestion, optionally filtered
// to a single ticker.
func (s *Service) ListActive(ctx context.Context, ticker string) ([]domain.Instrument, error) {
	return s.repo.ListActive(ctx, ticker)
}
