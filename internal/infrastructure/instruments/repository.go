package instruments

import (
	"context"
	"fmt"

	domain "main/internal/domain/entity/instruments"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

const selectTickers = `
	SELECT id, ticker, name, is_active, created_at, updated_at
	FROM tickers`

func (r *Repository) ListAll(ctx context.Context) ([]domain.Instrument, error) {
	rows, err := r.pool.Query(ctx, selectTickers+` ORDER BY ticker ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInstruments(rows)
}

// ListActive returns active instruments, optionally restricted to one ticker.
func (r *Repository) ListActive(ctx context.Context, ticker string) ([]domain.Instrument, error) {
	query := selectTickers + ` WHERE is_active`
	args := []interface{}{}
	if ticker != "" {
		query += ` AND ticker=$1`
		args = append(args, ticker)
	}
	query += ` ORDER BY ticker ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInstruments(rows)
}

func collectInstruments(rows pgx.Rows) ([]domain.Instrument, error) {
	var instruments []domain.Instrument
	for rows.Next() {
		instrument, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, instrument)
	}
	return instruments, rows.Err()
}

func scanInstrument(row pgx.Row) (domain.Instrument, error) {
	instrument := domain.Instrument{}
	err := row.Scan(
		&instrument.ID,
		&instrument.Ticker,
		&instrument.Name,
		&instrument.IsActive,
		&instrument.CreatedAt,
		&instrument.UpdatedAt,
	)
	if err != nil {
		return domain.Instrument{}, err
	}
	return instrument, nil
}
