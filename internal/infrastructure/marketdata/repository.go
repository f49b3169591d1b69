package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "main/internal/domain/entity/marketdata"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type Repository struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

func NewRepository(ctx context.Context, dsn string, logger *logrus.Logger) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool, logger: logger}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// GetDayCoverage returns min/max timestamp and bar count per calendar day for
// the ticker within [from, to], ordered by day. Days without bars are absent.
func (r *Repository) GetDayCoverage(ctx context.Context, ticker string, from, to time.Time) ([]domain.DayCoverage, error) {
	const query = `
		SELECT min(price_time) AS first_bar_at,
		       max(price_time) AS last_bar_at,
		       count(*) AS bar_count
		FROM stock_prices_1m
		WHERE ticker=$1 AND price_time >= $2 AND price_time <= $3
		GROUP BY date(price_time)
		ORDER BY first_bar_at ASC`

	rows, err := r.pool.Query(ctx, query, ticker, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coverage []domain.DayCoverage
	for rows.Next() {
		day := domain.DayCoverage{}
		if err := rows.Scan(&day.FirstBarAt, &day.LastBarAt, &day.BarCount); err != nil {
			return nil, err
		}
		coverage = append(coverage, day)
	}
	return coverage, rows.Err()
}

const (
	insertColumns = "ticker, price_time, open, high, low, close, volume, created_at"
	barFieldCount = 8
)

// BulkInsertBars performs a set-based conflict-safe insert and returns the
// number of rows actually written; bars already present under the
// (ticker, price_time) constraint are skipped silently. If the set-based
// insert fails, every row is replayed in its own transaction so a single bad
// row cannot sink the rest of the batch; bad rows are logged, good rows
// commit, and the replayed count is returned without an error.
func (r *Repository) BulkInsertBars(ctx context.Context, bars []domain.PriceBar) (int64, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	args := make([]interface{}, 0, len(bars)*barFieldCount)
	for i := range bars {
		args = append(args, barArgs(&bars[i])...)
	}

	tag, err := r.pool.Exec(ctx, buildInsertQuery(len(bars)), args...)
	if err == nil {
		inserted := tag.RowsAffected()
		if skipped := int64(len(bars)) - inserted; skipped > 0 {
			r.logger.WithFields(logrus.Fields{
				"inserted": inserted,
				"skipped":  skipped,
				"total":    len(bars),
			}).Info("bulk insert completed with duplicates skipped")
		}
		return inserted, nil
	}

	r.logger.WithFields(pgErrorFields(err, logrus.Fields{
		"total": len(bars),
	})).WithError(err).Error("bulk insert failed, replaying rows individually")

	return r.replayBars(ctx, bars), nil
}

func (r *Repository) replayBars(ctx context.Context, bars []domain.PriceBar) int64 {
	var inserted int64
	for i := range bars {
		n, err := r.insertOne(ctx, &bars[i])
		if err != nil {
			r.logger.WithFields(pgErrorFields(err, barFields(&bars[i]))).
				WithError(err).Error("failing bar identified during replay")
			continue
		}
		inserted += n
	}
	return inserted
}

// insertOne writes a single bar inside its own transaction so its rollback
// cannot touch sibling rows.
func (r *Repository) insertOne(ctx context.Context, bar *domain.PriceBar) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, buildInsertQuery(1), barArgs(bar)...)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func buildInsertQuery(rows int) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO stock_prices_1m (" + insertColumns + ") VALUES ")
	for i := 0; i < rows; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('(')
		for j := 1; j <= barFieldCount; j++ {
			if j > 1 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "$%d", i*barFieldCount+j)
		}
		sb.WriteByte(')')
	}
	sb.WriteString(" ON CONFLICT (ticker, price_time) DO NOTHING")
	return sb.String()
}

func barArgs(bar *domain.PriceBar) []interface{} {
	return []interface{}{
		bar.Ticker,
		bar.PriceTime,
		bar.Open,
		bar.High,
		bar.Low,
		bar.Close,
		bar.Volume,
		bar.CreatedAt,
	}
}

func barFields(bar *domain.PriceBar) logrus.Fields {
	return logrus.Fields{
		"ticker":     bar.Ticker,
		"price_time": bar.PriceTime,
		"open":       bar.Open,
		"high":       bar.High,
		"low":        bar.Low,
		"close":      bar.Close,
		"volume":     bar.Volume,
	}
}

func pgErrorFields(err error, fields logrus.Fields) logrus.Fields {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		fields["sqlstate"] = pgErr.Code
		if pgErr.Detail != "" {
			fields["detail"] = pgErr.Detail
		}
	}
	return fields
}
