package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	instruments "main/internal/domain/entity/instruments"
	marketdata "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMinRecordsPerDay = 200
	priceDecimalPlaces      = 2
)

// Config carries the knobs for one ingestion service instance. Values are
// passed in explicitly so parallel instances and tests stay independent.
type Config struct {
	LookbackDays     int
	MinRecordsPerDay int64
	Workers          int
	Location         *time.Location
}

// RunOptions are the per-invocation overrides accepted by Run.
type RunOptions struct {
	Days   int    // overrides Config.LookbackDays when > 0
	Ticker string // restricts the run to one instrument when set
	DryRun bool   // count would-be imports without writing
}

type Service struct {
	registry interfaces.InstrumentsRepository
	store    interfaces.PriceRepository
	fetcher  interfaces.BarFetcher
	cfg      Config
	logger   *logrus.Logger
	now      func() time.Time
}

func NewService(registry interfaces.InstrumentsRepository, store interfaces.PriceRepository, fetcher interfaces.BarFetcher, cfg Config, logger *logrus.Logger) *Service {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MinRecordsPerDay <= 0 {
		cfg.MinRecordsPerDay = defaultMinRecordsPerDay
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		registry: registry,
		store:    store,
		fetcher:  fetcher,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run processes every active instrument (or just opts.Ticker) and returns the
// total number of bars imported. Failures below the instrument level are
// logged and skipped; only a failed registry listing aborts the run.
func (s *Service) Run(ctx context.Context, opts RunOptions) (int64, error) {
	days := opts.Days
	if days <= 0 {
		days = s.cfg.LookbackDays
	}

	active, err := s.registry.ListActive(ctx, opts.Ticker)
	if err != nil {
		return 0, fmt.Errorf("list active instruments: %w", err)
	}
	s.logger.WithField("instruments", len(active)).Info("starting ingestion run")

	var total atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Workers)
	for _, instrument := range active {
		instrument := instrument
		group.Go(func() error {
			imported, err := s.ProcessInstrument(groupCtx, instrument, days, opts.DryRun)
			if err != nil {
				s.logger.WithError(err).WithField("ticker", instrument.Ticker).
					Error("instrument processing failed, continuing with next")
				return nil
			}
			total.Add(imported)
			return nil
		})
	}
	_ = group.Wait() // workers swallow their own errors

	s.logger.WithField("imported", total.Load()).Info("ingestion run completed")
	return total.Load(), nil
}

// ProcessInstrument ingests missing bars for a single instrument and returns
// how many were imported (or counted, in dry-run mode).
func (s *Service) ProcessInstrument(ctx context.Context, instrument instruments.Instrument, days int, dryRun bool) (int64, error) {
	log := s.logger.WithField("ticker", instrument.Ticker)

	windowEnd := s.now().In(s.cfg.Location)
	windowStart := startOfDay(windowEnd.AddDate(0, 0, -days))

	coverage, err := s.store.GetDayCoverage(ctx, instrument.Ticker, windowStart, windowEnd)
	if err != nil {
		return 0, fmt.Errorf("day coverage for %s: %w", instrument.Ticker, err)
	}
	for _, day := range coverage {
		if day.BarCount < s.cfg.MinRecordsPerDay {
			log.WithFields(logrus.Fields{
				"day":       day.FirstBarAt.In(s.cfg.Location).Format("2006-01-02"),
				"bar_count": day.BarCount,
				"threshold": s.cfg.MinRecordsPerDay,
			}).Info("day below completeness threshold, will re-fetch")
		}
	}

	ranges := computeMissingRanges(windowStart, windowEnd, coverage, s.cfg.MinRecordsPerDay, s.cfg.Location)
	if len(ranges) == 0 {
		log.Info("all data already imported, skipping")
		return 0, nil
	}
	log.WithField("gaps", len(ranges)).Info("found gaps to fetch")

	var total int64
	for _, missing := range ranges {
		imported, err := s.processRange(ctx, instrument.Ticker, missing, dryRun)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"range_start": missing.Start,
				"range_end":   missing.End,
			}).Error("range failed, continuing with next range")
			continue
		}
		total += imported
	}

	log.WithField("imported", total).Info("instrument completed")
	return total, nil
}

func (s *Service) processRange(ctx context.Context, ticker string, missing marketdata.MissingRange, dryRun bool) (int64, error) {
	log := s.logger.WithFields(logrus.Fields{
		"ticker":      ticker,
		"range_start": missing.Start,
		"range_end":   missing.End,
	})

	raw, err := s.fetcher.Fetch1mBars(ctx, ticker, missing.Start, missing.End)
	if err != nil {
		return 0, fmt.Errorf("fetch bars: %w", err)
	}
	if len(raw) == 0 {
		log.Warn("no data returned for range")
		return 0, nil
	}
	if dryRun {
		log.WithField("bars", len(raw)).Info("dry run, would import bars")
		return int64(len(raw)), nil
	}

	inserted, err := s.store.BulkInsertBars(ctx, s.toPriceBars(ticker, raw))
	if err != nil {
		return 0, fmt.Errorf("insert bars: %w", err)
	}
	log.WithField("imported", inserted).Info("imported bars for range")
	return inserted, nil
}

func (s *Service) toPriceBars(ticker string, raw []marketdata.RawBar) []marketdata.PriceBar {
	now := s.now().UTC()
	bars := make([]marketdata.PriceBar, 0, len(raw))
	for _, bar := range raw {
		bars = append(bars, marketdata.PriceBar{
			Ticker:    ticker,
			PriceTime: bar.Timestamp,
			Open:      decimal.NewFromFloat(bar.Open).Round(priceDecimalPlaces),
			High:      decimal.NewFromFloat(bar.High).Round(priceDecimalPlaces),
			Low:       decimal.NewFromFloat(bar.Low).Round(priceDecimalPlaces),
			Close:     decimal.NewFromFloat(bar.Close).Round(priceDecimalPlaces),
			Volume:    int64(bar.Volume),
			CreatedAt: now,
		})
	}
	return bars
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
