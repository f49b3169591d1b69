package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	ingest "main/internal/application/service/ingest"
	"main/internal/config"
	"main/internal/infrastructure/fetcher"
	infrainstruments "main/internal/infrastructure/instruments"
	inframarketdata "main/internal/infrastructure/marketdata"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func main() {
	days := flag.Int("days", 0, "lookback days to fetch (default BATCH_LOOKBACK_DAYS)")
	ticker := flag.String("ticker", "", "process only this ticker")
	dryRun := flag.Bool("dry-run", false, "run the full decision logic without writing to the database")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	location, err := time.LoadLocation(cfg.Batch.MarketTimezone)
	if err != nil {
		logger.Fatalf("load market timezone %q: %v", cfg.Batch.MarketTimezone, err)
	}

	instrumentRepo, err := infrainstruments.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("init instruments repo: %v", err)
	}
	defer instrumentRepo.Close()

	priceRepo, err := inframarketdata.NewRepository(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		logger.Fatalf("init marketdata repo: %v", err)
	}
	defer priceRepo.Close()

	yahoo := fetcher.NewYahooClient(
		cfg.Fetcher.BaseURL,
		cfg.Fetcher.MaxRetries,
		time.Duration(cfg.Fetcher.RetryDelaySeconds)*time.Second,
		logger,
	)

	service := ingest.NewService(instrumentRepo, priceRepo, yahoo, ingest.Config{
		LookbackDays:     cfg.Batch.LookbackDays,
		MinRecordsPerDay: int64(cfg.Batch.MinRecordsPerDay),
		Workers:          cfg.Batch.Workers,
		Location:         location,
	}, logger)

	runLog := logger.WithFields(logrus.Fields{
		"run_id":  uuid.NewString(),
		"days":    *days,
		"ticker":  *ticker,
		"dry_run": *dryRun,
	})
	runLog.Info("batch job starting")

	// Instrument and range level failures are logged inside the service and
	// never fail the run; only setup problems exit non-zero.
	total, err := service.Run(ctx, ingest.RunOptions{
		Days:   *days,
		Ticker: *ticker,
		DryRun: *dryRun,
	})
	if err != nil {
		logger.Fatalf("batch run failed: %v", err)
	}
	runLog.WithField("imported", total).Info("batch job completed")
}
