package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/config"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/logging"
	redisclient "github.com/hackgods/telehealth-scheduling/internal/redis"
	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

// payment-sweeper cancels bookings whose payment was never completed within
// PAYMENT_WINDOW, returning their slots to availability.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env, cfg.Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("payment-sweeper")

	logger.Info("payment-sweeper starting up",
		zap.Duration("interval", cfg.SweepInterval),
		zap.Duration("payment_window", cfg.PaymentWindow),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, logger)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()

	// The sweep never books, so slot locks are not needed here.
	schedules := schedule.NewService(schedule.NewPgRepository(pgPool), cfg.ScheduleCacheSize, logger)
	svc := appointment.NewService(appointment.NewPgRepository(pgPool), schedules, redisclient.NoopLocker{}, logger,
		appointment.WithLocation(cfg.Location()))

	// Run once at startup
	runOnce(rootCtx, svc, cfg.PaymentWindow, logger)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping payment sweeper")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.PaymentWindow, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, window time.Duration, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	cancelled, err := svc.CancelAbandoned(runCtx, window)
	if err != nil {
		logger.Error("sweep error", zap.Error(err))
		return
	}
	logger.Info("sweep complete",
		zap.Int("cancelled", cancelled),
		zap.Duration("took", time.Since(start)),
	)
}
