package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/telehealth-scheduling/internal/api"
	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/billing"
	"github.com/hackgods/telehealth-scheduling/internal/config"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/ledger"
	"github.com/hackgods/telehealth-scheduling/internal/logging"
	"github.com/hackgods/telehealth-scheduling/internal/payment"
	redisclient "github.com/hackgods/telehealth-scheduling/internal/redis"
	"github.com/hackgods/telehealth-scheduling/internal/refund"
	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

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

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api-server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	logger.Info("api-server starting up",
		zap.String("http_port", cfg.HTTPPort),
		zap.String("timezone", cfg.Timezone),
		zap.String("payment_provider", cfg.PaymentProvider),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, logger)
	cancelPg()
	if err != nil {
		return fmt.Errorf("postgres connection: %w", err)
	}
	defer pgPool.Close()

	if err := db.Migrate(rootCtx, pgPool, logger); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// Redis is optional. Without it bookings rely on the database constraint alone.
	var (
		locker    redisclient.Locker = redisclient.NoopLocker{}
		redisPing api.PingFunc
	)
	if cfg.RedisEnabled() {
		rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, logger)
		if err != nil {
			logger.Warn("redis unavailable, continuing without slot locks", zap.Error(err))
		} else {
			defer func() {
				if err := rdb.Close(); err != nil {
					logger.Warn("error closing redis", zap.Error(err))
				}
			}()
			locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
			redisPing = redisclient.Pinger(rdb)
		}
	}

	provider, err := payment.NewProvider(payment.Settings{
		Provider:        cfg.PaymentProvider,
		StripeSecretKey: cfg.StripeSecretKey,
		Currency:        cfg.PaymentCurrency,
		SimulatedDelay:  cfg.SimulatedPaymentDelay,
	})
	if err != nil {
		return fmt.Errorf("payment provider: %w", err)
	}

	loc := cfg.Location()

	schedules := schedule.NewService(schedule.NewPgRepository(pgPool), cfg.ScheduleCacheSize, logger)
	appointments := appointment.NewService(appointment.NewPgRepository(pgPool), schedules, locker, logger,
		appointment.WithLocation(loc))
	invoices := billing.NewService(billing.NewPgRepository(pgPool), cfg.InvoiceDueDays, logger,
		billing.WithLocation(loc))
	payments := payment.NewCoordinator(provider, appointments, invoices, logger)
	refunds := refund.NewWorkflow(refund.NewPgRepository(pgPool), appointments, payments, logger)
	items := ledger.NewService(ledger.NewPgRepository(pgPool), logger, nil)

	router := api.NewRouter(api.RouterConfig{
		Schedules:      schedules,
		Appointments:   appointments,
		Payments:       payments,
		Refunds:        refunds,
		Billing:        invoices,
		Ledger:         items,
		Health:         api.NewHealthHandler(pgPool.Ping, redisPing, cfg.Env, cfg.Version),
		Logger:         logger,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", srv.Addr), zap.Bool("simulated_payments", payments.Simulated()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down api-server", zap.Duration("timeout", cfg.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
