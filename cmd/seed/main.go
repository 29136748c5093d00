package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/caarlos0/env/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/config"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/ledger"
	"github.com/hackgods/telehealth-scheduling/internal/logging"
	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

type seedConfig struct {
	Providers          int `env:"SEED_PROVIDERS" envDefault:"20"`
	Clients            int `env:"SEED_CLIENTS" envDefault:"2000"`
	ProvidersPerClient int `env:"SEED_PROVIDERS_PER_CLIENT" envDefault:"2"`
	PendingItems       int `env:"SEED_PENDING_ITEMS" envDefault:"200"`
}

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
	logger = logger.Named("seed")

	var seedCfg seedConfig
	if err := env.Parse(&seedCfg); err != nil {
		logger.Fatal("seed config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, logger)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	s := &seeder{pool: pool, logger: logger}
	if err := s.run(context.Background(), seedCfg); err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}

	logger.Info("seed complete")
}

type seeder struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func (s *seeder) run(ctx context.Context, cfg seedConfig) error {
	providers, err := s.seedProviders(ctx, cfg.Providers)
	if err != nil {
		return fmt.Errorf("seed providers: %w", err)
	}
	if err := s.seedSchedules(ctx, providers); err != nil {
		return fmt.Errorf("seed schedules: %w", err)
	}
	clients, err := s.seedClients(ctx, cfg.Clients, providers, cfg.ProvidersPerClient)
	if err != nil {
		return fmt.Errorf("seed clients: %w", err)
	}
	if err := s.seedPendingItems(ctx, cfg.PendingItems, clients); err != nil {
		return fmt.Errorf("seed pending items: %w", err)
	}
	return nil
}

func (s *seeder) seedProviders(ctx context.Context, count int) ([]uuid.UUID, error) {
	s.logger.Info("seeding providers", zap.Int("count", count))

	specialties := []string{
		"General Practice",
		"Psychiatry",
		"Psychology",
		"Dermatology",
		"Nutrition",
		"Pediatrics",
		"Endocrinology",
		"Physiotherapy",
	}

	ids := make([]uuid.UUID, 0, count)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO providers (id, name, email, specialty)
				VALUES ($1, $2, $3, $4)
			`, id, "Dr. "+gofakeit.Name(), gofakeit.Email(), specialties[gofakeit.Number(0, len(specialties)-1)])
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("providers seeded", zap.Int("count", len(ids)))
	return ids, nil
}

// seedSchedules gives each provider weekday hours with a lunch break and a
// random slot length. Weekends stay off.
func (s *seeder) seedSchedules(ctx context.Context, providers []uuid.UUID) error {
	repo := schedule.NewPgRepository(s.pool)
	durations := []int{30, 45, 60}

	for _, id := range providers {
		start := schedule.TimeOfDay(gofakeit.Number(8, 10) * 60)
		breakStart := schedule.TimeOfDay(12 * 60)
		breakEnd := schedule.TimeOfDay(13 * 60)

		cfg := schedule.Config{
			ProviderID:          id,
			DaysOfWeek:          make(map[string]schedule.Day),
			SlotDurationMinutes: durations[gofakeit.Number(0, len(durations)-1)],
		}
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			day := schedule.Day{Enabled: wd != time.Saturday && wd != time.Sunday}
			if day.Enabled {
				day.Start = start
				day.End = schedule.TimeOfDay(gofakeit.Number(16, 18) * 60)
				day.BreakStart = &breakStart
				day.BreakEnd = &breakEnd
			}
			cfg.SetDay(wd, day)
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("provider %s: %w", id, err)
		}
		if _, err := repo.UpsertSchedule(ctx, cfg); err != nil {
			return err
		}
	}

	s.logger.Info("schedules seeded", zap.Int("count", len(providers)))
	return nil
}

func (s *seeder) seedClients(ctx context.Context, count int, providers []uuid.UUID, perClient int) ([]uuid.UUID, error) {
	s.logger.Info("seeding clients", zap.Int("count", count))

	const batchSize = 500

	ids := make([]uuid.UUID, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				id := uuid.New()
				_, err := tx.Exec(ctx, `
					INSERT INTO clients (id, name, email)
					VALUES ($1, $2, $3)
				`, id, gofakeit.Name(), gofakeit.Email())
				if err != nil {
					return err
				}

				for _, p := range pickProviders(providers, perClient) {
					_, err := tx.Exec(ctx, `
						INSERT INTO client_providers (client_id, provider_id)
						VALUES ($1, $2)
						ON CONFLICT DO NOTHING
					`, id, p)
					if err != nil {
						return err
					}
				}
				ids = append(ids, id)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		s.logger.Info("clients seeded", zap.Int("done", end), zap.Int("total", count))
	}

	return ids, nil
}

func pickProviders(providers []uuid.UUID, n int) []uuid.UUID {
	if n >= len(providers) {
		return providers
	}
	idx := seq(len(providers))
	gofakeit.ShuffleInts(idx)

	out := make([]uuid.UUID, 0, n)
	for _, i := range idx[:n] {
		out = append(out, providers[i])
	}
	return out
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// seedPendingItems spreads creation times over the last three weeks so every
// urgency band is represented.
func (s *seeder) seedPendingItems(ctx context.Context, count int, clients []uuid.UUID) error {
	if len(clients) == 0 {
		return nil
	}
	svc := ledger.NewService(ledger.NewPgRepository(s.pool), s.logger, nil)
	types := []ledger.ItemType{ledger.TypeVideoSession, ledger.TypeOrder}

	for i := 0; i < count; i++ {
		clientID := clients[gofakeit.Number(0, len(clients)-1)]
		age := time.Duration(gofakeit.Number(0, 21*24)) * time.Hour

		itemType := types[gofakeit.Number(0, len(types)-1)]
		description := "Video consultation"
		if itemType == ledger.TypeOrder {
			description = gofakeit.ProductName()
		}

		_, err := svc.Create(ctx, ledger.CreateParams{
			ClientID:    &clientID,
			Type:        itemType,
			Amount:      decimal.NewFromFloat(gofakeit.Price(15, 250)).Round(2),
			Description: description,
			CreatedAt:   time.Now().Add(-age),
		})
		if err != nil {
			return err
		}
	}

	s.logger.Info("pending items seeded", zap.Int("count", count))
	return nil
}
