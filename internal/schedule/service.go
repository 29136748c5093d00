package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// cacheTTL bounds how long another instance's schedule write can go unseen.
const cacheTTL = time.Minute

// Service reads and writes provider schedules through a small per-process cache.
type Service struct {
	repo   Repository
	cache  *expirable.LRU[uuid.UUID, Config]
	logger *zap.Logger
}

func NewService(repo Repository, cacheSize int, logger *zap.Logger) *Service {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	return &Service{
		repo:   repo,
		cache:  expirable.NewLRU[uuid.UUID, Config](cacheSize, nil, cacheTTL),
		logger: logger.Named("schedule"),
	}
}

func (s *Service) Get(ctx context.Context, providerID uuid.UUID) (Config, error) {
	if cfg, ok := s.cache.Get(providerID); ok {
		return cfg, nil
	}

	cfg, err := s.repo.GetScheduleByProvider(ctx, providerID)
	if err != nil {
		return Config{}, fmt.Errorf("load schedule: %w", err)
	}

	s.cache.Add(providerID, *cfg)
	return *cfg, nil
}

// Put validates and stores cfg. Invalid schedules are rejected here rather
// than at slot generation time.
func (s *Service) Put(ctx context.Context, cfg Config) (Config, error) {
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	saved, err := s.repo.UpsertSchedule(ctx, cfg)
	if err != nil {
		return Config{}, fmt.Errorf("save schedule: %w", err)
	}

	s.cache.Add(saved.ProviderID, *saved)
	s.logger.Info("schedule updated",
		zap.String("provider_id", saved.ProviderID.String()),
		zap.Int("slot_duration_minutes", saved.SlotDurationMinutes),
	)
	return *saved, nil
}
