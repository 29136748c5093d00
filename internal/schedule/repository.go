package schedule

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists provider schedules.
type Repository interface {
	GetScheduleByProvider(ctx context.Context, providerID uuid.UUID) (*Config, error)
	UpsertSchedule(ctx context.Context, cfg Config) (*Config, error)
}
