package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanConfig(row pgx.Row) (*Config, error) {
	var c Config
	var days []byte

	err := row.Scan(
		&c.ProviderID,
		&days,
		&c.SlotDurationMinutes,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(days, &c.DaysOfWeek); err != nil {
		return nil, fmt.Errorf("decode days_of_week: %w", err)
	}
	return &c, nil
}

func (r *PgRepository) GetScheduleByProvider(ctx context.Context, providerID uuid.UUID) (*Config, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT provider_id, days_of_week, slot_duration_minutes, updated_at
		FROM schedule_configs
		WHERE provider_id = $1
	`, providerID)
	return scanConfig(row)
}

func (r *PgRepository) UpsertSchedule(ctx context.Context, cfg Config) (*Config, error) {
	days, err := json.Marshal(cfg.DaysOfWeek)
	if err != nil {
		return nil, fmt.Errorf("encode days_of_week: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_configs (provider_id, days_of_week, slot_duration_minutes, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (provider_id) DO UPDATE
		SET days_of_week = EXCLUDED.days_of_week,
		    slot_duration_minutes = EXCLUDED.slot_duration_minutes,
		    updated_at = now()
		RETURNING provider_id, days_of_week, slot_duration_minutes, updated_at
	`, cfg.ProviderID, days, cfg.SlotDurationMinutes)
	return scanConfig(row)
}
