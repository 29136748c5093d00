package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

const uniqueViolation = "23505"

const appointmentColumns = `id, client_id, provider_id, slot_date, slot_time, duration_minutes, type, amount,
	status, payment_status, payment_intent_id, video_link, cancellation_reason, cancelled_by, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

// scanAppointment reads one row selected with appointmentColumns.
func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var slotDate time.Time
	var slotTime string
	var cancelledBy *string

	err := row.Scan(
		&a.ID,
		&a.ClientID,
		&a.ProviderID,
		&slotDate,
		&slotTime,
		&a.DurationMinutes,
		&a.Type,
		&a.Amount,
		&a.Status,
		&a.PaymentStatus,
		&a.PaymentIntentID,
		&a.VideoLink,
		&a.CancellationReason,
		&cancelledBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = schedule.DateOf(slotDate)
	a.Time, err = schedule.ParseTimeOfDay(strings.TrimSpace(slotTime))
	if err != nil {
		return nil, fmt.Errorf("decode slot_time: %w", err)
	}
	if cancelledBy != nil {
		by := Initiator(*cancelledBy)
		a.CancelledBy = &by
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Interface methods

func (r *PgRepository) ClientHasProvider(ctx context.Context, clientID, providerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM client_providers
			WHERE client_id = $1 AND provider_id = $2
		)
	`, clientID, providerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check client provider: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1::uuid IS NULL OR client_id = $1)
		  AND ($2::uuid IS NULL OR provider_id = $2)
		ORDER BY slot_date DESC, slot_time DESC
		LIMIT $3 OFFSET $4
	`, filter.ClientID, filter.ProviderID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListActiveForDate(ctx context.Context, providerID uuid.UUID, date schedule.Date) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND slot_date = $2
		  AND status <> 'cancelled'
		ORDER BY slot_time
	`, providerID, date.In(time.UTC))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindActiveForSlot(ctx context.Context, providerID uuid.UUID, date schedule.Date, t schedule.TimeOfDay) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND slot_date = $2
		  AND slot_time = $3
		  AND status <> 'cancelled'
	`, providerID, date.In(time.UTC), t.String())
	return scanAppointment(row)
}

// CreatePendingAppointment relies on the partial unique index over
// (provider_id, slot_date, slot_time) for non-cancelled rows.
func (r *PgRepository) CreatePendingAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, client_id, provider_id, slot_date, slot_time, duration_minutes, type, amount,
		                          status, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', 'pending', now(), now())
		RETURNING `+appointmentColumns,
		id, a.ClientID, a.ProviderID, a.Date.In(time.UTC), a.Time.String(), a.DurationMinutes, a.Type, a.Amount)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET payment_intent_id = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
		  AND payment_status = 'pending'
		RETURNING `+appointmentColumns,
		id, intentID)
	return scanAppointment(row)
}

func (r *PgRepository) MarkPaid(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'confirmed',
		    payment_status = 'paid',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
		  AND payment_status = 'pending'
		RETURNING `+appointmentColumns,
		id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) CancelAppointment(ctx context.Context, id uuid.UUID, from AppointmentStatus, reason string, by Initiator) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancellation_reason = $3,
		    cancelled_by = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+appointmentColumns,
		id, from, reason, by)
	return scanAppointment(row)
}

func (r *PgRepository) FindStalePending(ctx context.Context, createdBefore time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND payment_status = 'pending'
		  AND created_at < $1
	`, createdBefore)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
