package refund

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/telehealth-scheduling/internal/appointment"
)

const (
	EventRefundRequested = "REFUND_REQUESTED"
	EventRefundApproved  = "REFUND_APPROVED"
	EventRefundRejected  = "REFUND_REJECTED"
)

const requestColumns = `id, appointment_id, reason, amount, status, provider_response, refund_ref, created_at, resolved_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	err := row.Scan(
		&r.ID,
		&r.AppointmentID,
		&r.Reason,
		&r.Amount,
		&r.Status,
		&r.ProviderResponse,
		&r.RefundRef,
		&r.CreatedAt,
		&r.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &r, nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, eventType string, appointmentID uuid.UUID, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, now())
	`, eventType, appointmentID, data)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func (r *PgRepository) CreateRequest(ctx context.Context, req Request) (*Request, error) {
	var created *Request

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		created, err = scanRequest(tx.QueryRow(ctx, `
			INSERT INTO refund_requests (id, appointment_id, reason, amount, status, created_at)
			VALUES ($1, $2, $3, $4, 'pending', now())
			RETURNING `+requestColumns,
			uuid.New(), req.AppointmentID, req.Reason, req.Amount))
		if err != nil {
			return err
		}

		return insertEvent(ctx, tx, EventRefundRequested, created.AppointmentID, map[string]any{
			"refund_request_id": created.ID.String(),
			"amount":            created.Amount.String(),
		})
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyRequested
		}
		return nil, fmt.Errorf("insert refund request: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM refund_requests
		WHERE id = $1
	`, id))
}

func (r *PgRepository) HasPending(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM refund_requests
			WHERE appointment_id = $1 AND status = 'pending'
		)
	`, appointmentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending refund: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM refund_requests
		WHERE appointment_id = $1
		ORDER BY created_at DESC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

func (r *PgRepository) RecordRefundRef(ctx context.Context, id uuid.UUID, ref string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE refund_requests
		SET refund_ref = $2
		WHERE id = $1
		  AND status = 'pending'
	`, id, ref)
	if err != nil {
		return fmt.Errorf("record refund ref: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *PgRepository) Reject(ctx context.Context, id uuid.UUID, response *string) (*Request, error) {
	var rejected *Request

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		rejected, err = scanRequest(tx.QueryRow(ctx, `
			UPDATE refund_requests
			SET status = 'rejected',
			    provider_response = $2,
			    resolved_at = now()
			WHERE id = $1
			  AND status = 'pending'
			RETURNING `+requestColumns,
			id, response))
		if err != nil {
			return err
		}

		return insertEvent(ctx, tx, EventRefundRejected, rejected.AppointmentID, map[string]any{
			"refund_request_id": rejected.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

func (r *PgRepository) Approve(ctx context.Context, id uuid.UUID, response *string) (*Request, error) {
	var approved *Request

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		approved, err = scanRequest(tx.QueryRow(ctx, `
			UPDATE refund_requests
			SET status = 'approved',
			    provider_response = $2,
			    resolved_at = now()
			WHERE id = $1
			  AND status = 'pending'
			RETURNING `+requestColumns,
			id, response))
		if err != nil {
			return err
		}

		var prev appointment.AppointmentStatus
		err = tx.QueryRow(ctx, `
			SELECT status FROM appointments WHERE id = $1 FOR UPDATE
		`, approved.AppointmentID).Scan(&prev)
		if err != nil {
			return fmt.Errorf("lock appointment: %w", err)
		}
		if !refundableStatus(prev) {
			return ErrAppointmentCompleted
		}

		tag, err := tx.Exec(ctx, `
			UPDATE appointments
			SET status = 'cancelled',
			    payment_status = 'refunded',
			    cancellation_reason = COALESCE(cancellation_reason, 'refund_approved'),
			    cancelled_by = COALESCE(cancelled_by, 'provider'),
			    updated_at = now()
			WHERE id = $1
			  AND status IN ('pending', 'confirmed', 'cancelled')
		`, approved.AppointmentID)
		if err != nil {
			return fmt.Errorf("refund appointment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrAppointmentCompleted
		}

		if payload := approvalCancelEvent(prev); payload != nil {
			if err := insertEvent(ctx, tx, appointment.EventAppointmentCancelled, approved.AppointmentID, payload); err != nil {
				return err
			}
		}

		payload := map[string]any{
			"refund_request_id": approved.ID.String(),
			"amount":            approved.Amount.String(),
		}
		if approved.RefundRef != nil {
			payload["refund_ref"] = *approved.RefundRef
		}
		return insertEvent(ctx, tx, EventRefundApproved, approved.AppointmentID, payload)
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// refundableStatus reports whether approval may move an appointment in this
// state to cancelled/refunded. Completed is terminal.
func refundableStatus(s appointment.AppointmentStatus) bool {
	switch s {
	case appointment.StatusPending, appointment.StatusConfirmed, appointment.StatusCancelled:
		return true
	default:
		return false
	}
}

// approvalCancelEvent is the APPOINTMENT_CANCELLED payload written when an
// approval cancels the appointment, or nil when it was already cancelled.
func approvalCancelEvent(prev appointment.AppointmentStatus) map[string]any {
	if prev == appointment.StatusCancelled {
		return nil
	}
	return map[string]any{
		"reason":         "refund_approved",
		"initiator":      string(appointment.InitiatorProvider),
		"payment_status": string(appointment.PaymentRefunded),
		"non_refundable": false,
	}
}
