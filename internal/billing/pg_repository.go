package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

const invoiceColumns = `id, appointment_id, client_id, amount, description, invoice_date, due_date, status, paid_at, created_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var invoiceDate, dueDate time.Time

	err := row.Scan(
		&inv.ID,
		&inv.AppointmentID,
		&inv.ClientID,
		&inv.Amount,
		&inv.Description,
		&invoiceDate,
		&dueDate,
		&inv.Status,
		&inv.PaidAt,
		&inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}

	inv.InvoiceDate = schedule.DateOf(invoiceDate)
	inv.DueDate = schedule.DateOf(dueDate)
	return &inv, nil
}

func (r *PgRepository) CreateInvoice(ctx context.Context, inv Invoice) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO invoices (id, appointment_id, client_id, amount, description, invoice_date, due_date, status, paid_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (appointment_id) DO NOTHING
		RETURNING `+invoiceColumns,
		uuid.New(), inv.AppointmentID, inv.ClientID, inv.Amount, inv.Description,
		inv.InvoiceDate.In(time.UTC), inv.DueDate.In(time.UTC), inv.Status, inv.PaidAt)

	created, err := scanInvoice(row)
	if errors.Is(err, ErrInvoiceNotFound) && inv.AppointmentID != nil {
		return scanInvoice(r.pool.QueryRow(ctx, `
			SELECT `+invoiceColumns+`
			FROM invoices
			WHERE appointment_id = $1
		`, *inv.AppointmentID))
	}
	if err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = $1
	`, id))
}

func (r *PgRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE client_id = $1
		ORDER BY invoice_date DESC, created_at DESC
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *inv)
	}
	return result, rows.Err()
}

func (r *PgRepository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (*Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `
		UPDATE invoices
		SET status = 'paid',
		    paid_at = $2
		WHERE id = $1
		  AND status = 'pending'
		RETURNING `+invoiceColumns,
		id, paidAt))
}
