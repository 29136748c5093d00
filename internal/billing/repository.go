package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

type Repository interface {
	// CreateInvoice inserts inv. For an appointment that already has an invoice
	// it returns the existing row instead.
	CreateInvoice(ctx context.Context, inv Invoice) (*Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]Invoice, error)
	// MarkPaid only applies to pending invoices; otherwise ErrInvoiceNotFound.
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (*Invoice, error)
}
