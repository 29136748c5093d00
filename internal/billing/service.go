package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

var ErrInvalidInvoice = errors.New("invalid invoice")

type Service struct {
	repo    Repository
	dueDays int
	logger  *zap.Logger
	loc     *time.Location
	now     func() time.Time
}

type Option func(*Service)

func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, dueDays int, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		dueDays: dueDays,
		logger:  logger.Named("billing"),
		loc:     time.UTC,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() schedule.Date {
	return schedule.DateOf(s.now().In(s.loc))
}

func (s *Service) present(inv *Invoice) *Invoice {
	inv.Status = inv.EffectiveStatus(s.today())
	return inv
}

// RecordPaid stores the paid invoice for a confirmed appointment. Calling it
// again for the same appointment is a no-op.
func (s *Service) RecordPaid(ctx context.Context, a *appointment.Appointment) error {
	now := s.now()
	today := s.today()
	apptID := a.ID

	inv, err := s.repo.CreateInvoice(ctx, Invoice{
		AppointmentID: &apptID,
		ClientID:      a.ClientID,
		Amount:        a.Amount,
		Description:   fmt.Sprintf("%s on %s at %s", a.Type, a.Date, a.Time),
		InvoiceDate:   today,
		DueDate:       today,
		Status:        StatusPaid,
		PaidAt:        &now,
	})
	if err != nil {
		return fmt.Errorf("record invoice: %w", err)
	}

	s.logger.Info("invoice recorded",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("appointment_id", apptID.String()),
	)
	return nil
}

type CreateParams struct {
	ClientID    uuid.UUID
	Amount      decimal.Decimal
	Description string
	// DueDate defaults to the configured number of days from today.
	DueDate schedule.Date
}

// Create opens a standalone pending invoice.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Invoice, error) {
	if p.ClientID == uuid.Nil {
		return nil, fmt.Errorf("%w: clientId is required", ErrInvalidInvoice)
	}
	if !p.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInvoice)
	}
	if strings.TrimSpace(p.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInvoice)
	}

	today := s.today()
	due := p.DueDate
	if due.IsZero() {
		due = today.AddDays(s.dueDays)
	}
	if due.Before(today) {
		return nil, fmt.Errorf("%w: dueDate is in the past", ErrInvalidInvoice)
	}

	inv, err := s.repo.CreateInvoice(ctx, Invoice{
		ClientID:    p.ClientID,
		Amount:      p.Amount,
		Description: strings.TrimSpace(p.Description),
		InvoiceDate: today,
		DueDate:     due,
		Status:      StatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return s.present(inv), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.present(inv), nil
}

func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID) ([]Invoice, error) {
	invoices, err := s.repo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	for i := range invoices {
		s.present(&invoices[i])
	}
	return invoices, nil
}

// MarkPaid settles a pending or overdue invoice. Already paid invoices are returned as is.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.MarkPaid(ctx, id, s.now())
	if err != nil {
		if !errors.Is(err, ErrInvoiceNotFound) {
			return nil, fmt.Errorf("mark invoice paid: %w", err)
		}
		// either missing or already paid
		return s.Get(ctx, id)
	}

	s.logger.Info("invoice paid", zap.String("invoice_id", id.String()))
	return s.present(inv), nil
}
