package refund

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/payment"
	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

var (
	ErrNotEligible          = appointment.ErrNotEligible
	ErrNotPaid              = appointment.ErrNotPaid
	ErrAlreadyResolved      = errors.New("refund request has already been resolved")
	ErrReasonTooShort       = fmt.Errorf("reason must be at least %d characters", MinReasonLength)
	ErrNoPaymentReference   = errors.New("appointment has no payment to refund against")
	ErrAppointmentCompleted = fmt.Errorf("%w: appointment is already completed", appointment.ErrInvalidStatusTransition)
)

// Appointments is the read side of the appointment lifecycle.
type Appointments interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Today() schedule.Date
}

// Refunder moves money back through the payment provider.
type Refunder interface {
	Refund(ctx context.Context, intentID string, amount decimal.Decimal, idempotencyKey string) (payment.Outcome, error)
}

type Workflow struct {
	repo         Repository
	appointments Appointments
	refunder     Refunder
	logger       *zap.Logger
}

func NewWorkflow(repo Repository, appointments Appointments, refunder Refunder, logger *zap.Logger) *Workflow {
	return &Workflow{
		repo:         repo,
		appointments: appointments,
		refunder:     refunder,
		logger:       logger.Named("refund"),
	}
}

// RequestRefund opens a pending request for an eligible appointment. The
// amount is copied from the appointment.
func (w *Workflow) RequestRefund(ctx context.Context, appointmentID uuid.UUID, reason string) (*Request, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < MinReasonLength {
		return nil, ErrReasonTooShort
	}

	appt, err := w.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if err := appointment.CheckRefundEligibility(appt, w.appointments.Today()); err != nil {
		return nil, err
	}

	pending, err := w.repo.HasPending(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrAlreadyRequested
	}

	req, err := w.repo.CreateRequest(ctx, Request{
		AppointmentID: appointmentID,
		Reason:        reason,
		Amount:        appt.Amount,
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("refund requested",
		zap.String("refund_request_id", req.ID.String()),
		zap.String("appointment_id", appointmentID.String()),
		zap.String("amount", req.Amount.String()),
	)
	return req, nil
}

// Resolve approves or rejects a pending request. Approval refunds through the
// payment provider, durably records the refund reference, then commits the
// request and appointment changes together. A retry after a partial failure
// reuses the recorded reference instead of refunding again.
func (w *Workflow) Resolve(ctx context.Context, requestID uuid.UUID, approved bool, response string) (*Request, error) {
	req, err := w.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if req.Status != StatusPending {
		if req.resolvedAs(approved) {
			return req, nil
		}
		return nil, ErrAlreadyResolved
	}

	var resp *string
	if trimmed := strings.TrimSpace(response); trimmed != "" {
		resp = &trimmed
	}

	var resolved *Request
	if approved {
		resolved, err = w.approve(ctx, req, resp)
	} else {
		resolved, err = w.repo.Reject(ctx, req.ID, resp)
	}
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return w.settledElsewhere(ctx, requestID, approved)
		}
		return nil, err
	}

	w.logger.Info("refund request resolved",
		zap.String("refund_request_id", resolved.ID.String()),
		zap.String("appointment_id", resolved.AppointmentID.String()),
		zap.String("status", string(resolved.Status)),
	)
	return resolved, nil
}

func (w *Workflow) approve(ctx context.Context, req *Request, response *string) (*Request, error) {
	appt, err := w.appointments.GetAppointment(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	// A completed appointment stays completed; the request can only be rejected.
	if appt.Status == appointment.StatusCompleted {
		return nil, ErrAppointmentCompleted
	}

	if req.RefundRef == nil {
		if appt.PaymentIntentID == nil || *appt.PaymentIntentID == "" {
			return nil, ErrNoPaymentReference
		}

		outcome, err := w.refunder.Refund(ctx, *appt.PaymentIntentID, req.Amount, req.ID.String())
		if err != nil {
			return nil, err
		}

		if err := w.repo.RecordRefundRef(ctx, req.ID, outcome.Reference); err != nil {
			w.logger.Error("refund issued but reference not recorded",
				zap.String("refund_request_id", req.ID.String()),
				zap.String("refund_ref", outcome.Reference),
				zap.Error(err),
			)
			return nil, err
		}
	}

	approved, err := w.repo.Approve(ctx, req.ID, response)
	if err != nil && !errors.Is(err, ErrRequestNotFound) {
		w.logger.Error("refund issued but approval not committed",
			zap.String("refund_request_id", req.ID.String()),
			zap.String("appointment_id", req.AppointmentID.String()),
			zap.Error(err),
		)
	}
	return approved, err
}

// settledElsewhere handles losing a race against a concurrent resolve.
func (w *Workflow) settledElsewhere(ctx context.Context, requestID uuid.UUID, approved bool) (*Request, error) {
	current, err := w.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if current.resolvedAs(approved) {
		return current, nil
	}
	return nil, ErrAlreadyResolved
}

func (w *Workflow) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return w.repo.GetRequest(ctx, id)
}

func (w *Workflow) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Request, error) {
	if _, err := w.appointments.GetAppointment(ctx, appointmentID); err != nil {
		return nil, err
	}
	return w.repo.ListByAppointment(ctx, appointmentID)
}
