package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/appointment"
)

var (
	ErrPaymentFailed  = errors.New("payment failed")
	ErrRefundFailed   = errors.New("refund failed")
	ErrAmountMismatch = errors.New("amount does not match appointment")
	ErrIntentMismatch = errors.New("payment intent does not belong to appointment")
	ErrAlreadyPaid    = errors.New("appointment is already paid")
)

// Appointments is the slice of the appointment lifecycle the coordinator drives.
type Appointments interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	AttachPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) (*appointment.Appointment, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

// InvoiceRecorder records the billing view of a completed charge.
type InvoiceRecorder interface {
	RecordPaid(ctx context.Context, a *appointment.Appointment) error
}

// freeIntentPrefix marks intents settled internally for zero-amount
// appointments. Gateways reject zero-value charges.
const freeIntentPrefix = "free_"

type Intent struct {
	IntentID  string `json:"intentId"`
	Simulated bool   `json:"simulated"`
}

type Coordinator struct {
	provider     Provider
	appointments Appointments
	invoices     InvoiceRecorder
	logger       *zap.Logger
}

// NewCoordinator wires a provider to the appointment lifecycle. invoices may be nil.
func NewCoordinator(provider Provider, appointments Appointments, invoices InvoiceRecorder, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		provider:     provider,
		appointments: appointments,
		invoices:     invoices,
		logger:       logger.Named("payment").With(zap.String("provider", provider.Name())),
	}
}

func (c *Coordinator) Simulated() bool {
	return c.provider.Simulated()
}

// CreateIntent opens a payment intent for a pending appointment. A zero amount
// means "the appointment's amount". Calling it again returns the stored intent.
func (c *Coordinator) CreateIntent(ctx context.Context, appointmentID uuid.UUID, amount decimal.Decimal) (Intent, error) {
	appt, err := c.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return Intent{}, err
	}

	if appt.PaymentStatus != appointment.PaymentPending {
		return Intent{}, ErrAlreadyPaid
	}
	if appt.Status != appointment.StatusPending {
		return Intent{}, appointment.ErrInvalidStatusTransition
	}
	if !amount.IsZero() && !amount.Equal(appt.Amount) {
		return Intent{}, fmt.Errorf("%w: expected %s, got %s", ErrAmountMismatch, appt.Amount, amount)
	}

	if appt.PaymentIntentID != nil && *appt.PaymentIntentID != "" {
		return Intent{IntentID: *appt.PaymentIntentID, Simulated: c.provider.Simulated()}, nil
	}

	intentID := freeIntentPrefix + appt.ID.String()
	if !appt.Amount.IsZero() {
		intentID, err = c.provider.CreateIntent(ctx, appt.ID, appt.Amount)
		if err != nil {
			c.logger.Error("create intent failed", zap.String("appointment_id", appt.ID.String()), zap.Error(err))
			return Intent{}, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
		}
	}

	if _, err := c.appointments.AttachPaymentIntent(ctx, appt.ID, intentID); err != nil {
		return Intent{}, err
	}

	c.logger.Info("payment intent created",
		zap.String("appointment_id", appt.ID.String()),
		zap.String("intent_id", intentID),
		zap.String("amount", appt.Amount.String()),
	)
	return Intent{IntentID: intentID, Simulated: c.provider.Simulated()}, nil
}

// ConfirmPayment settles an intent and moves the appointment to confirmed.
// On a failed charge the appointment is left pending so the client can retry.
func (c *Coordinator) ConfirmPayment(ctx context.Context, intentID string, appointmentID uuid.UUID) (*appointment.Appointment, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, fmt.Errorf("%w: intentId is required", appointment.ErrInvalidInput)
	}

	appt, err := c.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.PaymentIntentID == nil || *appt.PaymentIntentID != intentID {
		return nil, ErrIntentMismatch
	}
	if appt.Status == appointment.StatusConfirmed && appt.PaymentStatus == appointment.PaymentPaid {
		return appt, nil
	}
	if appt.Status != appointment.StatusPending || appt.PaymentStatus != appointment.PaymentPending {
		return nil, appointment.ErrInvalidStatusTransition
	}

	outcome := Outcome{Status: StatusSucceeded, Reference: intentID}
	if !appt.Amount.IsZero() {
		outcome, err = c.provider.Confirm(ctx, intentID)
		if err != nil {
			c.logger.Error("confirm failed", zap.String("appointment_id", appointmentID.String()), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
		}
	}
	if !outcome.Succeeded() {
		c.logger.Warn("payment declined",
			zap.String("appointment_id", appointmentID.String()),
			zap.String("intent_id", intentID),
			zap.String("reason", outcome.FailureReason),
		)
		return nil, fmt.Errorf("%w: %s", ErrPaymentFailed, outcome.FailureReason)
	}

	confirmed, err := c.appointments.ConfirmPayment(ctx, appointmentID)
	if err != nil {
		return c.settleCapturedCharge(ctx, appt, intentID, err)
	}

	if c.invoices != nil {
		if err := c.invoices.RecordPaid(ctx, confirmed); err != nil {
			c.logger.Warn("failed to record invoice",
				zap.String("appointment_id", appointmentID.String()),
				zap.Error(err),
			)
		}
	}

	return confirmed, nil
}

// settleCapturedCharge handles a charge the provider accepted but the
// appointment could not record. A concurrent confirm that already recorded
// the payment counts as success. An appointment that moved on (the sweeper or
// a cancel got there first) gets its money back. Anything else is left pending
// so a retried confirm can record the payment without charging again.
func (c *Coordinator) settleCapturedCharge(ctx context.Context, appt *appointment.Appointment, intentID string, updateErr error) (*appointment.Appointment, error) {
	fields := []zap.Field{
		zap.String("appointment_id", appt.ID.String()),
		zap.String("intent_id", intentID),
		zap.NamedError("update_error", updateErr),
	}

	current, err := c.appointments.GetAppointment(ctx, appt.ID)
	if err != nil {
		c.logger.Error("charge captured but appointment state unknown", append(fields, zap.Error(err))...)
		return nil, updateErr
	}
	if isPaidWith(current, intentID) {
		return current, nil
	}
	if current.Status == appointment.StatusPending && current.PaymentStatus == appointment.PaymentPending {
		c.logger.Error("charge captured but appointment not confirmed", fields...)
		return nil, updateErr
	}

	c.logger.Error("charge captured on appointment no longer awaiting payment, refunding",
		append(fields, zap.String("status", string(current.Status)))...)

	if _, err := c.Refund(ctx, intentID, appt.Amount, "confirm-comp-"+appt.ID.String()); err != nil {
		c.logger.Error("compensating refund failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	return nil, fmt.Errorf("%w: payment refunded", updateErr)
}

func isPaidWith(a *appointment.Appointment, intentID string) bool {
	return a.PaymentStatus == appointment.PaymentPaid &&
		a.PaymentIntentID != nil && *a.PaymentIntentID == intentID
}

// Pay runs create-intent then confirm for the appointment's full amount.
func (c *Coordinator) Pay(ctx context.Context, appointmentID uuid.UUID) (*appointment.Appointment, error) {
	intent, err := c.CreateIntent(ctx, appointmentID, decimal.Zero)
	if err != nil {
		return nil, err
	}
	return c.ConfirmPayment(ctx, intent.IntentID, appointmentID)
}

// Refund returns money on a settled intent. idempotencyKey must be stable
// across retries of the same logical refund.
func (c *Coordinator) Refund(ctx context.Context, intentID string, amount decimal.Decimal, idempotencyKey string) (Outcome, error) {
	if amount.IsZero() {
		return Outcome{Status: StatusSucceeded, Reference: freeIntentPrefix + "refund_" + idempotencyKey}, nil
	}

	outcome, err := c.provider.Refund(ctx, intentID, amount, idempotencyKey)
	if err != nil {
		c.logger.Error("refund failed", zap.String("intent_id", intentID), zap.Error(err))
		return Outcome{}, fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}
	if !outcome.Succeeded() {
		return Outcome{}, fmt.Errorf("%w: %s", ErrRefundFailed, outcome.FailureReason)
	}

	c.logger.Info("refund issued",
		zap.String("intent_id", intentID),
		zap.String("refund_ref", outcome.Reference),
		zap.String("amount", amount.String()),
	)
	return outcome, nil
}
