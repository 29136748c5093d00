package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	redisclient "github.com/hackgods/telehealth-scheduling/internal/redis"
	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventPaymentIntentCreated = "PAYMENT_INTENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
)

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrNoProviderAssigned      = errors.New("client has no relationship with this provider")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrNotYetOccurred          = errors.New("appointment has not yet occurred")
)

// ScheduleSource supplies provider working hours.
type ScheduleSource interface {
	Get(ctx context.Context, providerID uuid.UUID) (schedule.Config, error)
}

type Service struct {
	repo      Repository
	schedules ScheduleSource
	locker    redisclient.Locker
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

type Option func(*Service)

// WithLocation sets the provider-local zone used for dates, times and "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, schedules ScheduleSource, locker redisclient.Locker, logger *zap.Logger, opts ...Option) *Service {
	if locker == nil {
		locker = redisclient.NoopLocker{}
	}
	s := &Service{
		repo:      repo,
		schedules: schedules,
		locker:    locker,
		logger:    logger.Named("appointment"),
		loc:       time.UTC,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) localNow() time.Time {
	return s.now().In(s.loc)
}

// Today is the current calendar date in the provider's zone.
func (s *Service) Today() schedule.Date {
	return schedule.DateOf(s.localNow())
}

// Availability wraps the slot engine with the provider's stored schedule and
// current bookings. The result is advisory; Create re-validates.
func (s *Service) Availability(ctx context.Context, providerID uuid.UUID, date schedule.Date) (schedule.Availability, error) {
	cfg, err := s.schedules.Get(ctx, providerID)
	if err != nil {
		return schedule.Availability{}, err
	}

	booked, err := s.repo.ListActiveForDate(ctx, providerID, date)
	if err != nil {
		return schedule.Availability{}, fmt.Errorf("load bookings: %w", err)
	}

	return schedule.ComputeSlots(cfg, date, bookingsOf(booked), s.localNow()), nil
}

func bookingsOf(appts []Appointment) []schedule.Booking {
	out := make([]schedule.Booking, 0, len(appts))
	for i := range appts {
		out = append(out, appts[i].booking())
	}
	return out
}

type CreateParams struct {
	ClientID   uuid.UUID
	ProviderID uuid.UUID
	Date       schedule.Date
	Time       schedule.TimeOfDay
	Type       string
	Amount     decimal.Decimal
}

func (p CreateParams) validate() error {
	switch {
	case p.ClientID == uuid.Nil:
		return fmt.Errorf("%w: clientId is required", ErrInvalidInput)
	case p.ProviderID == uuid.Nil:
		return fmt.Errorf("%w: providerId is required", ErrInvalidInput)
	case p.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	case !p.Time.Valid():
		return fmt.Errorf("%w: time is out of range", ErrInvalidInput)
	case strings.TrimSpace(p.Type) == "":
		return fmt.Errorf("%w: type is required", ErrInvalidInput)
	case p.Amount.IsNegative():
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	}
	return nil
}

func slotLockKey(providerID uuid.UUID, date schedule.Date, t schedule.TimeOfDay) string {
	return fmt.Sprintf("%s:%s:%s", providerID, date, t)
}

// CreateAppointment books a slot in the pending-payment state. The slot is
// re-validated against the schedule and current bookings, then inserted under
// a per-slot lock; the store's unique index settles any remaining race.
// Callers must not retry blindly: check for an existing booking first.
func (s *Service) CreateAppointment(ctx context.Context, p CreateParams) (*Appointment, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	linked, err := s.repo.ClientHasProvider(ctx, p.ClientID, p.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("check provider relationship: %w", err)
	}
	if !linked {
		return nil, ErrNoProviderAssigned
	}

	cfg, err := s.schedules.Get(ctx, p.ProviderID)
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	booked, err := s.repo.ListActiveForDate(ctx, p.ProviderID, p.Date)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	if !schedule.ComputeSlots(cfg, p.Date, bookingsOf(booked), s.localNow()).Has(p.Time) {
		return nil, ErrSlotUnavailable
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, slotLockKey(p.ProviderID, p.Date, p.Time), func(lockCtx context.Context) error {
		// Inside the critical section re-check for an active appointment on this slot
		existing, err := s.repo.FindActiveForSlot(lockCtx, p.ProviderID, p.Date, p.Time)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check active appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotUnavailable
		}

		appt, err := s.repo.CreatePendingAppointment(lockCtx, Appointment{
			ClientID:        p.ClientID,
			ProviderID:      p.ProviderID,
			Date:            p.Date,
			Time:            p.Time,
			DurationMinutes: cfg.SlotDurationMinutes,
			Type:            strings.TrimSpace(p.Type),
			Amount:          p.Amount,
		})
		if err != nil {
			if errors.Is(err, ErrSlotUnavailable) {
				return err
			}
			return fmt.Errorf("create pending appointment: %w", err)
		}

		created = appt
		s.logEvent(lockCtx, appt.ID, EventAppointmentCreated, map[string]any{
			"client_id":   p.ClientID.String(),
			"provider_id": p.ProviderID.String(),
			"date":        p.Date.String(),
			"time":        p.Time.String(),
			"amount":      p.Amount.String(),
		})
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, fmt.Errorf("%w: slot is currently being booked", ErrSlotUnavailable)
		}
		return nil, err
	}

	s.logger.Info("appointment created",
		zap.String("appointment_id", created.ID.String()),
		zap.String("provider_id", created.ProviderID.String()),
		zap.String("slot", slotLockKey(created.ProviderID, created.Date, created.Time)),
	)
	return created, nil
}

// AttachPaymentIntent records the payment provider's intent on a pending appointment.
func (s *Service) AttachPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) (*Appointment, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, fmt.Errorf("%w: intent id is required", ErrInvalidInput)
	}

	updated, err := s.repo.SetPaymentIntent(ctx, id, intentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			if _, getErr := s.GetAppointment(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("attach payment intent: %w", err)
	}

	s.logEvent(ctx, id, EventPaymentIntentCreated, map[string]any{"intent_id": intentID})
	return updated, nil
}

// ConfirmPayment moves a pending appointment to confirmed and paid. Repeating
// it on an already confirmed appointment is a no-op success.
func (s *Service) ConfirmPayment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	if isConfirmedAndPaid(appt) {
		return appt, nil
	}
	if appt.Status != StatusPending || appt.PaymentStatus != PaymentPending {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.MarkPaid(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("confirm appointment: %w", err)
		}
		// Lost a race; a concurrent confirm is still a success.
		current, getErr := s.GetAppointment(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if isConfirmedAndPaid(current) {
			return current, nil
		}
		return nil, ErrInvalidStatusTransition
	}

	s.logTransition(updated, StatusPending)
	s.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{})
	return updated, nil
}

func isConfirmedAndPaid(a *Appointment) bool {
	return a.Status == StatusConfirmed && a.PaymentStatus == PaymentPaid
}

// CancelAppointment cancels a pending or confirmed appointment. It never
// issues a refund; a paid client cancellation inside the refund window is
// recorded as non-refundable. Repeating it on a cancelled appointment is a
// no-op success.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason string, initiator Initiator) (*Appointment, error) {
	if !initiator.Valid() {
		return nil, fmt.Errorf("%w: unknown initiator %q", ErrInvalidInput, initiator)
	}

	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status == StatusCancelled {
		return appt, nil
	}
	if !appt.Status.CanTransitionTo(StatusCancelled) {
		return nil, ErrInvalidStatusTransition
	}

	nonRefundable := IsNonRefundableCancellation(appt, initiator, s.Today())
	from := appt.Status

	updated, err := s.repo.CancelAppointment(ctx, id, from, strings.TrimSpace(reason), initiator)
	if err != nil {
		if !errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("cancel appointment: %w", err)
		}
		current, getErr := s.GetAppointment(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == StatusCancelled {
			return current, nil
		}
		return nil, ErrInvalidStatusTransition
	}

	s.logTransition(updated, from)
	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"reason":         reason,
		"initiator":      string(initiator),
		"payment_status": string(updated.PaymentStatus),
		"non_refundable": nonRefundable,
	})
	return updated, nil
}

// MarkCompleted is invoked by the provider once the appointment start time has
// passed. Nothing schedules it automatically.
func (s *Service) MarkCompleted(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status == StatusCompleted {
		return appt, nil
	}
	if appt.Status != StatusConfirmed {
		return nil, ErrInvalidStatusTransition
	}
	if !appt.StartsAt(s.loc).Before(s.localNow()) {
		return nil, ErrNotYetOccurred
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusConfirmed, StatusCompleted)
	if err != nil {
		if !errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("complete appointment: %w", err)
		}
		current, getErr := s.GetAppointment(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == StatusCompleted {
			return current, nil
		}
		return nil, ErrInvalidStatusTransition
	}

	s.logTransition(updated, StatusConfirmed)
	s.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{})
	return updated, nil
}

// CancelAbandoned cancels appointments still awaiting payment after window.
// It is the caller-side abandonment policy run by the payment sweeper.
func (s *Service) CancelAbandoned(ctx context.Context, window time.Duration) (int, error) {
	stale, err := s.repo.FindStalePending(ctx, s.now().Add(-window))
	if err != nil {
		return 0, fmt.Errorf("find stale pending appointments: %w", err)
	}

	cancelled := 0
	for _, appt := range stale {
		if _, err := s.CancelAppointment(ctx, appt.ID, "payment_window_elapsed", InitiatorSystem); err != nil {
			s.logger.Warn("failed to cancel abandoned appointment",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err),
			)
			continue
		}
		cancelled++
	}

	return cancelled, nil
}

// GetAppointment retrieves an appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

// ListAppointments retrieves appointments for a client and/or provider
func (s *Service) ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20 // default
	}
	if filter.Limit > 100 {
		filter.Limit = 100 // max
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	appointments, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

func (s *Service) logTransition(a *Appointment, from AppointmentStatus) {
	s.logger.Info("appointment status changed",
		zap.String("appointment_id", a.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(a.Status)),
		zap.String("payment_status", string(a.PaymentStatus)),
	)
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("failed to insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}
