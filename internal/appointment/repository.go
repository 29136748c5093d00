package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotUnavailable     = errors.New("slot is no longer available")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	ClientHasProvider(ctx context.Context, clientID, providerID uuid.UUID) (bool, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error)

	// For conflict checks
	ListActiveForDate(ctx context.Context, providerID uuid.UUID, date schedule.Date) ([]Appointment, error)
	FindActiveForSlot(ctx context.Context, providerID uuid.UUID, date schedule.Date, t schedule.TimeOfDay) (*Appointment, error)

	// CreatePendingAppointment inserts atomically; it returns ErrSlotUnavailable
	// when another non-cancelled appointment already holds the slot.
	CreatePendingAppointment(ctx context.Context, a Appointment) (*Appointment, error)

	// Conditional updates return ErrAppointmentNotFound when the row is not in
	// the expected state.
	SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) (*Appointment, error)
	MarkPaid(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, from AppointmentStatus, reason string, by Initiator) (*Appointment, error)

	// Abandonment sweep
	FindStalePending(ctx context.Context, createdBefore time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
