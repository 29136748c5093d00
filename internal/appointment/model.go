package appointment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

// AppointmentStatus values. StatusPending is the pending-payment state every
// booking starts in.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Cancelled and completed are terminal.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Initiator identifies who asked for a cancellation.
type Initiator string

const (
	InitiatorClient   Initiator = "client"
	InitiatorProvider Initiator = "provider"
	InitiatorSystem   Initiator = "system"
)

func (i Initiator) Valid() bool {
	switch i {
	case InitiatorClient, InitiatorProvider, InitiatorSystem:
		return true
	}
	return false
}

type Appointment struct {
	ID                 uuid.UUID          `json:"id"`
	ClientID           uuid.UUID          `json:"clientId"`
	ProviderID         uuid.UUID          `json:"providerId"`
	Date               schedule.Date      `json:"date"`
	Time               schedule.TimeOfDay `json:"time"`
	DurationMinutes    int                `json:"durationMinutes"`
	Type               string             `json:"type"`
	Amount             decimal.Decimal    `json:"amount"`
	Status             AppointmentStatus  `json:"status"`
	PaymentStatus      PaymentStatus      `json:"paymentStatus"`
	PaymentIntentID    *string            `json:"paymentIntentId,omitempty"`
	VideoLink          *string            `json:"videoLink,omitempty"`
	CancellationReason *string            `json:"cancellationReason,omitempty"`
	CancelledBy        *Initiator         `json:"cancelledBy,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// StartsAt is the instant the appointment begins in the provider's zone.
func (a *Appointment) StartsAt(loc *time.Location) time.Time {
	return a.Time.On(a.Date, loc)
}

func (a *Appointment) booking() schedule.Booking {
	return schedule.Booking{Time: a.Time, Cancelled: a.Status == StatusCancelled}
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// ListFilter narrows appointment listings. Nil fields are ignored.
type ListFilter struct {
	ClientID   *uuid.UUID
	ProviderID *uuid.UUID
	Limit      int
	Offset     int
}
