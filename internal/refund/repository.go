package refund

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrRequestNotFound  = errors.New("refund request not found")
	ErrAlreadyRequested = errors.New("a refund request is already pending for this appointment")
)

type Repository interface {
	// CreateRequest returns ErrAlreadyRequested when the appointment already
	// has a pending request.
	CreateRequest(ctx context.Context, req Request) (*Request, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*Request, error)
	HasPending(ctx context.Context, appointmentID uuid.UUID) (bool, error)
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Request, error)

	// The following only touch pending requests and return ErrRequestNotFound otherwise.
	RecordRefundRef(ctx context.Context, id uuid.UUID, ref string) error
	Reject(ctx context.Context, id uuid.UUID, response *string) (*Request, error)
	// Approve marks the request approved and the appointment cancelled and
	// refunded in one transaction. It returns ErrAppointmentCompleted and
	// changes nothing when the appointment has been completed.
	Approve(ctx context.Context, id uuid.UUID, response *string) (*Request, error)
}
