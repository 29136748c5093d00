package refund

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MinReasonLength is the shortest reason a client may give, in characters.
const MinReasonLength = 10

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Request struct {
	ID               uuid.UUID       `json:"id"`
	AppointmentID    uuid.UUID       `json:"appointmentId"`
	Reason           string          `json:"reason"`
	Amount           decimal.Decimal `json:"amount"`
	Status           Status          `json:"status"`
	ProviderResponse *string         `json:"providerResponse,omitempty"`
	// RefundRef is the payment provider's refund id, written as soon as the
	// money has moved and before the request is marked approved.
	RefundRef  *string    `json:"refundRef,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

func (r *Request) resolvedAs(approved bool) bool {
	return (approved && r.Status == StatusApproved) || (!approved && r.Status == StatusRejected)
}
