package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	// StatusOverdue is never stored; it is derived from a pending invoice's due date.
	StatusOverdue Status = "overdue"
)

type Invoice struct {
	ID            uuid.UUID       `json:"id"`
	AppointmentID *uuid.UUID      `json:"appointmentId,omitempty"`
	ClientID      uuid.UUID       `json:"clientId"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	InvoiceDate   schedule.Date   `json:"invoiceDate"`
	DueDate       schedule.Date   `json:"dueDate"`
	Status        Status          `json:"status"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// EffectiveStatus reports overdue for a pending invoice whose due date has passed.
func (i Invoice) EffectiveStatus(today schedule.Date) Status {
	if i.Status == StatusPending && i.DueDate.Before(today) {
		return StatusOverdue
	}
	return i.Status
}
