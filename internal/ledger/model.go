package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ItemType string

const (
	TypeVideoSession ItemType = "video_session"
	TypeOrder        ItemType = "order"
)

func (t ItemType) Valid() bool {
	return t == TypeVideoSession || t == TypeOrder
}

type Status string

const (
	StatusOpen   Status = "open"
	StatusPaid   Status = "paid"
	StatusUnpaid Status = "unpaid"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusPaid, StatusUnpaid:
		return true
	}
	return false
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Age thresholds for urgency of an outstanding item.
const (
	MediumAfter = 7 * 24 * time.Hour
	HighAfter   = 14 * 24 * time.Hour
)

type Item struct {
	ID          uuid.UUID       `json:"id"`
	ClientID    *uuid.UUID      `json:"clientId,omitempty"`
	Type        ItemType        `json:"type"`
	Status      Status          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Urgency     Urgency         `json:"urgency"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// UrgencyAt derives urgency from how long an unsettled item has been
// outstanding. Paid items are always low.
func (i Item) UrgencyAt(now time.Time) Urgency {
	if i.Status == StatusPaid {
		return UrgencyLow
	}
	age := now.Sub(i.CreatedAt)
	switch {
	case age >= HighAfter:
		return UrgencyHigh
	case age >= MediumAfter:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

type Filter struct {
	Status *Status
	Type   *ItemType
}

type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortStatus    SortField = "status"
	SortAmount    SortField = "amount"
)

type Sort struct {
	Field SortField
	Desc  bool
}
