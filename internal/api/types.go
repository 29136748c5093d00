package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

type PutScheduleRequest struct {
	DaysOfWeek          map[string]schedule.Day `json:"daysOfWeek"`
	SlotDurationMinutes int                     `json:"slotDurationMinutes"`
}

type CreateAppointmentRequest struct {
	ClientID   uuid.UUID          `json:"clientId"`
	ProviderID uuid.UUID          `json:"providerId"`
	Date       schedule.Date      `json:"date"`
	Time       schedule.TimeOfDay `json:"time"`
	Type       string             `json:"type"`
	Amount     decimal.Decimal    `json:"amount"`
}

type UpdateAppointmentStatusRequest struct {
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	Initiator string `json:"initiator"`
}

type CreatePaymentIntentRequest struct {
	AppointmentID uuid.UUID       `json:"appointmentId"`
	Amount        decimal.Decimal `json:"amount"`
}

type ConfirmPaymentRequest struct {
	IntentID      string    `json:"intentId"`
	AppointmentID uuid.UUID `json:"appointmentId"`
}

type CreateRefundRequest struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	Reason        string    `json:"reason"`
}

type ResolveRefundRequest struct {
	Approved *bool  `json:"approved"`
	Response string `json:"response"`
}

type CreateInvoiceRequest struct {
	ClientID    uuid.UUID       `json:"clientId"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	DueDate     *schedule.Date  `json:"dueDate,omitempty"`
}

type CreatePendingItemRequest struct {
	ClientID    *uuid.UUID      `json:"clientId,omitempty"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   *time.Time      `json:"createdAt,omitempty"`
}

type UpdatePendingItemRequest struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON: "+err.Error())
		return false
	}
	return true
}
