package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/billing"
	"github.com/hackgods/telehealth-scheduling/internal/ledger"
	"github.com/hackgods/telehealth-scheduling/internal/payment"
	"github.com/hackgods/telehealth-scheduling/internal/refund"
	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters where sentinels wrap each other.
var errorMappings = []errorMapping{
	// validation
	{appointment.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{schedule.ErrInvalidSchedule, http.StatusBadRequest, "invalid_schedule"},
	{schedule.ErrInvalidDate, http.StatusBadRequest, "invalid_date"},
	{schedule.ErrInvalidTimeOfDay, http.StatusBadRequest, "invalid_time"},
	{refund.ErrReasonTooShort, http.StatusBadRequest, "reason_too_short"},
	{billing.ErrInvalidInvoice, http.StatusBadRequest, "invalid_invoice"},
	{ledger.ErrInvalidItem, http.StatusBadRequest, "invalid_pending_item"},
	{payment.ErrAmountMismatch, http.StatusBadRequest, "amount_mismatch"},
	{payment.ErrIntentMismatch, http.StatusBadRequest, "intent_mismatch"},

	// not found
	{appointment.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
	{schedule.ErrScheduleNotFound, http.StatusNotFound, "schedule_not_found"},
	{refund.ErrRequestNotFound, http.StatusNotFound, "refund_request_not_found"},
	{billing.ErrInvoiceNotFound, http.StatusNotFound, "invoice_not_found"},
	{ledger.ErrItemNotFound, http.StatusNotFound, "pending_item_not_found"},

	// conflict
	{appointment.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
	{refund.ErrAlreadyRequested, http.StatusConflict, "already_requested"},
	{refund.ErrAlreadyResolved, http.StatusConflict, "already_resolved"},
	{appointment.ErrInvalidStatusTransition, http.StatusConflict, "invalid_status_transition"},
	{payment.ErrAlreadyPaid, http.StatusConflict, "already_paid"},

	// eligibility
	{appointment.ErrNotEligible, http.StatusUnprocessableEntity, "not_eligible"},
	{appointment.ErrNotPaid, http.StatusUnprocessableEntity, "not_paid"},
	{appointment.ErrNotYetOccurred, http.StatusUnprocessableEntity, "not_yet_occurred"},
	{appointment.ErrNoProviderAssigned, http.StatusUnprocessableEntity, "no_provider_assigned"},
	{refund.ErrNoPaymentReference, http.StatusUnprocessableEntity, "no_payment_reference"},

	// external
	{payment.ErrPaymentFailed, http.StatusPaymentRequired, "payment_failed"},
	{payment.ErrRefundFailed, http.StatusPaymentRequired, "refund_failed"},
}

// writeServiceError maps a service error onto the HTTP error taxonomy.
// Unrecognised errors are logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}

	logger.Error("unhandled service error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
}
