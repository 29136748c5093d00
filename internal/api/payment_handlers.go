package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

func createPaymentIntentHandler(svc PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePaymentIntentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		intent, err := svc.CreateIntent(r.Context(), req.AppointmentID, req.Amount)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, intent)
	}
}

func confirmPaymentHandler(svc PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ConfirmPaymentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.ConfirmPayment(r.Context(), strings.TrimSpace(req.IntentID), req.AppointmentID)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}
