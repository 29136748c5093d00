package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/billing"
)

func listInvoicesHandler(svc BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID, ok := uuidQuery(w, r, "clientId")
		if !ok {
			return
		}
		if clientID == nil {
			writeError(w, http.StatusBadRequest, "invalid_clientId", "clientId query parameter is required")
			return
		}

		invoices, err := svc.ListByClient(r.Context(), *clientID)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		if invoices == nil {
			invoices = []billing.Invoice{}
		}
		writeJSON(w, http.StatusOK, invoices)
	}
}

func getInvoiceHandler(svc BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		inv, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

func createInvoiceHandler(svc BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateInvoiceRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		params := billing.CreateParams{
			ClientID:    req.ClientID,
			Amount:      req.Amount,
			Description: req.Description,
		}
		if req.DueDate != nil {
			params.DueDate = *req.DueDate
		}

		inv, err := svc.Create(r.Context(), params)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, inv)
	}
}

func payInvoiceHandler(svc BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		inv, err := svc.MarkPaid(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}
