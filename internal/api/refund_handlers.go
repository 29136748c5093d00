package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/refund"
)

func createRefundHandler(svc RefundService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRefundRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		reqRecord, err := svc.RequestRefund(r.Context(), req.AppointmentID, req.Reason)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, reqRecord)
	}
}

func getRefundHandler(svc RefundService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		reqRecord, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, reqRecord)
	}
}

// resolveRefundHandler lets the provider approve or reject a pending request.
func resolveRefundHandler(svc RefundService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req ResolveRefundRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Approved == nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "approved is required")
			return
		}

		reqRecord, err := svc.Resolve(r.Context(), id, *req.Approved, req.Response)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, reqRecord)
	}
}

func listRefundsHandler(svc RefundService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		requests, err := svc.ListByAppointment(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		if requests == nil {
			requests = []refund.Request{}
		}
		writeJSON(w, http.StatusOK, requests)
	}
}
