package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/ledger"
)

func listPendingItemsHandler(svc LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var filter ledger.Filter
		if raw := q.Get("status"); raw != "" {
			status := ledger.Status(raw)
			filter.Status = &status
		}
		if raw := q.Get("type"); raw != "" {
			itemType := ledger.ItemType(raw)
			filter.Type = &itemType
		}

		srt, err := ledger.ParseSort(q.Get("sort"), q.Get("order"))
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}

		items, err := svc.List(r.Context(), filter, srt)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		if items == nil {
			items = []ledger.Item{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func createPendingItemHandler(svc LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePendingItemRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		params := ledger.CreateParams{
			ClientID:    req.ClientID,
			Type:        ledger.ItemType(req.Type),
			Amount:      req.Amount,
			Description: req.Description,
		}
		if req.CreatedAt != nil {
			params.CreatedAt = *req.CreatedAt
		}

		item, err := svc.Create(r.Context(), params)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	}
}

func updatePendingItemHandler(svc LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req UpdatePendingItemRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		var (
			item *ledger.Item
			err  error
		)
		switch ledger.Status(req.Status) {
		case ledger.StatusPaid:
			item, err = svc.MarkPaid(r.Context(), id)
		case ledger.StatusUnpaid:
			item, err = svc.MarkUnpaid(r.Context(), id)
		default:
			writeError(w, http.StatusBadRequest, "invalid_status", `status must be "paid" or "unpaid"`)
			return
		}
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func deletePendingItemHandler(svc LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
