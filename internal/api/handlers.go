package api

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

func getScheduleHandler(svc ScheduleService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "providerId")
		if !ok {
			return
		}

		cfg, err := svc.Get(r.Context(), providerID)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func putScheduleHandler(svc ScheduleService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "providerId")
		if !ok {
			return
		}

		var req PutScheduleRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		cfg, err := svc.Put(r.Context(), schedule.Config{
			ProviderID:          providerID,
			DaysOfWeek:          req.DaysOfWeek,
			SlotDurationMinutes: req.SlotDurationMinutes,
		})
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func availabilityHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "providerId")
		if !ok {
			return
		}

		date, err := schedule.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date query parameter must be YYYY-MM-DD")
			return
		}

		avail, err := svc.Availability(r.Context(), providerID, date)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, avail)
	}
}

func createAppointmentHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), appointment.CreateParams{
			ClientID:   req.ClientID,
			ProviderID: req.ProviderID,
			Date:       req.Date,
			Time:       req.Time,
			Type:       req.Type,
			Amount:     req.Amount,
		})
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, appt)
	}
}

func getAppointmentHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func listAppointmentsHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID, ok := uuidQuery(w, r, "clientId")
		if !ok {
			return
		}
		providerID, ok := uuidQuery(w, r, "providerId")
		if !ok {
			return
		}
		limit, ok := intQuery(w, r, "limit")
		if !ok {
			return
		}
		offset, ok := intQuery(w, r, "offset")
		if !ok {
			return
		}

		appts, err := svc.ListAppointments(r.Context(), appointment.ListFilter{
			ClientID:   clientID,
			ProviderID: providerID,
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		if appts == nil {
			appts = []appointment.Appointment{}
		}
		writeJSON(w, http.StatusOK, appts)
	}
}

func updateAppointmentStatusHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req UpdateAppointmentStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		var (
			appt *appointment.Appointment
			err  error
		)
		switch appointment.AppointmentStatus(req.Status) {
		case appointment.StatusCancelled:
			initiator := appointment.InitiatorClient
			if req.Initiator != "" {
				initiator = appointment.Initiator(req.Initiator)
			}
			appt, err = svc.CancelAppointment(r.Context(), id, req.Reason, initiator)
		case appointment.StatusCompleted:
			appt, err = svc.MarkCompleted(r.Context(), id)
		default:
			writeError(w, http.StatusBadRequest, "invalid_status", fmt.Sprintf("status must be %q or %q", appointment.StatusCancelled, appointment.StatusCompleted))
			return
		}
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func intQuery(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
