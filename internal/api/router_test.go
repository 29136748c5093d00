package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/billing"
	"github.com/hackgods/telehealth-scheduling/internal/ledger"
	"github.com/hackgods/telehealth-scheduling/internal/payment"
	"github.com/hackgods/telehealth-scheduling/internal/refund"
	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

// -- Stub Services --

type stubSchedules struct {
	get func(uuid.UUID) (schedule.Config, error)
	put func(schedule.Config) (schedule.Config, error)
}

func (s *stubSchedules) Get(_ context.Context, id uuid.UUID) (schedule.Config, error) {
	return s.get(id)
}

func (s *stubSchedules) Put(_ context.Context, cfg schedule.Config) (schedule.Config, error) {
	return s.put(cfg)
}

type stubAppointments struct {
	availability func(uuid.UUID, schedule.Date) (schedule.Availability, error)
	create       func(appointment.CreateParams) (*appointment.Appointment, error)
	get          func(uuid.UUID) (*appointment.Appointment, error)
	list         func(appointment.ListFilter) ([]appointment.Appointment, error)
	cancel       func(uuid.UUID, string, appointment.Initiator) (*appointment.Appointment, error)
	complete     func(uuid.UUID) (*appointment.Appointment, error)
}

func (s *stubAppointments) Availability(_ context.Context, id uuid.UUID, d schedule.Date) (schedule.Availability, error) {
	return s.availability(id, d)
}

func (s *stubAppointments) CreateAppointment(_ context.Context, p appointment.CreateParams) (*appointment.Appointment, error) {
	return s.create(p)
}

func (s *stubAppointments) GetAppointment(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return s.get(id)
}

func (s *stubAppointments) ListAppointments(_ context.Context, f appointment.ListFilter) ([]appointment.Appointment, error) {
	return s.list(f)
}

func (s *stubAppointments) CancelAppointment(_ context.Context, id uuid.UUID, reason string, by appointment.Initiator) (*appointment.Appointment, error) {
	return s.cancel(id, reason, by)
}

func (s *stubAppointments) MarkCompleted(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return s.complete(id)
}

type stubPayments struct {
	createIntent func(uuid.UUID, decimal.Decimal) (payment.Intent, error)
	confirm      func(string, uuid.UUID) (*appointment.Appointment, error)
}

func (s *stubPayments) CreateIntent(_ context.Context, id uuid.UUID, amount decimal.Decimal) (payment.Intent, error) {
	return s.createIntent(id, amount)
}

func (s *stubPayments) ConfirmPayment(_ context.Context, intentID string, id uuid.UUID) (*appointment.Appointment, error) {
	return s.confirm(intentID, id)
}

type stubRefunds struct {
	request func(uuid.UUID, string) (*refund.Request, error)
	resolve func(uuid.UUID, bool, string) (*refund.Request, error)
	get     func(uuid.UUID) (*refund.Request, error)
	list    func(uuid.UUID) ([]refund.Request, error)
}

func (s *stubRefunds) RequestRefund(_ context.Context, id uuid.UUID, reason string) (*refund.Request, error) {
	return s.request(id, reason)
}

func (s *stubRefunds) Resolve(_ context.Context, id uuid.UUID, approved bool, response string) (*refund.Request, error) {
	return s.resolve(id, approved, response)
}

func (s *stubRefunds) Get(_ context.Context, id uuid.UUID) (*refund.Request, error) {
	return s.get(id)
}

func (s *stubRefunds) ListByAppointment(_ context.Context, id uuid.UUID) ([]refund.Request, error) {
	return s.list(id)
}

type stubBilling struct {
	create   func(billing.CreateParams) (*billing.Invoice, error)
	get      func(uuid.UUID) (*billing.Invoice, error)
	list     func(uuid.UUID) ([]billing.Invoice, error)
	markPaid func(uuid.UUID) (*billing.Invoice, error)
}

func (s *stubBilling) Create(_ context.Context, p billing.CreateParams) (*billing.Invoice, error) {
	return s.create(p)
}

func (s *stubBilling) Get(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	return s.get(id)
}

func (s *stubBilling) ListByClient(_ context.Context, id uuid.UUID) ([]billing.Invoice, error) {
	return s.list(id)
}

func (s *stubBilling) MarkPaid(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	return s.markPaid(id)
}

type stubLedger struct {
	create   func(ledger.CreateParams) (*ledger.Item, error)
	list     func(ledger.Filter, ledger.Sort) ([]ledger.Item, error)
	setPaid  func(uuid.UUID, bool) (*ledger.Item, error)
	deleteFn func(uuid.UUID) error
}

func (s *stubLedger) Create(_ context.Context, p ledger.CreateParams) (*ledger.Item, error) {
	return s.create(p)
}

func (s *stubLedger) List(_ context.Context, f ledger.Filter, srt ledger.Sort) ([]ledger.Item, error) {
	return s.list(f, srt)
}

func (s *stubLedger) MarkPaid(_ context.Context, id uuid.UUID) (*ledger.Item, error) {
	return s.setPaid(id, true)
}

func (s *stubLedger) MarkUnpaid(_ context.Context, id uuid.UUID) (*ledger.Item, error) {
	return s.setPaid(id, false)
}

func (s *stubLedger) Delete(_ context.Context, id uuid.UUID) error {
	return s.deleteFn(id)
}

// -- Helpers --

type fixture struct {
	schedules    *stubSchedules
	appointments *stubAppointments
	payments     *stubPayments
	refunds      *stubRefunds
	billing      *stubBilling
	ledger       *stubLedger
}

func newFixture() *fixture {
	return &fixture{
		schedules:    &stubSchedules{},
		appointments: &stubAppointments{},
		payments:     &stubPayments{},
		refunds:      &stubRefunds{},
		billing:      &stubBilling{},
		ledger:       &stubLedger{},
	}
}

func (f *fixture) router(mutate ...func(*RouterConfig)) http.Handler {
	cfg := RouterConfig{
		Schedules:    f.schedules,
		Appointments: f.appointments,
		Payments:     f.payments,
		Refunds:      f.refunds,
		Billing:      f.billing,
		Ledger:       f.ledger,
		Health:       NewHealthHandler(okPing, nil, "test", "v0"),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewRouter(cfg)
}

func okPing(context.Context) error { return nil }

func downPing(context.Context) error { return errors.New("connection refused") }

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

// -- Tests --

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		postgres   PingFunc
		redis      PingFunc
		wantCode   int
		wantStatus string
		wantRedis  string
	}{
		{"all up", okPing, okPing, http.StatusOK, "ok", "ok"},
		{"redis disabled", okPing, nil, http.StatusOK, "ok", "disabled"},
		{"redis down", okPing, downPing, http.StatusOK, "degraded", "down"},
		{"postgres down", downPing, okPing, http.StatusServiceUnavailable, "error", "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFixture().router(func(cfg *RouterConfig) {
				cfg.Health = NewHealthHandler(tt.postgres, tt.redis, "test", "v0")
			})

			rec := do(t, h, http.MethodGet, "/health/ready", nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			var resp ReadinessResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("expected status %q, got %q", tt.wantStatus, resp.Status)
			}
			if resp.Dependencies["redis"] != tt.wantRedis {
				t.Errorf("expected redis %q, got %q", tt.wantRedis, resp.Dependencies["redis"])
			}
		})
	}

	rec := do(t, newFixture().router(), http.MethodGet, "/health/live", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("liveness: expected 200, got %d", rec.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h := newFixture().router()

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("expected request id to be echoed, got %q", got)
	}

	rec = do(t, h, http.MethodGet, "/health/live", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request id")
	}
}

func TestCreateAppointment(t *testing.T) {
	clientID, providerID := uuid.New(), uuid.New()

	f := newFixture()
	var got appointment.CreateParams
	f.appointments.create = func(p appointment.CreateParams) (*appointment.Appointment, error) {
		got = p
		return &appointment.Appointment{
			ID:            uuid.New(),
			ClientID:      p.ClientID,
			ProviderID:    p.ProviderID,
			Date:          p.Date,
			Time:          p.Time,
			Status:        appointment.StatusPending,
			PaymentStatus: appointment.PaymentPending,
			Amount:        p.Amount,
		}, nil
	}

	body := fmt.Sprintf(`{"clientId":%q,"providerId":%q,"date":"2024-01-15","time":"10:00","type":"video","amount":120}`, clientID, providerID)
	rec := do(t, f.router(), http.MethodPost, "/appointments", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.ClientID != clientID || got.ProviderID != providerID {
		t.Errorf("ids not passed through: %+v", got)
	}
	if got.Date.String() != "2024-01-15" || got.Time.String() != "10:00" {
		t.Errorf("unexpected slot %s %s", got.Date, got.Time)
	}
	if !got.Amount.Equal(decimal.NewFromInt(120)) {
		t.Errorf("expected amount 120, got %s", got.Amount)
	}

	var resp appointment.Appointment
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != appointment.StatusPending {
		t.Errorf("expected pending, got %s", resp.Status)
	}
}

func TestCreateAppointment_BadBody(t *testing.T) {
	f := newFixture()
	f.appointments.create = func(appointment.CreateParams) (*appointment.Appointment, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}

	for _, body := range []string{`{`, `{"date":"15/01/2024"}`, `{"time":"25:99"}`} {
		rec := do(t, f.router(), http.MethodPost, "/appointments", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, rec.Code)
		}
		if resp := decodeError(t, rec); resp.Error != "invalid_request_body" {
			t.Errorf("body %s: expected invalid_request_body, got %q", body, resp.Error)
		}
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantErr  string
	}{
		{fmt.Errorf("%w: clientId is required", appointment.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
		{appointment.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
		{fmt.Errorf("book: %w", appointment.ErrSlotUnavailable), http.StatusConflict, "slot_unavailable"},
		{appointment.ErrInvalidStatusTransition, http.StatusConflict, "invalid_status_transition"},
		{appointment.ErrNoProviderAssigned, http.StatusUnprocessableEntity, "no_provider_assigned"},
		{fmt.Errorf("%w: provider timeout", payment.ErrPaymentFailed), http.StatusPaymentRequired, "payment_failed"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.wantErr, func(t *testing.T) {
			f := newFixture()
			f.appointments.get = func(uuid.UUID) (*appointment.Appointment, error) { return nil, tt.err }

			rec := do(t, f.router(), http.MethodGet, "/appointments/"+uuid.NewString(), nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			resp := decodeError(t, rec)
			if resp.Error != tt.wantErr {
				t.Errorf("expected error %q, got %q", tt.wantErr, resp.Error)
			}
			if tt.wantCode == http.StatusInternalServerError && resp.Details == tt.err.Error() {
				t.Error("internal error details must not leak")
			}
		})
	}
}

func TestGetAppointment_InvalidID(t *testing.T) {
	rec := do(t, newFixture().router(), http.MethodGet, "/appointments/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error != "invalid_id" {
		t.Errorf("expected invalid_id, got %q", resp.Error)
	}
}

func TestListAppointments_Filters(t *testing.T) {
	clientID := uuid.New()

	f := newFixture()
	var got appointment.ListFilter
	f.appointments.list = func(filter appointment.ListFilter) ([]appointment.Appointment, error) {
		got = filter
		return nil, nil
	}

	rec := do(t, f.router(), http.MethodGet, "/appointments?clientId="+clientID.String()+"&limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.ClientID == nil || *got.ClientID != clientID {
		t.Errorf("expected client filter %s, got %v", clientID, got.ClientID)
	}
	if got.ProviderID != nil {
		t.Errorf("expected no provider filter, got %v", got.ProviderID)
	}
	if got.Limit != 5 {
		t.Errorf("expected limit 5, got %d", got.Limit)
	}
	if body := bytes.TrimSpace(rec.Body.Bytes()); string(body) != "[]" {
		t.Errorf("expected empty JSON array, got %s", body)
	}

	rec = do(t, f.router(), http.MethodGet, "/appointments?providerId=nope", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad providerId, got %d", rec.Code)
	}
}

func TestAvailability(t *testing.T) {
	providerID := uuid.New()

	f := newFixture()
	f.appointments.availability = func(id uuid.UUID, d schedule.Date) (schedule.Availability, error) {
		if id != providerID {
			t.Errorf("unexpected provider %s", id)
		}
		nine, _ := schedule.ParseTimeOfDay("09:00")
		return schedule.Availability{Date: d, Slots: []schedule.Slot{{Time: nine, DurationMinutes: 60}}}, nil
	}

	rec := do(t, f.router(), http.MethodGet, "/providers/"+providerID.String()+"/availability?date=2024-01-15", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Date  string `json:"date"`
		Slots []struct {
			Time string `json:"time"`
		} `json:"slots"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Date != "2024-01-15" || len(resp.Slots) != 1 || resp.Slots[0].Time != "09:00" {
		t.Errorf("unexpected availability %+v", resp)
	}

	rec = do(t, f.router(), http.MethodGet, "/providers/"+providerID.String()+"/availability", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without date, got %d", rec.Code)
	}
}

func TestPutSchedule(t *testing.T) {
	providerID := uuid.New()

	f := newFixture()
	f.schedules.put = func(cfg schedule.Config) (schedule.Config, error) {
		if cfg.ProviderID != providerID {
			t.Errorf("expected provider from path, got %s", cfg.ProviderID)
		}
		if cfg.SlotDurationMinutes != 30 {
			return schedule.Config{}, fmt.Errorf("%w: slot duration", schedule.ErrInvalidSchedule)
		}
		return cfg, nil
	}

	body := `{"daysOfWeek":{"monday":{"enabled":true,"start":"09:00","end":"17:00"}},"slotDurationMinutes":30}`
	rec := do(t, f.router(), http.MethodPut, "/providers/"+providerID.String()+"/schedule", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body = `{"daysOfWeek":{},"slotDurationMinutes":7}`
	rec = do(t, f.router(), http.MethodPut, "/providers/"+providerID.String()+"/schedule", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error != "invalid_schedule" {
		t.Errorf("expected invalid_schedule, got %q", resp.Error)
	}
}

func TestUpdateAppointmentStatus(t *testing.T) {
	id := uuid.New()

	f := newFixture()
	var gotInitiator appointment.Initiator
	var gotReason string
	f.appointments.cancel = func(_ uuid.UUID, reason string, by appointment.Initiator) (*appointment.Appointment, error) {
		gotReason, gotInitiator = reason, by
		return &appointment.Appointment{ID: id, Status: appointment.StatusCancelled}, nil
	}
	f.appointments.complete = func(uuid.UUID) (*appointment.Appointment, error) {
		return nil, appointment.ErrNotYetOccurred
	}

	path := "/appointments/" + id.String() + "/status"

	rec := do(t, f.router(), http.MethodPatch, path, UpdateAppointmentStatusRequest{Status: "cancelled", Reason: "schedule clash"})
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rec.Code)
	}
	if gotInitiator != appointment.InitiatorClient || gotReason != "schedule clash" {
		t.Errorf("expected client initiator with reason, got %q %q", gotInitiator, gotReason)
	}

	rec = do(t, f.router(), http.MethodPatch, path, UpdateAppointmentStatusRequest{Status: "cancelled", Initiator: "provider"})
	if rec.Code != http.StatusOK || gotInitiator != appointment.InitiatorProvider {
		t.Errorf("expected provider initiator, got %d %q", rec.Code, gotInitiator)
	}

	rec = do(t, f.router(), http.MethodPatch, path, UpdateAppointmentStatusRequest{Status: "completed"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("complete early: expected 422, got %d", rec.Code)
	}

	rec = do(t, f.router(), http.MethodPatch, path, UpdateAppointmentStatusRequest{Status: "confirmed"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("confirm via status: expected 400, got %d", rec.Code)
	}
}

func TestPayments(t *testing.T) {
	apptID := uuid.New()

	f := newFixture()
	f.payments.createIntent = func(id uuid.UUID, amount decimal.Decimal) (payment.Intent, error) {
		if !amount.Equal(decimal.RequireFromString("49.99")) {
			return payment.Intent{}, payment.ErrAmountMismatch
		}
		return payment.Intent{IntentID: "pi_sim_" + id.String(), Simulated: true}, nil
	}
	f.payments.confirm = func(intentID string, id uuid.UUID) (*appointment.Appointment, error) {
		if intentID == "pi_declined" {
			return nil, fmt.Errorf("%w: card_declined", payment.ErrPaymentFailed)
		}
		return &appointment.Appointment{ID: id, Status: appointment.StatusConfirmed, PaymentStatus: appointment.PaymentPaid}, nil
	}

	rec := do(t, f.router(), http.MethodPost, "/payments/intents", fmt.Sprintf(`{"appointmentId":%q,"amount":"49.99"}`, apptID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("intent: expected 201, got %d", rec.Code)
	}
	var intent payment.Intent
	if err := json.NewDecoder(rec.Body).Decode(&intent); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !intent.Simulated || intent.IntentID == "" {
		t.Errorf("unexpected intent %+v", intent)
	}

	rec = do(t, f.router(), http.MethodPost, "/payments/intents", fmt.Sprintf(`{"appointmentId":%q,"amount":10}`, apptID))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("mismatch: expected 400, got %d", rec.Code)
	}

	rec = do(t, f.router(), http.MethodPost, "/payments/confirm", ConfirmPaymentRequest{IntentID: intent.IntentID, AppointmentID: apptID})
	if rec.Code != http.StatusOK {
		t.Errorf("confirm: expected 200, got %d", rec.Code)
	}

	rec = do(t, f.router(), http.MethodPost, "/payments/confirm", ConfirmPaymentRequest{IntentID: "pi_declined", AppointmentID: apptID})
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("declined: expected 402, got %d", rec.Code)
	}
}

func TestRefunds(t *testing.T) {
	apptID, reqID := uuid.New(), uuid.New()

	f := newFixture()
	f.refunds.request = func(id uuid.UUID, reason string) (*refund.Request, error) {
		if len(reason) < refund.MinReasonLength {
			return nil, refund.ErrReasonTooShort
		}
		return &refund.Request{ID: reqID, AppointmentID: id, Reason: reason, Status: refund.StatusPending}, nil
	}
	var gotApproved *bool
	f.refunds.resolve = func(_ uuid.UUID, approved bool, _ string) (*refund.Request, error) {
		gotApproved = &approved
		if !approved {
			return nil, refund.ErrAlreadyResolved
		}
		return &refund.Request{ID: reqID, Status: refund.StatusApproved}, nil
	}
	f.refunds.list = func(uuid.UUID) ([]refund.Request, error) { return nil, nil }

	rec := do(t, f.router(), http.MethodPost, "/refunds", CreateRefundRequest{AppointmentID: apptID, Reason: "short"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("short reason: expected 400, got %d", rec.Code)
	}

	rec = do(t, f.router(), http.MethodPost, "/refunds", CreateRefundRequest{AppointmentID: apptID, Reason: "provider did not join the call"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("request: expected 201, got %d", rec.Code)
	}

	resolvePath := "/refunds/" + reqID.String() + "/resolve"

	rec = do(t, f.router(), http.MethodPost, resolvePath, `{"response":"ok"}`)
	if rec.Code != http.StatusBadRequest || gotApproved != nil {
		t.Errorf("missing approved: expected 400 without a service call, got %d", rec.Code)
	}

	rec = do(t, f.router(), http.MethodPost, resolvePath, `{"approved":true}`)
	if rec.Code != http.StatusOK {
		t.Errorf("approve: expected 200, got %d", rec.Code)
	}

	rec = do(t, f.router(), http.MethodPost, resolvePath, `{"approved":false}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("conflicting resolve: expected 409, got %d", rec.Code)
	}

	rec = do(t, f.router(), http.MethodGet, "/appointments/"+apptID.String()+"/refunds", nil)
	if rec.Code != http.StatusOK || string(bytes.TrimSpace(rec.Body.Bytes())) != "[]" {
		t.Errorf("list: expected 200 with [], got %d %s", rec.Code, rec.Body.String())
	}
}

func TestInvoices(t *testing.T) {
	clientID := uuid.New()

	f := newFixture()
	var got billing.CreateParams
	f.billing.create = func(p billing.CreateParams) (*billing.Invoice, error) {
		got = p
		return &billing.Invoice{ID: uuid.New(), ClientID: p.ClientID, Amount: p.Amount, Status: billing.StatusPending}, nil
	}
	f.billing.markPaid = func(uuid.UUID) (*billing.Invoice, error) { return nil, billing.ErrInvoiceNotFound }

	rec := do(t, f.router(), http.MethodGet, "/invoices", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("list without client: expected 400, got %d", rec.Code)
	}

	body := fmt.Sprintf(`{"clientId":%q,"amount":"75.00","description":"lab work","dueDate":"2024-02-01"}`, clientID)
	rec = do(t, f.router(), http.MethodPost, "/invoices", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}
	if got.DueDate.String() != "2024-02-01" || got.Description != "lab work" {
		t.Errorf("unexpected params %+v", got)
	}

	rec = do(t, f.router(), http.MethodPost, "/invoices/"+uuid.NewString()+"/pay", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("pay missing: expected 404, got %d", rec.Code)
	}
}

func TestPendingItems(t *testing.T) {
	f := newFixture()
	var gotFilter ledger.Filter
	var gotSort ledger.Sort
	f.ledger.list = func(filter ledger.Filter, srt ledger.Sort) ([]ledger.Item, error) {
		gotFilter, gotSort = filter, srt
		return []ledger.Item{{ID: uuid.New(), Type: ledger.TypeOrder, Status: ledger.StatusOpen}}, nil
	}
	var gotPaid *bool
	f.ledger.setPaid = func(id uuid.UUID, paid bool) (*ledger.Item, error) {
		gotPaid = &paid
		return &ledger.Item{ID: id}, nil
	}
	f.ledger.deleteFn = func(uuid.UUID) error { return nil }

	rec := do(t, f.router(), http.MethodGet, "/pending-items?status=open&type=order&sort=amount&order=desc", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	if gotFilter.Status == nil || *gotFilter.Status != ledger.StatusOpen || gotFilter.Type == nil || *gotFilter.Type != ledger.TypeOrder {
		t.Errorf("unexpected filter %+v", gotFilter)
	}
	if gotSort.Field != ledger.SortAmount || !gotSort.Desc {
		t.Errorf("unexpected sort %+v", gotSort)
	}

	rec = do(t, f.router(), http.MethodGet, "/pending-items?sort=name", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad sort: expected 400, got %d", rec.Code)
	}

	itemPath := "/pending-items/" + uuid.NewString()

	rec = do(t, f.router(), http.MethodPatch, itemPath, UpdatePendingItemRequest{Status: "unpaid"})
	if rec.Code != http.StatusOK || gotPaid == nil || *gotPaid {
		t.Errorf("mark unpaid: got %d paid=%v", rec.Code, gotPaid)
	}

	rec = do(t, f.router(), http.MethodPatch, itemPath, UpdatePendingItemRequest{Status: "open"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("reopen: expected 400, got %d", rec.Code)
	}

	rec = do(t, f.router(), http.MethodDelete, itemPath, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	f := newFixture()
	f.ledger.deleteFn = func(uuid.UUID) error { return nil }
	f.ledger.list = func(ledger.Filter, ledger.Sort) ([]ledger.Item, error) { return nil, nil }

	h := f.router(func(cfg *RouterConfig) {
		cfg.RateLimitRPS = 0.001
		cfg.RateLimitBurst = 1
	})

	path := "/pending-items/" + uuid.NewString()
	if rec := do(t, h, http.MethodDelete, path, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("first write: expected 204, got %d", rec.Code)
	}

	rec := do(t, h, http.MethodDelete, path, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second write: expected 429, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error != "rate_limited" {
		t.Errorf("expected rate_limited, got %q", resp.Error)
	}

	for i := 0; i < 3; i++ {
		if rec := do(t, h, http.MethodGet, "/pending-items", nil); rec.Code != http.StatusOK {
			t.Fatalf("reads must not be limited, got %d", rec.Code)
		}
	}
}
