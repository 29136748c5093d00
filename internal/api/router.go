package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/billing"
	"github.com/hackgods/telehealth-scheduling/internal/ledger"
	"github.com/hackgods/telehealth-scheduling/internal/payment"
	"github.com/hackgods/telehealth-scheduling/internal/refund"
	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

type ScheduleService interface {
	Get(ctx context.Context, providerID uuid.UUID) (schedule.Config, error)
	Put(ctx context.Context, cfg schedule.Config) (schedule.Config, error)
}

type AppointmentService interface {
	Availability(ctx context.Context, providerID uuid.UUID, date schedule.Date) (schedule.Availability, error)
	CreateAppointment(ctx context.Context, p appointment.CreateParams) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, filter appointment.ListFilter) ([]appointment.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, reason string, initiator appointment.Initiator) (*appointment.Appointment, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

type PaymentService interface {
	CreateIntent(ctx context.Context, appointmentID uuid.UUID, amount decimal.Decimal) (payment.Intent, error)
	ConfirmPayment(ctx context.Context, intentID string, appointmentID uuid.UUID) (*appointment.Appointment, error)
}

type RefundService interface {
	RequestRefund(ctx context.Context, appointmentID uuid.UUID, reason string) (*refund.Request, error)
	Resolve(ctx context.Context, requestID uuid.UUID, approved bool, response string) (*refund.Request, error)
	Get(ctx context.Context, id uuid.UUID) (*refund.Request, error)
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]refund.Request, error)
}

type BillingService interface {
	Create(ctx context.Context, p billing.CreateParams) (*billing.Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (*billing.Invoice, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]billing.Invoice, error)
	MarkPaid(ctx context.Context, id uuid.UUID) (*billing.Invoice, error)
}

type LedgerService interface {
	Create(ctx context.Context, p ledger.CreateParams) (*ledger.Item, error)
	List(ctx context.Context, filter ledger.Filter, srt ledger.Sort) ([]ledger.Item, error)
	MarkPaid(ctx context.Context, id uuid.UUID) (*ledger.Item, error)
	MarkUnpaid(ctx context.Context, id uuid.UUID) (*ledger.Item, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type RouterConfig struct {
	Schedules    ScheduleService
	Appointments AppointmentService
	Payments     PaymentService
	Refunds      RefundService
	Billing      BillingService
	Ledger       LedgerService
	Health       *HealthHandler
	Logger       *zap.Logger

	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	if cfg.RateLimitRPS > 0 {
		r.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
	}

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	// Provider schedules and availability
	r.Route("/providers/{providerId}", func(r chi.Router) {
		r.Get("/schedule", getScheduleHandler(cfg.Schedules, logger))
		r.Put("/schedule", putScheduleHandler(cfg.Schedules, logger))
		r.Get("/availability", availabilityHandler(cfg.Appointments, logger))
	})

	// Appointment endpoints
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Appointments, logger))
		r.Get("/", listAppointmentsHandler(cfg.Appointments, logger))
		r.Get("/{id}", getAppointmentHandler(cfg.Appointments, logger))
		r.Patch("/{id}/status", updateAppointmentStatusHandler(cfg.Appointments, logger))
		r.Get("/{id}/refunds", listRefundsHandler(cfg.Refunds, logger))
	})

	// Payments
	r.Post("/payments/intents", createPaymentIntentHandler(cfg.Payments, logger))
	r.Post("/payments/confirm", confirmPaymentHandler(cfg.Payments, logger))

	// Refund requests
	r.Route("/refunds", func(r chi.Router) {
		r.Post("/", createRefundHandler(cfg.Refunds, logger))
		r.Get("/{id}", getRefundHandler(cfg.Refunds, logger))
		r.Post("/{id}/resolve", resolveRefundHandler(cfg.Refunds, logger))
	})

	// Invoices
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", listInvoicesHandler(cfg.Billing, logger))
		r.Post("/", createInvoiceHandler(cfg.Billing, logger))
		r.Get("/{id}", getInvoiceHandler(cfg.Billing, logger))
		r.Post("/{id}/pay", payInvoiceHandler(cfg.Billing, logger))
	})

	// Pending items
	r.Route("/pending-items", func(r chi.Router) {
		r.Get("/", listPendingItemsHandler(cfg.Ledger, logger))
		r.Post("/", createPendingItemHandler(cfg.Ledger, logger))
		r.Patch("/{id}", updatePendingItemHandler(cfg.Ledger, logger))
		r.Delete("/{id}", deletePendingItemHandler(cfg.Ledger, logger))
	})

	return r
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func uuidQuery(w http.ResponseWriter, r *http.Request, name string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return nil, false
	}
	return &id, true
}
