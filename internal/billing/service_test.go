package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/schedule"
)

type mockRepo struct {
	invoices map[uuid.UUID]*Invoice
}

func newMockRepo() *mockRepo {
	return &mockRepo{invoices: make(map[uuid.UUID]*Invoice)}
}

func (m *mockRepo) CreateInvoice(_ context.Context, inv Invoice) (*Invoice, error) {
	if inv.AppointmentID != nil {
		for _, existing := range m.invoices {
			if existing.AppointmentID != nil && *existing.AppointmentID == *inv.AppointmentID {
				cp := *existing
				return &cp, nil
			}
		}
	}
	inv.ID = uuid.New()
	stored := inv
	m.invoices[inv.ID] = &stored
	return &inv, nil
}

func (m *mockRepo) GetInvoice(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *mockRepo) ListByClient(_ context.Context, clientID uuid.UUID) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if inv.ClientID == clientID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (m *mockRepo) MarkPaid(_ context.Context, id uuid.UUID, paidAt time.Time) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok || inv.Status != StatusPending {
		return nil, ErrInvoiceNotFound
	}
	inv.Status = StatusPaid
	inv.PaidAt = &paidAt
	cp := *inv
	return &cp, nil
}

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestService(repo Repository, now *time.Time) *Service {
	return NewService(repo, 14, zap.NewNop(), WithClock(func() time.Time { return *now }))
}

func TestEffectiveStatus(t *testing.T) {
	today := schedule.Date{Year: 2024, Month: time.March, Day: 10}

	tests := []struct {
		name   string
		status Status
		due    schedule.Date
		want   Status
	}{
		{"pending not yet due", StatusPending, today.AddDays(1), StatusPending},
		{"pending due today", StatusPending, today, StatusPending},
		{"pending past due", StatusPending, today.AddDays(-1), StatusOverdue},
		{"paid past due", StatusPaid, today.AddDays(-30), StatusPaid},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inv := Invoice{Status: tc.status, DueDate: tc.due}
			if got := inv.EffectiveStatus(today); got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRecordPaid_Idempotent(t *testing.T) {
	repo := newMockRepo()
	now := fixedNow
	svc := newTestService(repo, &now)

	appt := &appointment.Appointment{
		ID:       uuid.New(),
		ClientID: uuid.New(),
		Amount:   decimal.NewFromInt(120),
		Type:     "video_session",
		Date:     schedule.Date{Year: 2024, Month: time.March, Day: 4},
		Time:     10 * 60,
	}

	for i := 0; i < 2; i++ {
		if err := svc.RecordPaid(context.Background(), appt); err != nil {
			t.Fatalf("record #%d: %v", i+1, err)
		}
	}

	invoices, _ := svc.ListByClient(context.Background(), appt.ClientID)
	if len(invoices) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(invoices))
	}
	if invoices[0].Status != StatusPaid || !invoices[0].Amount.Equal(appt.Amount) {
		t.Errorf("unexpected invoice %+v", invoices[0])
	}
}

func TestCreate_OverdueAfterDueDate(t *testing.T) {
	repo := newMockRepo()
	now := fixedNow
	svc := newTestService(repo, &now)

	inv, err := svc.Create(context.Background(), CreateParams{
		ClientID:    uuid.New(),
		Amount:      decimal.RequireFromString("45.00"),
		Description: "Lab order",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.Status != StatusPending {
		t.Errorf("expected pending, got %s", inv.Status)
	}
	if want := schedule.DateOf(fixedNow).AddDays(14); inv.DueDate != want {
		t.Errorf("expected due date %s, got %s", want, inv.DueDate)
	}

	now = fixedNow.AddDate(0, 0, 15)
	got, err := svc.Get(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusOverdue {
		t.Errorf("expected overdue, got %s", got.Status)
	}

	paid, err := svc.MarkPaid(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != StatusPaid {
		t.Errorf("expected paid, got %s", paid.Status)
	}

	again, err := svc.MarkPaid(context.Background(), inv.ID)
	if err != nil || again.Status != StatusPaid {
		t.Errorf("repeat mark paid should be a no-op, got %v, %v", again, err)
	}
}

func TestCreate_Validation(t *testing.T) {
	now := fixedNow
	svc := newTestService(newMockRepo(), &now)

	tests := []CreateParams{
		{Amount: decimal.NewFromInt(1), Description: "x"},
		{ClientID: uuid.New(), Amount: decimal.Zero, Description: "x"},
		{ClientID: uuid.New(), Amount: decimal.NewFromInt(1), Description: " "},
		{ClientID: uuid.New(), Amount: decimal.NewFromInt(1), Description: "x", DueDate: schedule.DateOf(fixedNow).AddDays(-1)},
	}

	for i, p := range tests {
		if _, err := svc.Create(context.Background(), p); !errors.Is(err, ErrInvalidInvoice) {
			t.Errorf("case %d: expected ErrInvalidInvoice, got %v", i, err)
		}
	}
}

func TestMarkPaid_NotFound(t *testing.T) {
	now := fixedNow
	svc := newTestService(newMockRepo(), &now)

	if _, err := svc.MarkPaid(context.Background(), uuid.New()); !errors.Is(err, ErrInvoiceNotFound) {
		t.Errorf("expected ErrInvoiceNotFound, got %v", err)
	}
}
