package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type mockRepo struct {
	items map[uuid.UUID]*Item
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Item)}
}

func (m *mockRepo) CreateItem(_ context.Context, item Item) (*Item, error) {
	item.ID = uuid.New()
	item.UpdatedAt = item.CreatedAt
	stored := item
	m.items[item.ID] = &stored
	return &item, nil
}

func (m *mockRepo) ListItems(_ context.Context, filter Filter) ([]Item, error) {
	var out []Item
	for _, it := range m.items {
		if filter.Status != nil && it.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && it.Type != *filter.Type {
			continue
		}
		out = append(out, *it)
	}
	return out, nil
}

func (m *mockRepo) SetStatus(_ context.Context, id uuid.UUID, status Status) (*Item, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	it.Status = status
	cp := *it
	return &cp, nil
}

func (m *mockRepo) DeleteItem(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return ErrItemNotFound
	}
	delete(m.items, id)
	return nil
}

var fixedNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, zap.NewNop(), func() time.Time { return fixedNow }), repo
}

func seed(t *testing.T, svc *Service, typ ItemType, amount string, age time.Duration) *Item {
	t.Helper()
	it, err := svc.Create(context.Background(), CreateParams{
		Type:      typ,
		Amount:    decimal.RequireFromString(amount),
		CreatedAt: fixedNow.Add(-age),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return it
}

func TestUrgencyAt(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		age    time.Duration
		status Status
		want   Urgency
	}{
		{0, StatusOpen, UrgencyLow},
		{6 * day, StatusOpen, UrgencyLow},
		{7 * day, StatusOpen, UrgencyMedium},
		{13 * day, StatusUnpaid, UrgencyMedium},
		{14 * day, StatusOpen, UrgencyHigh},
		{30 * day, StatusPaid, UrgencyLow},
	}

	for _, tc := range tests {
		it := Item{Status: tc.status, CreatedAt: fixedNow.Add(-tc.age)}
		if got := it.UrgencyAt(fixedNow); got != tc.want {
			t.Errorf("age %s status %s: got %s, want %s", tc.age, tc.status, got, tc.want)
		}
	}
}

func TestCreate(t *testing.T) {
	svc, _ := newTestService()

	it := seed(t, svc, TypeOrder, "12.00", 8*24*time.Hour)
	if it.Status != StatusOpen {
		t.Errorf("expected open, got %s", it.Status)
	}
	if it.Urgency != UrgencyMedium {
		t.Errorf("expected medium urgency, got %s", it.Urgency)
	}

	if _, err := svc.Create(context.Background(), CreateParams{Type: "subscription", Amount: decimal.NewFromInt(1)}); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem for unknown type, got %v", err)
	}
	if _, err := svc.Create(context.Background(), CreateParams{Type: TypeOrder, Amount: decimal.NewFromInt(-1)}); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem for negative amount, got %v", err)
	}
}

func TestList_FilterAndSort(t *testing.T) {
	svc, _ := newTestService()
	a := seed(t, svc, TypeVideoSession, "100", 3*time.Hour)
	b := seed(t, svc, TypeOrder, "20", 2*time.Hour)
	c := seed(t, svc, TypeVideoSession, "60", 1*time.Hour)

	if _, err := svc.MarkPaid(context.Background(), a.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	ids := func(items []Item) []uuid.UUID {
		out := make([]uuid.UUID, len(items))
		for i, it := range items {
			out[i] = it.ID
		}
		return out
	}
	equal := func(got, want []uuid.UUID) bool {
		if len(got) != len(want) {
			return false
		}
		for i := range got {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}

	tests := []struct {
		name   string
		filter Filter
		field  string
		order  string
		want   []uuid.UUID
	}{
		{"default newest first", Filter{}, "", "", []uuid.UUID{c.ID, b.ID, a.ID}},
		{"amount ascending", Filter{}, "amount", "asc", []uuid.UUID{b.ID, c.ID, a.ID}},
		{"amount descending", Filter{}, "amount", "desc", []uuid.UUID{a.ID, c.ID, b.ID}},
		{"created ascending", Filter{}, "createdAt", "", []uuid.UUID{a.ID, b.ID, c.ID}},
		{"video sessions only", Filter{Type: ptr(TypeVideoSession)}, "amount", "asc", []uuid.UUID{c.ID, a.ID}},
		{"paid only", Filter{Status: ptr(StatusPaid)}, "", "", []uuid.UUID{a.ID}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srt, err := ParseSort(tc.field, tc.order)
			if err != nil {
				t.Fatalf("parse sort: %v", err)
			}
			items, err := svc.List(context.Background(), tc.filter, srt)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if got := ids(items); !equal(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}

	srt, _ := ParseSort("status", "asc")
	items, _ := svc.List(context.Background(), Filter{}, srt)
	if items[len(items)-1].ID != a.ID {
		t.Error("expected paid item last when sorting by status")
	}
}

func TestParseSort_Invalid(t *testing.T) {
	if _, err := ParseSort("priority", ""); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem for unknown field, got %v", err)
	}
	if _, err := ParseSort("amount", "sideways"); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem for unknown order, got %v", err)
	}
}

func TestMarkUnpaidAndDelete(t *testing.T) {
	svc, repo := newTestService()
	it := seed(t, svc, TypeOrder, "5", 0)

	got, err := svc.MarkUnpaid(context.Background(), it.ID)
	if err != nil {
		t.Fatalf("mark unpaid: %v", err)
	}
	if got.Status != StatusUnpaid {
		t.Errorf("expected unpaid, got %s", got.Status)
	}

	if err := svc.Delete(context.Background(), it.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.items) != 0 {
		t.Error("expected item to be removed")
	}
	if err := svc.Delete(context.Background(), it.ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
	if _, err := svc.MarkPaid(context.Background(), it.ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func ptr[T any](v T) *T { return &v }
