package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrInvalidItem = errors.New("invalid pending item")

// statusRank orders items by how much attention they need.
var statusRank = map[Status]int{
	StatusOpen:   0,
	StatusUnpaid: 1,
	StatusPaid:   2,
}

type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *zap.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, logger: logger.Named("ledger"), now: now}
}

type CreateParams struct {
	ClientID    *uuid.UUID
	Type        ItemType
	Amount      decimal.Decimal
	Description string
	CreatedAt   time.Time
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*Item, error) {
	if !p.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidItem, p.Type)
	}
	if p.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidItem)
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	item, err := s.repo.CreateItem(ctx, Item{
		ClientID:    p.ClientID,
		Type:        p.Type,
		Status:      StatusOpen,
		Amount:      p.Amount,
		Description: strings.TrimSpace(p.Description),
		CreatedAt:   createdAt,
	})
	if err != nil {
		return nil, err
	}
	return s.withUrgency(item), nil
}

// ParseSort reads a field name and an "asc"/"desc" order. Empty input sorts
// newest first.
func ParseSort(field, order string) (Sort, error) {
	srt := Sort{Field: SortCreatedAt, Desc: true}

	switch SortField(field) {
	case "":
	case SortCreatedAt, SortStatus, SortAmount:
		srt.Field = SortField(field)
		srt.Desc = false
	default:
		return Sort{}, fmt.Errorf("%w: unknown sort field %q", ErrInvalidItem, field)
	}

	switch strings.ToLower(order) {
	case "":
	case "asc":
		srt.Desc = false
	case "desc":
		srt.Desc = true
	default:
		return Sort{}, fmt.Errorf("%w: unknown sort order %q", ErrInvalidItem, order)
	}
	return srt, nil
}

func (s *Service) List(ctx context.Context, filter Filter, srt Sort) ([]Item, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidItem, *filter.Status)
	}
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidItem, *filter.Type)
	}

	items, err := s.repo.ListItems(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list pending items: %w", err)
	}

	slices.SortStableFunc(items, func(a, b Item) int {
		c := compareItems(a, b, srt.Field)
		if srt.Desc {
			return -c
		}
		return c
	})

	now := s.now()
	for i := range items {
		items[i].Urgency = items[i].UrgencyAt(now)
	}
	return items, nil
}

func compareItems(a, b Item, field SortField) int {
	switch field {
	case SortStatus:
		return statusRank[a.Status] - statusRank[b.Status]
	case SortAmount:
		return a.Amount.Cmp(b.Amount)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.setStatus(ctx, id, StatusPaid)
}

func (s *Service) MarkUnpaid(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.setStatus(ctx, id, StatusUnpaid)
}

func (s *Service) setStatus(ctx context.Context, id uuid.UUID, status Status) (*Item, error) {
	item, err := s.repo.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.logger.Info("pending item status set",
		zap.String("item_id", id.String()),
		zap.String("status", string(status)),
	)
	return s.withUrgency(item), nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.logger.Info("pending item deleted", zap.String("item_id", id.String()))
	return nil
}

func (s *Service) withUrgency(item *Item) *Item {
	item.Urgency = item.UrgencyAt(s.now())
	return item
}
