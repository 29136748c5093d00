package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrItemNotFound = errors.New("pending item not found")

type Repository interface {
	CreateItem(ctx context.Context, item Item) (*Item, error)
	ListItems(ctx context.Context, filter Filter) ([]Item, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Item, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
}
