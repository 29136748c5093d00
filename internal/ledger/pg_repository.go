package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const itemColumns = `id, client_id, type, status, amount, description, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.ClientID, &it.Type, &it.Status, &it.Amount, &it.Description, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &it, nil
}

func (r *PgRepository) CreateItem(ctx context.Context, item Item) (*Item, error) {
	created, err := scanItem(r.pool.QueryRow(ctx, `
		INSERT INTO pending_items (id, client_id, type, status, amount, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING `+itemColumns,
		uuid.New(), item.ClientID, item.Type, item.Status, item.Amount, item.Description, item.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert pending item: %w", err)
	}
	return created, nil
}

func (r *PgRepository) ListItems(ctx context.Context, filter Filter) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM pending_items
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR type = $2)
		ORDER BY created_at DESC
	`, filter.Status, filter.Type)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *it)
	}
	return result, rows.Err()
}

func (r *PgRepository) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Item, error) {
	return scanItem(r.pool.QueryRow(ctx, `
		UPDATE pending_items
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		id, status))
}

func (r *PgRepository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pending_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pending item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}
