package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
	"server/internal/sqlinline"
)

// OrderRepositoryPG implements domain.OrderRepository on PostgreSQL.
type OrderRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewOrderRepository creates a new order repository backed by PostgreSQL.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepositoryPG {
	return &OrderRepositoryPG{pool: pool}
}

// Create inserts a new order record.
func (r *OrderRepositoryPG) Create(ctx context.Context, order *domain.Order) error {
	params, err := json.Marshal(order.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	_, err = r.pool.Exec(ctx, sqlinline.QInsertOrder,
		order.ID,
		order.UserID,
		order.ServiceID,
		params,
		order.Status,
		order.CurrentStepIndex,
	)
	if err != nil {
		return storageErr("insert order", err)
	}
	return nil
}

// GetByID fetches an order by its identifier.
func (r *OrderRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, sqlinline.QGetOrderByID, id)

	var (
		order  domain.Order
		params []byte
	)
	if err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.ServiceID,
		&params,
		&order.Status,
		&order.CurrentStepIndex,
		&order.Result,
		&order.ErrorMessage,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("get order", err)
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &order.Parameters); err != nil {
			return nil, fmt.Errorf("decode parameters: %w", err)
		}
	}
	return &order, nil
}

// Update persists the order's mutable fields while the stored row is still in
// the expected status. Reports false on a lost race.
func (r *OrderRepositoryPG) Update(ctx context.Context, order *domain.Order, expected domain.OrderStatus) (bool, error) {
	row := r.pool.QueryRow(ctx, sqlinline.QUpdateOrderIfStatus,
		order.ID,
		expected,
		order.Status,
		order.CurrentStepIndex,
		nullableBytes(order.Result),
		order.ErrorMessage,
	)
	if err := row.Scan(&order.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, storageErr("update order", err)
	}
	return true, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}
