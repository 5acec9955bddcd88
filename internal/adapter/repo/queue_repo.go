package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
	"server/internal/sqlinline"
)

// QueueRepositoryPG implements domain.QueueRepository on PostgreSQL. Claims
// rely on FOR UPDATE SKIP LOCKED so concurrent workers never block on or
// double-claim the same item.
type QueueRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewQueueRepository creates a new queue repository backed by PostgreSQL.
func NewQueueRepository(pool *pgxpool.Pool) *QueueRepositoryPG {
	return &QueueRepositoryPG{pool: pool}
}

// Enqueue inserts a new queue item record.
func (r *QueueRepositoryPG) Enqueue(ctx context.Context, item *domain.QueueItem) error {
	_, err := r.pool.Exec(ctx, sqlinline.QInsertQueueItem,
		item.ID,
		item.OrderID,
		item.ProcessingStep,
		item.Status,
		item.Attempts,
		item.MaxAttempts,
		item.ScheduledAt,
	)
	if err != nil {
		return storageErr("enqueue item", err)
	}
	return nil
}

// GetByID fetches a queue item by its identifier.
func (r *QueueRepositoryPG) GetByID(ctx context.Context, id string) (*domain.QueueItem, error) {
	row := r.pool.QueryRow(ctx, sqlinline.QGetQueueItemByID, id)
	item, err := scanQueueItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("get item", err)
	}
	return item, nil
}

// ClaimNextDue atomically claims one due pending item. ErrNotFound means
// nothing is due right now.
func (r *QueueRepositoryPG) ClaimNextDue(ctx context.Context, now time.Time) (*domain.QueueItem, error) {
	row := r.pool.QueryRow(ctx, sqlinline.QClaimNextQueueItem, now)
	item, err := scanQueueItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("claim item", err)
	}
	return item, nil
}

// Update writes the item's full mutable state.
func (r *QueueRepositoryPG) Update(ctx context.Context, item *domain.QueueItem) error {
	_, err := r.pool.Exec(ctx, sqlinline.QUpdateQueueItem,
		item.ID,
		item.Status,
		item.Attempts,
		item.ScheduledAt,
		item.StartedAt,
		item.CompletedAt,
		item.ErrorMessage,
	)
	if err != nil {
		return storageErr("update item", err)
	}
	return nil
}

// ListByOrderID returns all queue items an order has produced, oldest first.
func (r *QueueRepositoryPG) ListByOrderID(ctx context.Context, orderID string) ([]domain.QueueItem, error) {
	rows, err := r.pool.Query(ctx, sqlinline.QListQueueItemsByOrder, orderID)
	if err != nil {
		return nil, storageErr("list items", err)
	}
	defer rows.Close()

	var items []domain.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, storageErr("scan item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list items", err)
	}
	return items, nil
}

func scanQueueItem(row pgx.Row) (*domain.QueueItem, error) {
	var item domain.QueueItem
	if err := row.Scan(
		&item.ID,
		&item.OrderID,
		&item.ProcessingStep,
		&item.Status,
		&item.Attempts,
		&item.MaxAttempts,
		&item.ScheduledAt,
		&item.StartedAt,
		&item.CompletedAt,
		&item.ErrorMessage,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}
