package domain

import (
	"context"
	"time"
)

// OrderRepository defines persistence for orders.
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// Update persists the order's mutable fields only while the stored row is
	// still in the expected status. It reports false when the row moved on
	// (for example a concurrent cancel), leaving the row untouched.
	Update(ctx context.Context, order *Order, expected OrderStatus) (bool, error)
}

// QueueRepository defines persistence for queue items. ClaimNextDue is the
// sole concurrency-control primitive of the pipeline.
type QueueRepository interface {
	Enqueue(ctx context.Context, item *QueueItem) error
	GetByID(ctx context.Context, id string) (*QueueItem, error)
	// ClaimNextDue atomically moves one pending item with scheduled_at <= now
	// to processing and returns it with Attempts already incremented.
	// ErrNotFound means nothing is due; losing a claim race is not an error.
	ClaimNextDue(ctx context.Context, now time.Time) (*QueueItem, error)
	Update(ctx context.Context, item *QueueItem) error
	ListByOrderID(ctx context.Context, orderID string) ([]QueueItem, error)
}
