package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"server/internal/domain"
)

// OrderRepositoryMem is an in-memory domain.OrderRepository. It backs tests
// and local development without Postgres; the conditional-update semantics
// mirror the SQL implementation exactly.
type OrderRepositoryMem struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

// NewOrderRepositoryMem creates an empty in-memory order repository.
func NewOrderRepositoryMem() *OrderRepositoryMem {
	return &OrderRepositoryMem{orders: make(map[string]domain.Order)}
}

func (r *OrderRepositoryMem) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = *order
	return nil
}

func (r *OrderRepositoryMem) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &order, nil
}

func (r *OrderRepositoryMem) Update(_ context.Context, order *domain.Order, expected domain.OrderStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.ID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if stored.Status != expected {
		return false, nil
	}
	order.UpdatedAt = time.Now().UTC()
	r.orders[order.ID] = *order
	return true, nil
}

// QueueRepositoryMem is an in-memory domain.QueueRepository with the same
// claim semantics as the Postgres one: a single mutex plays the role of the
// row lock, so exactly one caller wins a contended claim.
type QueueRepositoryMem struct {
	mu    sync.Mutex
	items map[string]domain.QueueItem
}

// NewQueueRepositoryMem creates an empty in-memory queue repository.
func NewQueueRepositoryMem() *QueueRepositoryMem {
	return &QueueRepositoryMem{items: make(map[string]domain.QueueItem)}
}

func (r *QueueRepositoryMem) Enqueue(_ context.Context, item *domain.QueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	r.items[item.ID] = *item
	return nil
}

func (r *QueueRepositoryMem) GetByID(_ context.Context, id string) (*domain.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (r *QueueRepositoryMem) ClaimNextDue(_ context.Context, now time.Time) (*domain.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []domain.QueueItem
	for _, item := range r.items {
		if item.Status == domain.QueueItemStatusPending && !item.ScheduledAt.After(now) {
			due = append(due, item)
		}
	}
	if len(due) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(due[j].ScheduledAt) })

	claimed := due[0]
	claimed.MarkProcessing()
	r.items[claimed.ID] = claimed
	return &claimed, nil
}

func (r *QueueRepositoryMem) Update(_ context.Context, item *domain.QueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		return domain.ErrNotFound
	}
	item.UpdatedAt = time.Now().UTC()
	r.items[item.ID] = *item
	return nil
}

func (r *QueueRepositoryMem) ListByOrderID(_ context.Context, orderID string) ([]domain.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []domain.QueueItem
	for _, item := range r.items {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}
