package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
)

func TestClaimRaceSingleWinner(t *testing.T) {
	ctx := context.Background()
	queue := NewQueueRepositoryMem()

	item := &domain.QueueItem{
		ID:             uuid.NewString(),
		OrderID:        uuid.NewString(),
		ProcessingStep: domain.StepAnalyze,
		Status:         domain.QueueItemStatusPending,
		MaxAttempts:    domain.DefaultMaxAttempts,
		ScheduledAt:    time.Now().UTC().Add(-time.Second),
	}
	if err := queue.Enqueue(ctx, item); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := queue.ClaimNextDue(ctx, time.Now().UTC())
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					t.Errorf("unexpected claim error: %v", err)
				}
				return
			}
			mu.Lock()
			wins++
			mu.Unlock()
			if claimed.Status != domain.QueueItemStatusProcessing {
				t.Errorf("claimed item status = %s", claimed.Status)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("claim winners = %d, want exactly 1", wins)
	}
	stored, err := queue.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (losers must not touch the item)", stored.Attempts)
	}
}

func TestClaimSkipsFutureItems(t *testing.T) {
	ctx := context.Background()
	queue := NewQueueRepositoryMem()

	future := &domain.QueueItem{
		ID:             uuid.NewString(),
		OrderID:        uuid.NewString(),
		ProcessingStep: domain.StepAnalyze,
		Status:         domain.QueueItemStatusPending,
		MaxAttempts:    domain.DefaultMaxAttempts,
		ScheduledAt:    time.Now().UTC().Add(time.Hour),
	}
	if err := queue.Enqueue(ctx, future); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := queue.ClaimNextDue(ctx, time.Now().UTC()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for future item, got %v", err)
	}
}

func TestClaimPrefersOldestDue(t *testing.T) {
	ctx := context.Background()
	queue := NewQueueRepositoryMem()
	now := time.Now().UTC()

	newer := &domain.QueueItem{
		ID:          uuid.NewString(),
		OrderID:     uuid.NewString(),
		Status:      domain.QueueItemStatusPending,
		MaxAttempts: domain.DefaultMaxAttempts,
		ScheduledAt: now.Add(-time.Minute),
	}
	older := &domain.QueueItem{
		ID:          uuid.NewString(),
		OrderID:     uuid.NewString(),
		Status:      domain.QueueItemStatusPending,
		MaxAttempts: domain.DefaultMaxAttempts,
		ScheduledAt: now.Add(-time.Hour),
	}
	for _, item := range []*domain.QueueItem{newer, older} {
		if err := queue.Enqueue(ctx, item); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	claimed, err := queue.ClaimNextDue(ctx, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.ID != older.ID {
		t.Fatalf("claimed %s, want oldest item %s", claimed.ID, older.ID)
	}
}

func TestOrderUpdateIsConditional(t *testing.T) {
	ctx := context.Background()
	orders := NewOrderRepositoryMem()

	order := &domain.Order{
		ID:     uuid.NewString(),
		UserID: "u1",
		Status: domain.OrderStatusAnalyzing,
	}
	if err := orders.Create(ctx, order); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Simulate a concurrent cancel landing first.
	cancelled := *order
	cancelled.Status = domain.OrderStatusCancelled
	if ok, err := orders.Update(ctx, &cancelled, domain.OrderStatusAnalyzing); err != nil || !ok {
		t.Fatalf("cancel update: ok=%v err=%v", ok, err)
	}

	stale := *order
	stale.Advance([]byte(`{"x":1}`))
	ok, err := orders.Update(ctx, &stale, domain.OrderStatusAnalyzing)
	if err != nil {
		t.Fatalf("stale update: %v", err)
	}
	if ok {
		t.Fatal("stale update succeeded against a cancelled order")
	}

	stored, err := orders.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.OrderStatusCancelled {
		t.Fatalf("status = %s, want cancelled", stored.Status)
	}
}
