package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

type stubOrderReader struct {
	order *domain.Order
}

func (s *stubOrderReader) GetByID(_ context.Context, id string) (*domain.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, domain.ErrNotFound
	}
	return s.order, nil
}

// collector records events safely across the broadcaster's fan-out goroutines.
type collector struct {
	mu     sync.Mutex
	events []domain.StatusEvent
	seen   chan struct{}
}

func newCollector(capacity int) *collector {
	return &collector{seen: make(chan struct{}, capacity)}
}

func (c *collector) fn(ev domain.StatusEvent) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.seen <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []domain.StatusEvent {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.StatusEvent(nil), c.events...)
}

func testEvent(orderID, userID string, status domain.OrderStatus) domain.StatusEvent {
	return domain.StatusEvent{
		OrderID:   orderID,
		UserID:    userID,
		Status:    status,
		UpdatedAt: time.Now().UTC(),
	}
}

func TestPublishReachesOrderAndUserSubscribers(t *testing.T) {
	b := New(&stubOrderReader{}, zerolog.Nop())

	byOrder := newCollector(4)
	byUser := newCollector(4)
	defer b.SubscribeOrder("o1", byOrder.fn)()
	defer b.SubscribeUser("u1", byUser.fn)()

	b.Publish(context.Background(), testEvent("o1", "u1", domain.OrderStatusAnalyzing))

	if got := byOrder.wait(t, 1); got[0].OrderID != "o1" {
		t.Fatalf("order subscriber got %+v", got[0])
	}
	if got := byUser.wait(t, 1); got[0].UserID != "u1" {
		t.Fatalf("user subscriber got %+v", got[0])
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(&stubOrderReader{}, zerolog.Nop())

	c := newCollector(4)
	unsubscribe := b.SubscribeOrder("o1", c.fn)
	b.Publish(context.Background(), testEvent("o1", "u1", domain.OrderStatusAnalyzing))
	c.wait(t, 1)

	unsubscribe()
	b.Publish(context.Background(), testEvent("o1", "u1", domain.OrderStatusGenerating))

	select {
	case <-c.seen:
		t.Fatal("received event after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublishSkipsUnrelatedTopics(t *testing.T) {
	b := New(&stubOrderReader{}, zerolog.Nop())

	c := newCollector(4)
	defer b.SubscribeOrder("other", c.fn)()

	b.Publish(context.Background(), testEvent("o1", "u1", domain.OrderStatusAnalyzing))

	select {
	case <-c.seen:
		t.Fatal("received event for unrelated order")
	case <-time.After(100 * time.Millisecond):
	}
}

type failingSink struct {
	calls chan struct{}
}

func (s *failingSink) Deliver(context.Context, domain.StatusEvent) error {
	s.calls <- struct{}{}
	return errors.New("push gateway down")
}

func TestSinkFailureDoesNotAffectSubscribers(t *testing.T) {
	b := New(&stubOrderReader{}, zerolog.Nop())

	sink := &failingSink{calls: make(chan struct{}, 4)}
	b.AddSink(sink)
	c := newCollector(4)
	defer b.SubscribeOrder("o1", c.fn)()

	b.Publish(context.Background(), testEvent("o1", "u1", domain.OrderStatusCompleted))

	c.wait(t, 1)
	select {
	case <-sink.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("sink was never invoked")
	}
}

func TestCurrentStateReconcilesMissedEvents(t *testing.T) {
	// A subscriber that missed every push must observe the same terminal
	// status through the read path as one that received them all.
	final := &domain.Order{
		ID:               "o1",
		UserID:           "u1",
		Status:           domain.OrderStatusCompleted,
		CurrentStepIndex: len(domain.Steps),
		UpdatedAt:        time.Now().UTC(),
	}
	b := New(&stubOrderReader{order: final}, zerolog.Nop())

	c := newCollector(8)
	defer b.SubscribeOrder("o1", c.fn)()
	base := time.Now().UTC()
	for i, status := range []domain.OrderStatus{
		domain.OrderStatusAnalyzing,
		domain.OrderStatusGenerating,
		domain.OrderStatusQualityCheck,
		domain.OrderStatusCompleted,
	} {
		ev := testEvent("o1", "u1", status)
		ev.UpdatedAt = base.Add(time.Duration(i) * time.Millisecond)
		b.Publish(context.Background(), ev)
	}
	events := c.wait(t, 4)

	// Pushed events are unordered; the latest by UpdatedAt wins.
	latest := events[0]
	for _, ev := range events[1:] {
		if ev.UpdatedAt.After(latest.UpdatedAt) {
			latest = ev
		}
	}

	snapshot, err := b.CurrentState(context.Background(), "o1")
	if err != nil {
		t.Fatalf("CurrentState: %v", err)
	}
	if snapshot.Status != latest.Status {
		t.Fatalf("snapshot status %s != pushed terminal status %s", snapshot.Status, latest.Status)
	}
}
