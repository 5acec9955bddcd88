// Package broadcast fans order status transitions out to in-process
// subscribers and external notification sinks. Delivery is at-least-once and
// unordered; subscribers de-duplicate on the event's UpdatedAt and reconcile
// missed events through CurrentState.
package broadcast

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// OrderReader is the snapshot read path used for reconciliation.
type OrderReader interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}

// Broadcaster publishes status events to subscribers keyed by order and by
// user, plus any registered sinks. Sink and subscriber failures never reach
// the pipeline.
type Broadcaster struct {
	mu        sync.RWMutex
	nextID    int
	orderSubs map[string]map[int]func(domain.StatusEvent)
	userSubs  map[string]map[int]func(domain.StatusEvent)
	sinks     []Sink

	orders OrderReader
	logger zerolog.Logger
}

// New creates a broadcaster reconciling against the given order reader.
func New(orders OrderReader, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		orderSubs: make(map[string]map[int]func(domain.StatusEvent)),
		userSubs:  make(map[string]map[int]func(domain.StatusEvent)),
		orders:    orders,
		logger:    logger,
	}
}

// AddSink registers a notification sink. Sinks receive every event.
func (b *Broadcaster) AddSink(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, sink)
}

// SubscribeOrder registers fn for one order's transitions and returns an
// unsubscribe func. The caller should fetch a snapshot via CurrentState after
// subscribing to cover events missed before registration.
func (b *Broadcaster) SubscribeOrder(orderID string, fn func(domain.StatusEvent)) func() {
	return b.subscribe(b.orderSubs, orderID, fn)
}

// SubscribeUser registers fn for all transitions of a user's orders.
func (b *Broadcaster) SubscribeUser(userID string, fn func(domain.StatusEvent)) func() {
	return b.subscribe(b.userSubs, userID, fn)
}

func (b *Broadcaster) subscribe(topic map[string]map[int]func(domain.StatusEvent), key string, fn func(domain.StatusEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if topic[key] == nil {
		topic[key] = make(map[int]func(domain.StatusEvent))
	}
	topic[key][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(topic[key], id)
		if len(topic[key]) == 0 {
			delete(topic, key)
		}
	}
}

// Publish fans the event out asynchronously. It never blocks the caller and
// never returns an error; a slow or failing consumer only affects itself.
func (b *Broadcaster) Publish(ctx context.Context, ev domain.StatusEvent) {
	b.mu.RLock()
	var fns []func(domain.StatusEvent)
	for _, fn := range b.orderSubs[ev.OrderID] {
		fns = append(fns, fn)
	}
	for _, fn := range b.userSubs[ev.UserID] {
		fns = append(fns, fn)
	}
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.RUnlock()

	for _, fn := range fns {
		go fn(ev)
	}
	for _, sink := range sinks {
		go func(s Sink) {
			if err := s.Deliver(ctx, ev); err != nil {
				b.logger.Warn().Err(err).
					Str("order_id", ev.OrderID).
					Str("status", string(ev.Status)).
					Msg("broadcast: sink delivery failed")
			}
		}(sink)
	}
}

// CurrentState returns the order's authoritative snapshot so a subscriber can
// reconcile after missing pushes.
func (b *Broadcaster) CurrentState(ctx context.Context, orderID string) (*domain.Order, error) {
	return b.orders.GetByID(ctx, orderID)
}
