package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
)

// EventPublisher receives a status event on every order transition.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.StatusEvent)
}

// Config bounds step execution and retry scheduling.
type Config struct {
	StepTimeout    time.Duration
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	MaxAttempts    int
}

func (c Config) withDefaults() Config {
	if c.StepTimeout <= 0 {
		c.StepTimeout = 2 * time.Minute
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 5 * time.Second
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 5 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = domain.DefaultMaxAttempts
	}
	return c
}

// Engine sequences orders through their steps. All order and queue item
// writes happen here; the scheduler only claims items and hands them over.
type Engine struct {
	orders  domain.OrderRepository
	queue   domain.QueueRepository
	catalog *Catalog
	events  EventPublisher
	cfg     Config
	logger  zerolog.Logger
}

// New creates an engine. All collaborators are injected; nothing is global.
func New(orders domain.OrderRepository, queue domain.QueueRepository, catalog *Catalog, events EventPublisher, cfg Config, logger zerolog.Logger) *Engine {
	return &Engine{
		orders:  orders,
		queue:   queue,
		catalog: catalog,
		events:  events,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// CreateOrder validates the parameters against the service's required-field
// set, persists the order in queued and enqueues its first step.
func (e *Engine) CreateOrder(ctx context.Context, userID, serviceID string, params map[string]any) (*domain.Order, error) {
	svc, ok := e.catalog.Get(serviceID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown service %q", domain.ErrInvalidParameters, serviceID)
	}
	if err := svc.ValidateParameters(params); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:         uuid.NewString(),
		UserID:     userID,
		ServiceID:  serviceID,
		Parameters: params,
		Status:     domain.OrderStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	if err := e.enqueueStep(ctx, order, 0); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("order_id", order.ID).
		Str("service_id", serviceID).
		Msg("pipeline: order created")
	e.events.Publish(ctx, domain.EventForOrder(order))
	return order, nil
}

// GetOrder returns a snapshot of the order.
func (e *Engine) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return e.orders.GetByID(ctx, orderID)
}

// Transition moves the order along the lifecycle graph. A disallowed move
// returns domain.ErrInvalidTransition and leaves the order untouched.
func (e *Engine) Transition(ctx context.Context, orderID string, to domain.OrderStatus) (*domain.Order, error) {
	order, err := e.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(order.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, to)
	}

	expected := order.Status
	order.Status = to
	ok, err := e.orders.Update(ctx, order, expected)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The row moved between read and write; to the caller this is the
		// same disallowed transition, just detected later.
		return nil, fmt.Errorf("%w: order %s changed concurrently", domain.ErrInvalidTransition, orderID)
	}

	e.events.Publish(ctx, domain.EventForOrder(order))
	return order, nil
}

// CancelOrder requests cancellation. Advisory: a step already running
// finishes, but nothing further is claimed or enqueued for the order.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := e.Transition(ctx, orderID, domain.OrderStatusCancelled)
	if err != nil {
		return nil, err
	}
	e.logger.Info().Str("order_id", orderID).Msg("pipeline: order cancelled")
	return order, nil
}

// ExecuteStep runs the step a claimed queue item represents and applies the
// outcome. Called by the scheduler with an item already in processing.
func (e *Engine) ExecuteStep(ctx context.Context, item *domain.QueueItem) error {
	order, err := e.orders.GetByID(ctx, item.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			item.MarkFailed("owning order missing")
			return e.queue.Update(ctx, item)
		}
		return err
	}

	// Cancellation (or any terminal state) observed before starting: the
	// item completes as a no-op.
	if order.IsFinished() {
		item.MarkCompleted()
		e.logger.Debug().
			Str("order_id", order.ID).
			Str("step", item.ProcessingStep).
			Msg("pipeline: skipping step for finished order")
		return e.queue.Update(ctx, item)
	}

	// First claim of the first step moves the order out of queued.
	if order.Status == domain.OrderStatusQueued {
		started, err := e.Transition(ctx, order.ID, domain.StatusForStep(order.CurrentStepIndex))
		if err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				// Lost to a concurrent cancel.
				item.MarkCompleted()
				return e.queue.Update(ctx, item)
			}
			return err
		}
		order = started
	}

	svc, ok := e.catalog.Get(order.ServiceID)
	if !ok {
		return e.failOrder(ctx, order, item, fmt.Sprintf("service %q not registered", order.ServiceID))
	}

	stepCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	result, handleErr := svc.Handler.Handle(stepCtx, order, item.ProcessingStep, order.Parameters)
	cancel()

	if handleErr != nil {
		return e.handleFailure(ctx, order, item, handleErr)
	}
	return e.handleSuccess(ctx, order, item, result)
}

func (e *Engine) handleSuccess(ctx context.Context, order *domain.Order, item *domain.QueueItem, result *Result) error {
	var payload []byte
	if result != nil && result.Payload != nil {
		var err error
		if payload, err = json.Marshal(result.Payload); err != nil {
			return e.failOrder(ctx, order, item, fmt.Sprintf("encode step result: %v", err))
		}
	}

	item.MarkCompleted()
	if err := e.queue.Update(ctx, item); err != nil {
		return err
	}

	expected := order.Status
	order.Advance(payload)
	ok, err := e.orders.Update(ctx, order, expected)
	if err != nil {
		return err
	}
	if !ok {
		// A concurrent cancel won; honor it and enqueue nothing further.
		e.logger.Info().
			Str("order_id", order.ID).
			Str("step", item.ProcessingStep).
			Msg("pipeline: step finished after cancellation, dropping advance")
		return nil
	}

	e.logger.Info().
		Str("order_id", order.ID).
		Str("step", item.ProcessingStep).
		Int("attempt", item.Attempts).
		Msg("pipeline: step succeeded")

	if !order.IsFinished() {
		if err := e.enqueueStep(ctx, order, 0); err != nil {
			return err
		}
	}
	e.events.Publish(ctx, domain.EventForOrder(order))
	return nil
}

func (e *Engine) handleFailure(ctx context.Context, order *domain.Order, item *domain.QueueItem, handleErr error) error {
	if !errors.Is(handleErr, domain.ErrPermanent) && item.CanRetry() {
		// Cancellation is re-checked before committing a retry so a cancel
		// takes effect within one step boundary.
		fresh, err := e.orders.GetByID(ctx, order.ID)
		if err == nil && fresh.IsFinished() {
			item.MarkCompleted()
			return e.queue.Update(ctx, item)
		}

		delay := e.backoffDelay(item.Attempts)
		item.Reschedule(time.Now().UTC().Add(delay), handleErr.Error())
		if err := e.queue.Update(ctx, item); err != nil {
			return err
		}
		e.logger.Warn().
			Str("order_id", order.ID).
			Str("step", item.ProcessingStep).
			Int("attempt", item.Attempts).
			Dur("retry_in", delay).
			Err(handleErr).
			Msg("pipeline: transient step failure, rescheduled")
		return nil
	}

	return e.failOrder(ctx, order, item, handleErr.Error())
}

func (e *Engine) failOrder(ctx context.Context, order *domain.Order, item *domain.QueueItem, reason string) error {
	item.MarkFailed(reason)
	if err := e.queue.Update(ctx, item); err != nil {
		return err
	}

	expected := order.Status
	order.MarkFailed(reason)
	ok, err := e.orders.Update(ctx, order, expected)
	if err != nil {
		return err
	}
	if !ok {
		// Already cancelled; cancelled wins over failed.
		return nil
	}

	e.logger.Error().
		Str("order_id", order.ID).
		Str("step", item.ProcessingStep).
		Int("attempt", item.Attempts).
		Str("reason", reason).
		Msg("pipeline: order failed")
	e.events.Publish(ctx, domain.EventForOrder(order))
	return nil
}

// enqueueStep creates the pending queue item for the order's current step.
// The previous item is always terminal by the time this runs, which is what
// keeps at most one live item per order.
func (e *Engine) enqueueStep(ctx context.Context, order *domain.Order, delay time.Duration) error {
	step := order.CurrentStep()
	if step == "" {
		return fmt.Errorf("order %s has no step at index %d", order.ID, order.CurrentStepIndex)
	}
	item := &domain.QueueItem{
		ID:             uuid.NewString(),
		OrderID:        order.ID,
		ProcessingStep: step,
		Status:         domain.QueueItemStatusPending,
		MaxAttempts:    e.cfg.MaxAttempts,
		ScheduledAt:    time.Now().UTC().Add(delay),
	}
	return e.queue.Enqueue(ctx, item)
}

// backoffDelay computes base * 2^attempts, capped.
func (e *Engine) backoffDelay(attempts int) time.Duration {
	delay := e.cfg.RetryBaseDelay
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= e.cfg.RetryMaxDelay {
			return e.cfg.RetryMaxDelay
		}
	}
	return delay
}
