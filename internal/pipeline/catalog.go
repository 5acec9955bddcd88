// Package pipeline drives an order through its fixed step sequence. The
// engine owns all lifecycle writes; the actual work per step is delegated to
// a Handler registered per service in the catalog.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"server/internal/domain"
)

// Result is a successful handler outcome. The payload is persisted on the
// order as the last step's result.
type Result struct {
	Payload map[string]any
}

// Handler performs the actual work for one pipeline step. Implementations
// are opaque to the engine, possibly slow and possibly failing; they classify
// failures by wrapping domain.ErrPermanent — anything else (including a
// context deadline) is treated as transient and retried.
type Handler interface {
	Handle(ctx context.Context, order *domain.Order, step string, params map[string]any) (*Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, order *domain.Order, step string, params map[string]any) (*Result, error)

func (f HandlerFunc) Handle(ctx context.Context, order *domain.Order, step string, params map[string]any) (*Result, error) {
	return f(ctx, order, step, params)
}

// Service describes one orderable offering: which parameters it requires and
// which handler executes its steps.
type Service struct {
	ID             string
	RequiredFields []string
	Handler        Handler
}

// ValidateParameters checks the required-field set. Extra keys are allowed;
// parameters are opaque beyond presence.
func (s Service) ValidateParameters(params map[string]any) error {
	var missing []string
	for _, field := range s.RequiredFields {
		if v, ok := params[field]; !ok || v == nil || v == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing required fields %v", domain.ErrInvalidParameters, missing)
	}
	return nil
}

// Catalog maps service IDs to their definitions. It is populated at startup
// and read-only afterwards.
type Catalog struct {
	services map[string]Service
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{services: make(map[string]Service)}
}

// Register adds or replaces a service definition.
func (c *Catalog) Register(svc Service) {
	c.services[svc.ID] = svc
}

// Get looks up a service by ID.
func (c *Catalog) Get(id string) (Service, bool) {
	svc, ok := c.services[id]
	return svc, ok
}
