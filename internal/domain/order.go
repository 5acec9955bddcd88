package domain

import "time"

// OrderStatus enumerates order lifecycle states.
type OrderStatus string

const (
	OrderStatusQueued       OrderStatus = "queued"
	OrderStatusAnalyzing    OrderStatus = "analyzing"
	OrderStatusGenerating   OrderStatus = "generating"
	OrderStatusQualityCheck OrderStatus = "quality_check"
	OrderStatusCompleted    OrderStatus = "completed"
	OrderStatusFailed       OrderStatus = "failed"
	OrderStatusCancelled    OrderStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Pipeline step names, in execution order.
const (
	StepAnalyze      = "analyze"
	StepGenerate     = "generate"
	StepQualityCheck = "quality_check"
)

// Steps is the fixed step sequence every order walks through.
var Steps = []string{StepAnalyze, StepGenerate, StepQualityCheck}

var stepStatuses = map[string]OrderStatus{
	StepAnalyze:      OrderStatusAnalyzing,
	StepGenerate:     OrderStatusGenerating,
	StepQualityCheck: OrderStatusQualityCheck,
}

// StatusForStep returns the order status that corresponds to working on the
// step at the given index, or completed when the index is past the last step.
func StatusForStep(index int) OrderStatus {
	if index < 0 {
		return OrderStatusQueued
	}
	if index >= len(Steps) {
		return OrderStatusCompleted
	}
	return stepStatuses[Steps[index]]
}

// forward edges of the lifecycle graph; failed and cancelled are reachable
// from any non-terminal state and handled in CanTransition.
var forward = map[OrderStatus]OrderStatus{
	OrderStatusQueued:       OrderStatusAnalyzing,
	OrderStatusAnalyzing:    OrderStatusGenerating,
	OrderStatusGenerating:   OrderStatusQualityCheck,
	OrderStatusQualityCheck: OrderStatusCompleted,
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == OrderStatusFailed || to == OrderStatusCancelled {
		return true
	}
	return forward[from] == to
}

// Order encapsulates one content-generation request and its lifecycle.
type Order struct {
	ID               string
	UserID           string
	ServiceID        string
	Parameters       map[string]any
	Status           OrderStatus
	CurrentStepIndex int
	Result           []byte
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CurrentStep returns the step name for the order's current position, or ""
// when the order is past the last step.
func (o *Order) CurrentStep() string {
	if o.CurrentStepIndex < 0 || o.CurrentStepIndex >= len(Steps) {
		return ""
	}
	return Steps[o.CurrentStepIndex]
}

// IsFinished reports whether the order reached a terminal status.
func (o *Order) IsFinished() bool {
	return o.Status.IsTerminal()
}

// Advance moves the order to the next step after a successful handler call,
// storing the step's result. The status is kept consistent with the step
// index: past the last step the order is completed.
func (o *Order) Advance(result []byte) {
	o.CurrentStepIndex++
	o.Status = StatusForStep(o.CurrentStepIndex)
	if len(result) > 0 {
		o.Result = result
	}
	o.UpdatedAt = time.Now().UTC()
}

// MarkFailed puts the order into the terminal failed state with a
// human-readable reason.
func (o *Order) MarkFailed(reason string) {
	o.Status = OrderStatusFailed
	o.ErrorMessage = reason
	o.UpdatedAt = time.Now().UTC()
}
