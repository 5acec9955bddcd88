package domain

import "time"

// StatusEvent is published on every order transition. Delivery is
// at-least-once and unordered; consumers de-duplicate on UpdatedAt.
type StatusEvent struct {
	OrderID   string      `json:"order_id"`
	UserID    string      `json:"user_id"`
	Status    OrderStatus `json:"status"`
	Step      string      `json:"step,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// EventForOrder builds the status event describing the order's current state.
func EventForOrder(o *Order) StatusEvent {
	return StatusEvent{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Status:    o.Status,
		Step:      o.CurrentStep(),
		UpdatedAt: o.UpdatedAt,
	}
}
