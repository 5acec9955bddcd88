package domain

import "time"

// QueueItemStatus enumerates queue item lifecycle states.
type QueueItemStatus string

const (
	QueueItemStatusPending    QueueItemStatus = "pending"
	QueueItemStatusProcessing QueueItemStatus = "processing"
	QueueItemStatusCompleted  QueueItemStatus = "completed"
	QueueItemStatusFailed     QueueItemStatus = "failed"
)

// IsTerminal reports whether the item can never be claimed again.
func (s QueueItemStatus) IsTerminal() bool {
	return s == QueueItemStatusCompleted || s == QueueItemStatusFailed
}

// DefaultMaxAttempts bounds retries for a single pipeline step.
const DefaultMaxAttempts = 3

// QueueItem is one schedulable attempt at executing a single pipeline step
// for an order. An order owns many items over its lifetime but at most one
// may be processing at any instant.
type QueueItem struct {
	ID             string
	OrderID        string
	ProcessingStep string
	Status         QueueItemStatus
	Attempts       int
	MaxAttempts    int
	ScheduledAt    time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MarkProcessing records a successful claim. Attempts counts claims, so it
// is incremented here and nowhere else.
func (q *QueueItem) MarkProcessing() {
	now := time.Now().UTC()
	q.Status = QueueItemStatusProcessing
	q.StartedAt = &now
	q.Attempts++
	q.UpdatedAt = now
}

// MarkCompleted finishes the item after a successful (or no-op) execution.
func (q *QueueItem) MarkCompleted() {
	now := time.Now().UTC()
	q.Status = QueueItemStatusCompleted
	q.CompletedAt = &now
	q.UpdatedAt = now
}

// MarkFailed finishes the item permanently with an error message.
func (q *QueueItem) MarkFailed(reason string) {
	now := time.Now().UTC()
	q.Status = QueueItemStatusFailed
	q.ErrorMessage = reason
	q.CompletedAt = &now
	q.UpdatedAt = now
}

// Reschedule returns the item to pending so it can be claimed again after
// the given delay. The last error is kept for operators.
func (q *QueueItem) Reschedule(at time.Time, reason string) {
	q.Status = QueueItemStatusPending
	q.ScheduledAt = at
	q.StartedAt = nil
	q.ErrorMessage = reason
	q.UpdatedAt = time.Now().UTC()
}

// CanRetry reports whether another claim is allowed.
func (q *QueueItem) CanRetry() bool {
	return q.Attempts < q.MaxAttempts
}
