package broadcast

import (
	"context"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// Sink receives every published status event. Implementations deliver to
// external channels (chat, push); errors are logged by the broadcaster and
// never affect pipeline correctness.
type Sink interface {
	Deliver(ctx context.Context, ev domain.StatusEvent) error
}

// LogSink writes each transition to the service log. It doubles as the
// reference Sink implementation.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink logging at info level.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(_ context.Context, ev domain.StatusEvent) error {
	s.logger.Info().
		Str("order_id", ev.OrderID).
		Str("user_id", ev.UserID).
		Str("status", string(ev.Status)).
		Str("step", ev.Step).
		Time("updated_at", ev.UpdatedAt).
		Msg("order status changed")
	return nil
}
