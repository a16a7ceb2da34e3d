package eventbus

import (
	"context"

	"go.uber.org/zap"

	"github.com/matthewbaird/bridgepanel/internal/event"
)

// LogConsumer logs all panel events for observability.
type LogConsumer struct {
	log *zap.Logger
}

func NewLogConsumer(log *zap.Logger) *LogConsumer { return &LogConsumer{log: log} }

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.Event) error {
	c.log.Info(evt.Summary,
		zap.String("event_type", evt.EventType),
		zap.String("entity_id", evt.EntityID),
		zap.String("event_id", evt.ID))
	return nil
}
