package host

import (
	"context"
	"html/template"
	"sync"

	"go.uber.org/zap"

	"github.com/matthewbaird/bridgepanel/internal/event"
)

type contentKey struct {
	entityID, panel string
}

// Console implements Shell. It keeps the last content of each device panel
// and the busy state per device, and records every change as a panel event, which the event bus
// fans out to connected browsers.
type Console struct {
	mu      sync.Mutex
	content map[contentKey]template.HTML
	busy    map[string]bool
	hooks   map[string]map[string]func(context.Context)

	rec event.Recorder
	log *zap.Logger
}

// NewConsole creates a console that records through rec.
func NewConsole(rec event.Recorder, log *zap.Logger) *Console {
	return &Console{
		content: make(map[contentKey]template.HTML),
		busy:    make(map[string]bool),
		hooks:   make(map[string]map[string]func(context.Context)),
		rec:     rec,
		log:     log,
	}
}

func (c *Console) SetPanelContent(ctx context.Context, entityID, panel string, markup template.HTML) {
	c.mu.Lock()
	c.content[contentKey{entityID, panel}] = markup
	c.mu.Unlock()
	c.record(ctx, event.NewPanelRendered(entityID, panel, len(markup)))
}

// Content returns the last content set for a device panel, or "" when
// nothing was rendered since the panel was last closed.
func (c *Console) Content(entityID, panel string) template.HTML {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content[contentKey{entityID, panel}]
}

func (c *Console) ShowBusy(ctx context.Context, entityID string) {
	c.setBusy(ctx, entityID, true)
}

func (c *Console) HideBusy(ctx context.Context, entityID string) {
	c.setBusy(ctx, entityID, false)
}

func (c *Console) setBusy(ctx context.Context, entityID string, busy bool) {
	c.mu.Lock()
	c.busy[entityID] = busy
	c.mu.Unlock()
	c.record(ctx, event.NewBusyChanged(entityID, busy))
}

// Busy reports whether the device's panel shows the busy indicator.
func (c *Console) Busy(entityID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy[entityID]
}

func (c *Console) ShowMessage(ctx context.Context, entityID, text string) error {
	return c.rec.Record(ctx, event.NewMessageShown(entityID, text))
}

func (c *Console) OnPanelClose(entityID, name string, fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hooks[entityID] == nil {
		c.hooks[entityID] = make(map[string]func(context.Context))
	}
	c.hooks[entityID][name] = fn
}

// ClosePanel runs and forgets the device's close hooks. It does not cancel
// work already scheduled by a save.
func (c *Console) ClosePanel(ctx context.Context, entityID string) {
	c.mu.Lock()
	hooks := c.hooks[entityID]
	delete(c.hooks, entityID)
	for k := range c.content {
		if k.entityID == entityID {
			delete(c.content, k)
		}
	}
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(ctx)
	}
	c.record(ctx, event.NewPanelClosed(entityID))
}

func (c *Console) record(ctx context.Context, evt event.Event) {
	if err := c.rec.Record(ctx, evt); err != nil {
		c.log.Warn("recording shell event failed",
			zap.String("event_type", evt.EventType),
			zap.String("entity_id", evt.EntityID),
			zap.Error(err))
	}
}
