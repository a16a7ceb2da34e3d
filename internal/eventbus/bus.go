// Package eventbus provides an in-process pub/sub bus for panel events.
// The recorder publishes events after they are stored; subscribers (the log
// consumer, the WebSocket hub) process them on a single consumer goroutine.
package eventbus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/matthewbaird/bridgepanel/internal/event"
)

// Handler processes a panel event.
type Handler interface {
	HandleEvent(ctx context.Context, evt event.Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt event.Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt event.Event) error {
	return f(ctx, evt)
}

// Bus is a simple in-process event bus. Events are published to a buffered
// channel and dispatched to all subscribers in a single consumer goroutine,
// so subscribers see events in publish order.
type Bus struct {
	mu          sync.RWMutex
	subscribers []namedHandler
	events      chan event.Event
	done        chan struct{}
	closed      bool
	log         *zap.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// New creates a new Bus with the given channel buffer size.
func New(bufSize int, log *zap.Logger) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		events: make(chan event.Event, bufSize),
		done:   make(chan struct{}),
		log:    log,
	}
}

// Subscribe registers a named handler. Must be called before Start.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Publish sends an event to the bus. Non-blocking: if the buffer is full
// the event is dropped and a warning is logged.
func (b *Bus) Publish(_ context.Context, evt event.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.events <- evt:
	default:
		b.log.Warn("buffer full, dropping event",
			zap.String("event_type", evt.EventType),
			zap.String("event_id", evt.ID))
	}
}

// Start begins the consumer goroutine. It processes events until the
// context is cancelled or Stop is called.
func (b *Bus) Start(ctx context.Context) {
	go func() {
		defer close(b.done)
		for {
			select {
			case evt, ok := <-b.events:
				if !ok {
					return
				}
				b.dispatch(ctx, evt)
			case <-ctx.Done():
				// Drain remaining events before exiting.
				for {
					select {
					case evt, ok := <-b.events:
						if !ok {
							return
						}
						b.dispatch(ctx, evt)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop closes the bus and waits for the consumer goroutine to finish.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
	b.mu.Unlock()
	<-b.done
}

func (b *Bus) dispatch(ctx context.Context, evt event.Event) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler.HandleEvent(ctx, evt); err != nil {
			b.log.Error("handler failed",
				zap.String("subscriber", s.name),
				zap.String("event_type", evt.EventType),
				zap.Error(err))
		}
	}
}
