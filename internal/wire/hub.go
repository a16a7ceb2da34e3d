package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/matthewbaird/bridgepanel/internal/event"
)

const clientBuffer = 16

type client struct {
	entityID string
	send     chan ServerMessage
}

// Hub fans panel events out to the browsers showing the affected device.
// It is an event bus subscriber.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		log:     log,
	}
}

func (h *Hub) register(entityID string) *client {
	c := &client{entityID: entityID, send: make(chan ServerMessage, clientBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[entityID] == nil {
		h.clients[entityID] = make(map[*client]struct{})
	}
	h.clients[entityID][c] = struct{}{}
	return c
}

// unregister drops c and closes its queue. It returns how many clients are
// still attached to the same device.
func (h *Hub) unregister(c *client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.entityID]
	if _, ok := set[c]; ok {
		delete(set, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.clients, c.entityID)
	}
	return len(set)
}

// Clients returns the number of browsers attached to a device.
func (h *Hub) Clients(entityID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[entityID])
}

// HandleEvent translates a panel event to a server message and queues it for
// every client of the event's device. Slow clients lose messages rather
// than block the bus.
func (h *Hub) HandleEvent(_ context.Context, evt event.Event) error {
	msg, ok, err := translate(evt)
	if err != nil || !ok {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[evt.EntityID] {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("client queue full, dropping message",
				zap.String("entity_id", evt.EntityID),
				zap.String("type", msg.Type))
		}
	}
	return nil
}

func translate(evt event.Event) (ServerMessage, bool, error) {
	switch evt.EventType {
	case event.TypeBusyChanged:
		var p event.BusyPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return ServerMessage{}, false, fmt.Errorf("decoding %s payload: %w", evt.EventType, err)
		}
		return ServerMessage{Type: TypeBusy, Data: BusyData{Busy: p.Busy}}, true, nil
	case event.TypeMessageShown:
		var p event.MessagePayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return ServerMessage{}, false, fmt.Errorf("decoding %s payload: %w", evt.EventType, err)
		}
		return ServerMessage{Type: TypeMessage, Data: MessageData{Text: p.Text}}, true, nil
	case event.TypePanelRendered:
		var p event.PanelPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return ServerMessage{}, false, fmt.Errorf("decoding %s payload: %w", evt.EventType, err)
		}
		return ServerMessage{Type: TypeRendered, Data: RenderedData{Panel: p.Panel}}, true, nil
	case event.TypePanelClosed:
		return ServerMessage{Type: TypeClosed}, true, nil
	}
	return ServerMessage{}, false, nil
}
