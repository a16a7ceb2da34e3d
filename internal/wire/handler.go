package wire

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Panels is the part of the UI shell the socket drives.
type Panels interface {
	Busy(entityID string) bool
	ClosePanel(ctx context.Context, entityID string)
}

// Handler manages WebSocket connections of open panels.
type Handler struct {
	hub    *Hub
	panels Panels
	log    *zap.Logger
}

func NewHandler(hub *Hub, panels Panels, log *zap.Logger) *Handler {
	return &Handler{hub: hub, panels: panels, log: log}
}

// ServeEntity upgrades to WebSocket and streams the device's panel events
// until the browser disconnects. The panel is closed when its last browser
// leaves or sends "close".
func (h *Handler) ServeEntity(w http.ResponseWriter, r *http.Request, entityID string) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn("websocket accept failed", zap.String("entity_id", entityID), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	c := h.hub.register(entityID)
	closed := false
	writerDone := make(chan struct{})
	defer func() {
		remaining := h.hub.unregister(c)
		<-writerDone
		if closed || remaining == 0 {
			h.panels.ClosePanel(context.WithoutCancel(ctx), entityID)
		}
	}()

	h.queue(c, ServerMessage{
		Type: TypeSession,
		Data: SessionData{
			SessionID: uuid.New().String(),
			EntityID:  entityID,
			Busy:      h.panels.Busy(entityID),
		},
	})

	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, conn, c)
	}()

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.log.Debug("websocket closed",
					zap.String("entity_id", entityID),
					zap.Int("status", int(websocket.CloseStatus(err))))
			}
			return
		}

		switch msg.Type {
		case "ping":
			h.queue(c, ServerMessage{Type: TypePong, RequestID: msg.ID})
		case "close":
			closed = true
			conn.Close(websocket.StatusNormalClosure, "panel closed")
			return
		default:
			h.queue(c, ServerMessage{
				Type:      TypeError,
				RequestID: msg.ID,
				Data: ErrorData{
					Code:    "unknown_type",
					Message: fmt.Sprintf("unknown message type: %s", msg.Type),
				},
			})
		}
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	for msg := range c.send {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := wsjson.Write(wctx, conn, msg)
		cancel()
		if err != nil {
			h.log.Debug("websocket write failed", zap.String("entity_id", c.entityID), zap.Error(err))
			return
		}
	}
}

// queue hands a reply to the writer. Replies share the event queue so a
// single goroutine writes to the connection.
func (h *Handler) queue(c *client, msg ServerMessage) {
	h.hub.mu.RLock()
	defer h.hub.mu.RUnlock()
	select {
	case c.send <- msg:
	default:
		h.log.Warn("client queue full, dropping reply", zap.String("entity_id", c.entityID))
	}
}
