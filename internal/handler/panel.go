package handler

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"go.uber.org/zap"

	"github.com/matthewbaird/bridgepanel/internal/host"
	"github.com/matthewbaird/bridgepanel/internal/panel"
	"github.com/matthewbaird/bridgepanel/internal/schema"
	"github.com/matthewbaird/bridgepanel/internal/wire"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static serves the panel stylesheet and script.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

type pageData struct {
	Title      string
	EntityID   string
	Panel      string
	Content    template.HTML
	Error      string
	SocketPath string
	ClosePath  string
}

// PanelHandler serves the settings pages, their save endpoints and the
// panel socket.
type PanelHandler struct {
	ctrl    *panel.Controller
	console *host.Console
	socket  *wire.Handler
	page    *template.Template
	log     *zap.Logger
}

func NewPanelHandler(ctrl *panel.Controller, console *host.Console, socket *wire.Handler, log *zap.Logger) (*PanelHandler, error) {
	page, err := template.ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}
	return &PanelHandler{ctrl: ctrl, console: console, socket: socket, page: page, log: log}, nil
}

// GET /devices/{id}/settings
func (h *PanelHandler) RenderSettings(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, schema.PanelSettings)
}

// GET /devices/{id}/bridge
func (h *PanelHandler) RenderBridgeSettings(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, schema.PanelBridge)
}

// POST /devices/{id}/settings
func (h *PanelHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, h.ctrl.OnSaveSettings)
}

// POST /devices/{id}/bridge
func (h *PanelHandler) SaveBridgeSettings(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, h.ctrl.OnSaveBridgeSettings)
}

// ClosePanel runs the device's close hooks.
// POST /devices/{id}/panel/close
func (h *PanelHandler) ClosePanel(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	h.console.ClosePanel(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// Socket streams busy state and messages to an open panel.
// GET /devices/{id}/panel/ws
func (h *PanelHandler) Socket(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	h.socket.ServeEntity(w, r, id)
}

func (h *PanelHandler) render(w http.ResponseWriter, r *http.Request, name string) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}

	data := pageData{
		Title:      fmt.Sprintf("Device #%s %s", id, name),
		EntityID:   id,
		Panel:      name,
		Content:    h.ctrl.Render(r.Context(), name, id),
		SocketPath: "/devices/" + id + "/panel/ws",
		ClosePath:  "/devices/" + id + "/panel/close",
	}
	status := http.StatusOK
	if data.Content == "" {
		data.Error = "The panel could not be rendered. See the service log for details."
		status = http.StatusInternalServerError
	}

	var buf bytes.Buffer
	if err := h.page.Execute(&buf, data); err != nil {
		h.log.Error("rendering page failed", zap.String("entity_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "RENDER_FAILED", "page could not be rendered")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *PanelHandler) save(w http.ResponseWriter, r *http.Request, save func(context.Context, string, panel.FormReader) error) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", err.Error())
		return
	}
	if err := save(r.Context(), id, panel.FormValues(r.PostForm)); err != nil {
		h.log.Error("saving panel failed", zap.String("entity_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "SAVE_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "saving"})
}
