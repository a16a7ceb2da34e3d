// Package server assembles the panel service and starts the HTTP server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matthewbaird/bridgepanel/internal/config"
	"github.com/matthewbaird/bridgepanel/internal/event"
	"github.com/matthewbaird/bridgepanel/internal/eventbus"
	"github.com/matthewbaird/bridgepanel/internal/handler"
	"github.com/matthewbaird/bridgepanel/internal/host"
	"github.com/matthewbaird/bridgepanel/internal/panel"
	"github.com/matthewbaird/bridgepanel/internal/schema"
	"github.com/matthewbaird/bridgepanel/internal/store"
	"github.com/matthewbaird/bridgepanel/internal/wire"
)

// Config holds server configuration.
type Config struct {
	Addr  string
	Store store.Store
	Defs  *schema.Definitions
	Panel config.PanelConfig
	Log   *zap.Logger
}

// Server owns the event bus and the HTTP routes of one service instance.
type Server struct {
	addr    string
	bus     *eventbus.Bus
	gateway *host.Gateway
	router  chi.Router
	log     *zap.Logger
}

// New wires the store, host collaborators, panel controller and handlers.
func New(cfg Config) (*Server, error) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	bus := eventbus.New(256, log.Named("eventbus"))
	rec := event.NewStoreRecorder(cfg.Store)
	rec.SetPublisher(bus)

	console := host.NewConsole(rec, log.Named("console"))
	gateway := host.NewGateway(cfg.Store, rec, log.Named("gateway"), cfg.Panel.GatewayID, cfg.Panel.GatewayService)

	ids := panel.IDScheme{Prefix: cfg.Panel.ElementPrefix}
	if ids.Prefix == "" {
		ids.Prefix = panel.DefaultPrefix
	}
	renderer, err := panel.NewRenderer(ids, panel.NewSorter(cfg.Panel.Locale))
	if err != nil {
		return nil, err
	}
	panelLog := log.Named("panel")
	assembler := panel.NewAssembler(cfg.Store, cfg.Defs.Namespace, ids, renderer, panelLog)
	saver := panel.NewSaver(cfg.Store, cfg.Store, console, gateway, rec, ids, panel.SaverConfig{
		Namespace:      cfg.Defs.Namespace,
		SettleDelay:    cfg.Panel.SettleDelay.Duration,
		GatewayID:      gateway.DeviceID(),
		GatewayService: gateway.ServiceID(),
	}, panelLog)
	ctrl := panel.NewController(cfg.Defs, cfg.Store, console, assembler, saver, panelLog)

	hub := wire.NewHub(log.Named("wire"))
	bus.Subscribe("log", eventbus.NewLogConsumer(log.Named("events")))
	bus.Subscribe("wire", hub)

	ph, err := handler.NewPanelHandler(ctrl, console, wire.NewHandler(hub, console, log.Named("wire")), log.Named("http"))
	if err != nil {
		return nil, err
	}
	dh := handler.NewDeviceHandler(cfg.Store, cfg.Defs.Namespace)

	s := &Server{addr: cfg.Addr, bus: bus, gateway: gateway, log: log}

	r := chi.NewRouter()
	r.Use(handler.Recovery(log), handler.Logging(log.Named("http")))

	r.Get("/healthz", s.health)
	r.Handle("/static/*", http.StripPrefix("/static/", handler.Static()))

	r.Route("/devices/{id}", func(r chi.Router) {
		r.Get("/settings", ph.RenderSettings)
		r.Post("/settings", ph.SaveSettings)
		r.Get("/bridge", ph.RenderBridgeSettings)
		r.Post("/bridge", ph.SaveBridgeSettings)
		r.Post("/panel/close", ph.ClosePanel)
		r.Get("/panel/ws", ph.Socket)
	})

	r.Route("/v1/devices/{id}", func(r chi.Router) {
		r.Get("/", dh.GetDevice)
		r.Put("/", dh.PutDevice)
		r.Put("/variables/{key}", dh.PutVariable)
		r.Get("/events", dh.Events)
	})

	s.router = r
	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	reloads, last := s.gateway.Reloads()
	resp := struct {
		Status     string     `json:"status"`
		Reloads    int        `json:"reloads"`
		LastReload *time.Time `json:"last_reload,omitempty"`
	}{Status: "ok", Reloads: reloads}
	if !last.IsZero() {
		resp.LastReload = &last
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Run starts the event bus and serves HTTP until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.bus.Start(ctx)
	defer s.bus.Stop()

	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("server shutdown", zap.Error(err))
		}
	}()

	s.log.Info("starting server", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
