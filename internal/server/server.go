// Package server wires the admin API, webhook ingress and realtime relay
// into one HTTP surface.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"evopanel/internal/chat"
	"evopanel/internal/config"
	"evopanel/internal/domain"
	"evopanel/internal/metrics"
	"evopanel/internal/relay"
	"evopanel/internal/send"
)

// Deps carries everything the server needs. All fields are required except
// Store (nil disables the CRM routes, useful in tests).
type Deps struct {
	Config    *config.Config
	Store     domain.Store
	Gateway   domain.GatewayClient
	Webhook   *relay.Webhook
	Hub       *relay.Hub
	ChatLog   *chat.Log
	Responder *chat.Responder
	Logger    *slog.Logger
}

type Server struct {
	cfg       *config.Config
	store     domain.Store
	gateway   domain.GatewayClient
	hub       *relay.Hub
	chatLog   *chat.Log
	responder *chat.Responder
	broadcast *send.Broadcaster
	logger    *slog.Logger

	httpSrv *http.Server
	started time.Time
}

func New(deps Deps) *Server {
	s := &Server{
		cfg:       deps.Config,
		store:     deps.Store,
		gateway:   deps.Gateway,
		hub:       deps.Hub,
		chatLog:   deps.ChatLog,
		responder: deps.Responder,
		broadcast: send.NewBroadcaster(deps.Gateway, deps.Logger),
		logger:    deps.Logger,
		started:   time.Now(),
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Post(s.cfg.Webhook.Path, deps.Webhook.Handle)
	r.Get(s.cfg.Relay.Path, deps.Hub.HandleUpgrade)
	r.Get("/status", s.handleStatus)

	if s.cfg.Metrics.Enabled {
		r.Get(s.cfg.Metrics.Endpoint, metrics.Collector.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/conversations", s.listConversations)
		r.Get("/conversations/{id}", s.getConversation)

		r.Get("/autoreply", s.getAutoReply)
		r.Put("/autoreply", s.setAutoReply)

		r.Post("/send/text", s.sendText)
		r.Post("/send/mass", s.sendMass)

		r.Get("/instances", s.listInstances)
		r.Post("/instances", s.createInstance)
		r.Get("/instances/{name}/connect", s.connectInstance)
		r.Get("/instances/{name}/state", s.instanceState)
		r.Delete("/instances/{name}/logout", s.logoutInstance)
		r.Delete("/instances/{name}", s.deleteInstance)

		if s.store != nil {
			r.Post("/login", s.login)
			s.registerCRUD(r)
		}
	})

	s.httpSrv = &http.Server{
		Addr:         s.cfg.Server.Host + ":" + strconv.Itoa(s.cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // relay connections stay open
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

func (s *Server) Addr() string { return s.httpSrv.Addr }

func (s *Server) ListenAndServe() error {
	s.logger.Info("server listening", "addr", s.httpSrv.Addr)
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"relay_clients":  s.hub.ClientCount(),
		"conversations":  s.chatLog.Len(),
		"auto_reply":     s.responder.Active(),
	})
}
