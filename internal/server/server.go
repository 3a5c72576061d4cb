// Package server exposes the JSON API, the WebSocket notification
// endpoint and the Prometheus metrics handler.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/securechat/securechat/internal/config"
	"github.com/securechat/securechat/internal/events"
	"github.com/securechat/securechat/internal/services/accounts"
	"github.com/securechat/securechat/internal/services/messages"
	"github.com/securechat/securechat/internal/services/verify"
)

// Server wires the services behind the HTTP API.
type Server struct {
	cfg      *config.Config
	logger   *events.Logger
	accounts *accounts.Service
	messages *messages.Service
	verify   *verify.Service
	hub      *Hub
	limiter  *ipRateLimiter

	httpServer *http.Server
}

// New creates a server. The hub is attached to the messages service so
// sends fan out to connected recipients.
func New(cfg *config.Config, logger *events.Logger, acc *accounts.Service, msg *messages.Service, ver *verify.Service) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger.WithField("component", "server"),
		accounts: acc,
		messages: msg,
		verify:   ver,
		hub:      NewHub(logger),
		limiter:  newIPRateLimiter(cfg.RateLimit),
	}
	msg.SetNotifier(s.hub)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// routes builds the handler chain.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/register", s.rateLimited(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /api/login", s.rateLimited(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("POST /api/logout", s.handleLogout)

	mux.Handle("GET /api/me", s.requireSession(s.handleMe))
	mux.Handle("GET /api/users", s.requireSession(s.handleListUsers))

	mux.Handle("POST /api/messages", s.requireSession(s.handleSendMessage))
	mux.Handle("GET /api/messages/inbox", s.requireSession(s.handleInbox))
	mux.Handle("GET /api/messages/sent", s.requireSession(s.handleSent))
	mux.Handle("GET /api/messages/unread-count", s.requireSession(s.handleUnreadCount))
	mux.Handle("GET /api/messages/{id}", s.requireSession(s.handleOpenMessage))
	mux.Handle("POST /api/messages/{id}/read", s.requireSession(s.handleMarkRead))

	mux.Handle("POST /api/verification/request", s.requireSession(s.handleVerificationRequest))
	mux.Handle("POST /api/verification/confirm", s.requireSession(s.handleVerificationConfirm))

	mux.Handle("GET /ws", s.requireSession(s.handleWebSocket))

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return s.withLogging(s.withMetrics(mux))
}

// Start serves until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.cfg.Server.Addr).Info("Server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler exposes the routed handler (test hook).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
