package server

import (
	"context"
	"net/http"
	"time"

	"tunevault/core/engine"
	"tunevault/core/session"
	"tunevault/logger"

	"github.com/gorilla/mux"
)

// Server is the HTTP surface: liveness, session status, the websocket
// status feed and the command endpoints.
type Server struct {
	httpServer *http.Server
	handler    *APIHandler
	hub        *StatusHub
}

// New builds the server and its routes.
func New(addr string, eng *engine.Engine, sessions *session.Manager, hub *StatusHub) *Server {
	handler := NewAPIHandler(eng, sessions)

	router := mux.NewRouter()
	router.HandleFunc("/", handler.HandleRoot).Methods(http.MethodGet)
	router.HandleFunc("/health", handler.HandleHealth).Methods(http.MethodGet)

	router.HandleFunc("/api/commands/song", handler.HandleSong).Methods(http.MethodPost)
	router.HandleFunc("/api/commands/video", handler.HandleVideo).Methods(http.MethodPost)

	router.HandleFunc("/api/sessions", handler.HandleSessions).Methods(http.MethodGet)
	router.HandleFunc("/api/sessions/{id}", handler.HandleSession).Methods(http.MethodGet)
	router.HandleFunc("/api/sessions/{id}/queue", handler.HandleQueue).Methods(http.MethodPost)
	router.HandleFunc("/api/sessions/{id}/skip", handler.HandleSkip).Methods(http.MethodPost)
	router.HandleFunc("/api/sessions/{id}/stop", handler.HandleStop).Methods(http.MethodPost)

	router.HandleFunc("/ws/sessions/{id}", hub.HandleWS).Methods(http.MethodGet)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		handler: handler,
		hub:     hub,
	}
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	logger.Info("http server listening", logger.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains connections gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
