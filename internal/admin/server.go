package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// Server wraps the admin http.Server with start/shutdown plumbing.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

func NewServer(addr string, handler http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: handler},
		log:        log,
	}
}

func (s *Server) Start() error {
	s.log.Info("admin server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
