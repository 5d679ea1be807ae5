package http

import (
	"context"
	"errors"
	"net"
	"net/http"

	"go.uber.org/zap"
)

// Server serves the status API on a local address.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer wraps handler for addr.
func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{server: &http.Server{Addr: addr, Handler: handler}, logger: logger}
}

// Serve listens and serves until Shutdown. It returns the listen error, if any.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("status server listening", zap.String("addr", ln.Addr().String()))
	return ignoreServerClosed(s.server.Serve(ln))
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return ignoreServerClosed(s.server.Shutdown(ctx))
}

func ignoreServerClosed(err error) error {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
