package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/jonwraymond/querycache/observe"
)

// Server serves a handler until its context ends.
type Server struct {
	cfg    Config
	http   *http.Server
	logger observe.Logger
}

// New creates a Server for handler.
func New(handler http.Handler, logger observe.Logger, cfg Config) *Server {
	cfg.applyDefaults()
	if logger == nil {
		logger = observe.NewNopLogger()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.RequestTimeout,
			WriteTimeout:      2 * cfg.RequestTimeout,
			IdleTimeout:       4 * cfg.RequestTimeout,
		},
	}
}

// Run listens on the configured address and serves until ctx is done, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server listening", observe.Field{Key: "addr", Value: ln.Addr().String()})
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.logger.Info(ctx, "http server stopped")
	return <-errCh
}
