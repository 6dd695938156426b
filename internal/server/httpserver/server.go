package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/contentkeeper/internal/logging"
)

// shutdownTimeout bounds how long in-flight requests may run after the
// server has been asked to stop.
const shutdownTimeout = 15 * time.Second

// Server is the HTTP API server.
type Server struct {
	address string
	handler http.Handler
	logger  logging.Logger
}

// NewServer wraps handler with the standard middleware stack: recovery,
// request id, request logging and the per-request timeout.
func NewServer(address string, handler http.Handler, logger logging.Logger, requestTimeout time.Duration) *Server {
	logger = logger.With("module", "http_server")
	stack := Chain(
		Recovery(logger),
		RequestID,
		Logger(logger),
		Timeout(requestTimeout),
	)
	return &Server{
		address: address,
		handler: stack(handler),
		logger:  logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Run listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on an existing listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(sctx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-stopped
}
