// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

// Package api exposes the authentication flows over HTTP.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/xoarena/xoarena/internal/auth"
	"github.com/xoarena/xoarena/internal/observability"
)

// Server is the public HTTP API server.
type Server struct {
	addr       string
	engine     *gin.Engine
	listener   net.Listener
	httpServer *http.Server
	logger     *slog.Logger
	running    atomic.Bool
}

// NewServer creates an API server listening on addr once started.
func NewServer(addr string, handlers *Handlers, codec *auth.Codec, metrics *observability.Metrics, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	public := engine.Group("/auth")
	{
		public.POST("/captcha", handlers.Captcha)
		public.POST("/signup", handlers.Signup)
		public.POST("/signin", handlers.Signin)
	}

	protected := engine.Group("/auth")
	protected.Use(RequireToken(codec, metrics))
	{
		protected.POST("/refresh", handlers.Refresh)
		protected.GET("/me", handlers.Me)
	}

	return &Server{
		addr:   addr,
		engine: engine,
		logger: logger,
	}
}

// Handler returns the underlying HTTP handler. Intended for tests that
// drive the router without a listener.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving the API.
// It returns an error channel that will receive any errors from the HTTP
// server after it starts. The channel is closed when the server stops
// gracefully. Callers should monitor this channel to detect server failures.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server, letting in-flight requests
// finish until the context expires.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state on failure so the server can be stopped again
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
