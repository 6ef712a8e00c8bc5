// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker returns whether the service is ready to accept connections.
type ReadinessChecker func() bool

// Outcome label values shared by the auth flow counters.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Gate decision label values.
const (
	GateAdmitted     = "admitted"
	GateUnauthorized = "unauthorized"
	GateInvalid      = "invalid"
	GateExpired      = "expired"
)

// Metrics contains custom Prometheus metrics for the auth flows.
type Metrics struct {
	// ChallengesIssued counts captchas handed out.
	ChallengesIssued prometheus.Counter

	// ChallengeChecks counts captcha verifications by outcome
	// (ok, rejected, error).
	ChallengeChecks *prometheus.CounterVec

	// Signups, Signins and Refreshes count the account flows by outcome
	// (ok, rejected, error).
	Signups   *prometheus.CounterVec
	Signins   *prometheus.CounterVec
	Refreshes *prometheus.CounterVec

	// GateDecisions counts auth gate outcomes (admitted, unauthorized,
	// invalid, expired).
	GateDecisions *prometheus.CounterVec
}

// NewMetrics creates and registers the auth flow metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChallengesIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "xoarena_challenges_issued_total",
				Help: "Total number of captcha challenges issued",
			},
		),
		ChallengeChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xoarena_challenge_checks_total",
				Help: "Total number of captcha verifications by outcome",
			},
			[]string{"outcome"},
		),
		Signups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xoarena_signups_total",
				Help: "Total number of signup attempts by outcome",
			},
			[]string{"outcome"},
		),
		Signins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xoarena_signins_total",
				Help: "Total number of signin attempts by outcome",
			},
			[]string{"outcome"},
		),
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xoarena_token_refreshes_total",
				Help: "Total number of token refresh attempts by outcome",
			},
			[]string{"outcome"},
		),
		GateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xoarena_gate_decisions_total",
				Help: "Total number of auth gate decisions by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(m.ChallengesIssued)
	reg.MustRegister(m.ChallengeChecks)
	reg.MustRegister(m.Signups)
	reg.MustRegister(m.Signins)
	reg.MustRegister(m.Refreshes)
	reg.MustRegister(m.GateDecisions)

	return m
}

// Server provides HTTP endpoints for observability (metrics and health probes).
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	isReady    ReadinessChecker
	running    atomic.Bool
}

// NewServer creates a new observability server.
// addr: listen address in "host:port" format (e.g., "127.0.0.1:9100", ":9100" for all interfaces).
func NewServer(addr string, readinessChecker ReadinessChecker) *Server {
	// Create a new registry to avoid polluting the global one
	registry := prometheus.NewRegistry()

	// Register standard Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Register custom metrics
	metrics := NewMetrics(registry)

	s := &Server{
		addr:     addr,
		registry: registry,
		metrics:  metrics,
		isReady:  readinessChecker,
	}

	return s
}

// Metrics returns the custom metrics for recording application events.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start begins serving observability endpoints.
// It returns an error channel that will receive any errors from the HTTP server
// after it starts. The channel is closed when the server stops gracefully.
// Callers should monitor this channel to detect server failures.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	// Kubernetes-style health probes
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	// Create buffered error channel so the goroutine doesn't block
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		// Use local httpSrv to avoid race with subsequent Start() calls
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	// Use CompareAndSwap to atomically transition from running to stopped.
	// This prevents a race where a concurrent Start() could succeed between
	// checking the running state and setting it to false.
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state on failure so the server can be stopped again
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
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

// handleLiveness returns 200 if the process is running.
// This is a simple check that the process is alive.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

// handleReadiness returns 200 if the service is ready to accept connections,
// or 503 if not ready.
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}
