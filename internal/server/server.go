// Package server wires the STOMP TCP accept loop and the HTTP
// observability side-channel, grounded on
// go-server/internal/server/server.go's Start/Shutdown structure: a
// WaitGroup of long-running goroutines, signal.Notify-driven graceful
// shutdown, and a small mux of health/metrics endpoints — retargeted from
// a websocket+NATS bridge to a raw STOMP TCP listener.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"stomp-broker/internal/broker"
	"stomp-broker/internal/metrics"
)

// Server owns the STOMP listener, the HTTP health/metrics listener, and
// the background system-metrics sampler.
type Server struct {
	port        int
	metricsPort int

	broker  *broker.Broker
	session *broker.Session
	system  *metrics.System
	logger  *zap.Logger

	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(port, metricsPort int, b *broker.Broker, system *metrics.System, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		port:        port,
		metricsPort: metricsPort,
		broker:      b,
		session:     broker.NewSession(b, logger),
		system:      system,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
	s.setupHTTPServer()
	return s
}

func (s *Server) setupHTTPServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.metricsPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"healthy"}`)
}

// Run starts the STOMP TCP listener, the HTTP side-channel, and the system
// metrics sampler, then blocks until SIGINT/SIGTERM, draining all three
// gracefully.
func (s *Server) Run() error {
	listener, err := s.listen()
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(listener)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.system.Run(s.ctx.Done(), time.Second)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("http listener starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()

	s.waitForShutdown(listener)
	return nil
}

// listen binds the IPv4 wildcard address with SO_REUSEADDR, per spec.md §6.
// The backlog is not set here: it is whatever Go's listener uses (the
// system's somaxconn), not a fixed 1024.
func (s *Server) listen() (net.Listener, error) {
	cfg := net.ListenConfig{
		Control: reuseAddrControl,
	}
	return cfg.Listen(s.ctx, "tcp4", fmt.Sprintf("0.0.0.0:%d", s.port))
}

func (s *Server) acceptLoop(listener net.Listener) {
	s.logger.Info("stomp listener starting", zap.Int("port", s.port))
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Warn("accept error", zap.Error(err))
				continue
			}
		}
		go s.session.Serve(s.ctx, conn)
	}
}

func (s *Server) waitForShutdown(listener net.Listener) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	s.logger.Info("shutting down", zap.String("signal", sig.String()))

	s.cancel()
	listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown error", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		s.logger.Warn("shutdown timed out waiting for goroutines")
	}
}
