// Package grpc serves the standard gRPC health service for a simulation
// run.
package grpc

import (
	"context"
	"fmt"
	"net"

	"github.com/aescanero/simorch/internal/application/orchestrator"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name that mirrors the run state.
const ServiceName = "simorch.Orchestrator"

// Server represents the gRPC API server
type Server struct {
	server   *grpc.Server
	listener net.Listener
	health   *health.Server
	logger   *zap.Logger
}

// Config holds gRPC server configuration
type Config struct {
	// Port 0 picks a free port.
	Port   int
	Logger *zap.Logger
}

// NewServer creates a new gRPC server listening on the configured port.
// Both the overall and the orchestrator service start NOT_SERVING.
func NewServer(cfg *Config) (*Server, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{
		server:   grpcServer,
		listener: listener,
		health:   healthServer,
		logger:   logger,
	}, nil
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Health returns the health service.
func (s *Server) Health() *health.Server {
	return s.health
}

// Start starts the gRPC server
func (s *Server) Start() error {
	s.logger.Info("starting gRPC server", zap.String("addr", s.listener.Addr().String()))

	if err := s.server.Serve(s.listener); err != nil {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}

	return nil
}

// Shutdown marks every service NOT_SERVING and stops gracefully, or
// forcefully once ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gRPC server")

	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
	}

	s.logger.Info("gRPC server shut down complete")
	return nil
}

// HealthObserver mirrors the run state into the health service: a failed
// run is NOT_SERVING, any other initialized run is SERVING.
type HealthObserver struct {
	health *health.Server
	logger *zap.Logger
}

// NewHealthObserver creates an observer updating srv.
func NewHealthObserver(srv *health.Server, logger *zap.Logger) *HealthObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthObserver{health: srv, logger: logger}
}

// OnEvent implements orchestrator.Observer.
func (h *HealthObserver) OnEvent(ctx context.Context, event orchestrator.Event) {
	if event.Type != orchestrator.EventBarrierReached {
		return
	}
	if event.Result == orchestrator.ResultError {
		h.SetState(orchestrator.RunError)
		return
	}
	h.SetState(orchestrator.RunRunning)
}

// SetState sets the serving status for state.
func (h *HealthObserver) SetState(state orchestrator.RunState) {
	status := healthpb.HealthCheckResponse_SERVING
	if state == orchestrator.RunError || state == orchestrator.RunCreated {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)

	h.logger.Debug("health status updated",
		zap.String("state", state.String()),
		zap.String("status", status.String()))
}
