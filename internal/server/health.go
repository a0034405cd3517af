package server

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the service name reported alongside the overall "" status.
const HealthServiceName = "vowmud"

// HealthService exposes the standard gRPC health checking protocol.
// It reports SERVING while the world accepts players and NOT_SERVING once Stop begins.
type HealthService struct {
	addr   string
	logger *zap.Logger
	grpc   *grpc.Server
	health *health.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewHealthService creates a HealthService that will listen on addr.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a HealthService reporting NOT_SERVING until Start or Serve is called.
func NewHealthService(addr string, logger *zap.Logger) *HealthService {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &HealthService{
		addr:   addr,
		logger: logger,
		grpc:   srv,
		health: hs,
	}
}

// Start listens on the configured address and serves until Stop is called.
func (h *HealthService) Start() error {
	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}
	return h.Serve(lis)
}

// Serve marks the service SERVING and serves health checks on lis until Stop is called.
//
// Precondition: lis must be a bound listener.
func (h *HealthService) Serve(lis net.Listener) error {
	h.mu.Lock()
	h.listener = lis
	h.mu.Unlock()

	h.SetServing(true)
	h.logger.Info("health service listening", zap.String("addr", lis.Addr().String()))

	if err := h.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serving health checks: %w", err)
	}
	return nil
}

// SetServing flips both the overall and the named status.
func (h *HealthService) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(HealthServiceName, status)
}

// Addr returns the bound listener address, or nil before Serve.
func (h *HealthService) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// Stop reports NOT_SERVING to watchers and gracefully stops the gRPC server.
func (h *HealthService) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
