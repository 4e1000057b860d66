package grpc

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// HealthServer implements the gRPC health checking protocol over the
// service's dependency checks.
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	checks map[string]Check
	log    *zap.Logger
}

// NewHealthServer creates a new health check server
func NewHealthServer(checks map[string]Check, log *zap.Logger) *HealthServer {
	return &HealthServer{
		checks: checks,
		log:    log,
	}
}

// CheckAll runs every check and returns the first failure by name.
func (h *HealthServer) CheckAll(ctx context.Context) (string, error) {
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			return name, err
		}
	}
	return "", nil
}

func (h *HealthServer) status(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if name, err := h.CheckAll(ctx); err != nil {
		h.log.Error("Health check failed", zap.String("dependency", name), zap.Error(err))
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}

// Check implements the health check
func (h *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	return &grpc_health_v1.HealthCheckResponse{Status: h.status(ctx)}, nil
}

// Watch sends the current status once.
func (h *HealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, server grpc_health_v1.Health_WatchServer) error {
	return server.Send(&grpc_health_v1.HealthCheckResponse{Status: h.status(server.Context())})
}
