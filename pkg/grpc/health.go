package grpc

import (
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServer exposes the standard gRPC health service for the API.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	name   string
	logger *zap.Logger
}

func NewHealthServer(serviceName string, logger *zap.Logger) *HealthServer {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	s := &HealthServer{
		server: srv,
		health: hs,
		name:   serviceName,
		logger: logger,
	}
	s.SetServing(true)
	return s
}

// SetServing updates the status reported for the service and the server as a whole.
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.name, status)
}

func (s *HealthServer) Serve(lis net.Listener) error {
	s.logger.Info("gRPC health service started", zap.String("address", lis.Addr().String()))
	return s.server.Serve(lis)
}

func (s *HealthServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
