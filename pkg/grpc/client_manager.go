package grpc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Discoverer finds the address of a registered service.
type Discoverer interface {
	DiscoverAddr(ctx context.Context, serviceName string) (string, error)
}

// ClientManager manages the dashboard's gRPC connection to the API
type ClientManager struct {
	serviceName string
	fallback    string
	discovery   Discoverer
	logger      *zap.Logger

	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// NewClientManager creates a client manager. disc may be nil, in which case
// fallback is dialed directly.
func NewClientManager(serviceName, fallback string, disc Discoverer, logger *zap.Logger) *ClientManager {
	return &ClientManager{
		serviceName: serviceName,
		fallback:    fallback,
		discovery:   disc,
		logger:      logger,
	}
}

// Connect sets up the connection; the first RPC establishes it.
func (m *ClientManager) Connect() error {
	target := m.fallback

	if m.discovery != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		addr, err := m.discovery.DiscoverAddr(ctx, m.serviceName)
		if err == nil {
			target = addr
			m.logger.Info("Discovered API gRPC service", zap.String("address", target))
		} else {
			m.logger.Info("Using default address for API gRPC service", zap.String("address", target), zap.Error(err))
		}
	}

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", target, err)
	}

	m.conn = conn
	m.health = healthpb.NewHealthClient(conn)
	return nil
}

// Check returns the serving status the API reports, e.g. "SERVING".
func (m *ClientManager) Check(ctx context.Context) (string, error) {
	if m.health == nil {
		return "", fmt.Errorf("client manager not connected")
	}
	resp, err := m.health.Check(ctx, &healthpb.HealthCheckRequest{Service: m.serviceName})
	if err != nil {
		return "", fmt.Errorf("health check failed: %w", err)
	}
	return resp.GetStatus().String(), nil
}

// Close closes the gRPC connection
func (m *ClientManager) Close() error {
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			return fmt.Errorf("connection close error: %w", err)
		}
	}
	return nil
}
