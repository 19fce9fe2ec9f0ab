package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
)

type staticDiscoverer struct {
	addr string
	err  error
}

func (d staticDiscoverer) DiscoverAddr(ctx context.Context, serviceName string) (string, error) {
	return d.addr, d.err
}

func TestHealthServer_ClientManager(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	server := NewHealthServer("ceats-api-grpc", zap.NewNop())
	go server.Serve(lis)
	defer server.Stop()

	// Discovery fails, so the fallback address is used.
	manager := NewClientManager("ceats-api-grpc", lis.Addr().String(), staticDiscoverer{err: errors.New("etcd down")}, zap.NewNop())
	if err := manager.Connect(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer manager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := manager.Check(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != "SERVING" {
		t.Errorf("expected SERVING, got %s", status)
	}

	server.SetServing(false)
	status, _ = manager.Check(ctx)
	if status != "NOT_SERVING" {
		t.Errorf("expected NOT_SERVING, got %s", status)
	}
}

func TestClientManager_CheckBeforeConnect(t *testing.T) {
	manager := NewClientManager("svc", "localhost:1", nil, zap.NewNop())
	if _, err := manager.Check(context.Background()); err == nil {
		t.Error("expected error before Connect")
	}
}
