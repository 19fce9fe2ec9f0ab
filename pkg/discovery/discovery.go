package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/CesarCrz/cEatssFB/pkg/config"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

var ErrNoInstances = errors.New("no registered instances")

const leaseTTL = 30

type ServiceDiscovery struct {
	client *clientv3.Client
	config *config.EtcdConfig
	logger *zap.Logger
}

type ServiceInstance struct {
	Name string
	Host string
	Port int
}

// Addr returns host:port.
func (i *ServiceInstance) Addr() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

func NewServiceDiscovery(cfg *config.EtcdConfig, logger *zap.Logger) (*ServiceDiscovery, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("no etcd endpoints configured")
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &ServiceDiscovery{
		client: cli,
		config: cfg,
		logger: logger,
	}, nil
}

func (sd *ServiceDiscovery) key(instance *ServiceInstance) string {
	return fmt.Sprintf("%s%s/%s", sd.config.Prefix, instance.Name, instance.Addr())
}

// Register puts the instance under a lease kept alive until ctx is done.
func (sd *ServiceDiscovery) Register(ctx context.Context, instance *ServiceInstance) error {
	lease, err := sd.client.Grant(ctx, leaseTTL)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	_, err = sd.client.Put(ctx, sd.key(instance), instance.Addr(), clientv3.WithLease(lease.ID))
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	ch, kaerr := sd.client.KeepAlive(ctx, lease.ID)
	if kaerr != nil {
		return fmt.Errorf("failed to keep alive: %w", kaerr)
	}

	go func() {
		for range ch {
		}
		if ctx.Err() == nil {
			sd.logger.Warn("Service lease keep-alive stopped", zap.String("service", instance.Name))
		}
	}()

	return nil
}

func (sd *ServiceDiscovery) Discover(ctx context.Context, serviceName string) ([]*ServiceInstance, error) {
	key := fmt.Sprintf("%s%s/", sd.config.Prefix, serviceName)

	resp, err := sd.client.Get(ctx, key, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover service: %w", err)
	}

	var instances []*ServiceInstance
	for _, kv := range resp.Kvs {
		host, portStr, err := net.SplitHostPort(string(kv.Value))
		if err != nil {
			sd.logger.Warn("Skipping malformed registration", zap.String("key", string(kv.Key)), zap.Error(err))
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			sd.logger.Warn("Skipping malformed registration", zap.String("key", string(kv.Key)), zap.Error(err))
			continue
		}
		instances = append(instances, &ServiceInstance{
			Name: serviceName,
			Host: host,
			Port: port,
		})
	}

	return instances, nil
}

// DiscoverAddr returns the address of the first registered instance.
func (sd *ServiceDiscovery) DiscoverAddr(ctx context.Context, serviceName string) (string, error) {
	instances, err := sd.Discover(ctx, serviceName)
	if err != nil {
		return "", err
	}
	if len(instances) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoInstances, serviceName)
	}
	return instances[0].Addr(), nil
}

func (sd *ServiceDiscovery) Deregister(ctx context.Context, instance *ServiceInstance) error {
	_, err := sd.client.Delete(ctx, sd.key(instance))
	if err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}

func (sd *ServiceDiscovery) Close() error {
	return sd.client.Close()
}
