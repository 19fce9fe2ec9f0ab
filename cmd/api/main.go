// @title        cEats Backend API
// @version      1.0
// @description  Order intake and account provisioning for the cEats restaurant dashboard.
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CesarCrz/cEatssFB/pkg/api"
	"github.com/CesarCrz/cEatssFB/pkg/config"
	"github.com/CesarCrz/cEatssFB/pkg/discovery"
	"github.com/CesarCrz/cEatssFB/pkg/grpc"
	"github.com/CesarCrz/cEatssFB/pkg/logger"
	"github.com/CesarCrz/cEatssFB/pkg/orders"
	"github.com/CesarCrz/cEatssFB/pkg/platform"
	"github.com/CesarCrz/cEatssFB/pkg/provisioning"
	"github.com/CesarCrz/cEatssFB/pkg/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting backend API",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port),
		zap.Int("grpc_port", cfg.GRPC.Port))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := platform.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open platform", zap.Error(err))
	}
	defer p.Close()

	orderSvc := orders.NewService(p.Store, log,
		orders.WithAuditor(p.Auditor),
		orders.WithPublisher(p.Publisher))

	provOpts := []provisioning.Option{
		provisioning.WithAuditor(p.Auditor),
		provisioning.WithRollback(cfg.Provisioning.RollbackOrphans),
	}
	var apiOpts []api.Option
	if p.Ledger != nil {
		provOpts = append(provOpts, provisioning.WithLedger(p.Ledger))
		apiOpts = append(apiOpts, api.WithOrphanLedger(p.Ledger))
	}
	if p.Audit != nil {
		apiOpts = append(apiOpts, api.WithAuditReader(p.Audit))
	}
	provSvc := provisioning.NewService(p.Store, p.Identity, log, provOpts...)
	resolver := session.NewResolver(p.Store, p.Identity, log)

	if cfg.Bootstrap.Enabled() {
		if _, err := provSvc.EnsureAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
			log.Fatal("Failed to seed superadmin", zap.Error(err))
		}
	}

	server := api.NewServer(orderSvc, provSvc, resolver, log, apiOpts...)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: server.Handler(),
	}
	grpcName := cfg.Server.Name + "-grpc"
	health := grpc.NewHealthServer(grpcName, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := health.Start(fmt.Sprintf(":%d", cfg.GRPC.Port)); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	if p.Discovery != nil {
		register(gctx, p.Discovery, log,
			&discovery.ServiceInstance{Name: cfg.Server.Name, Host: cfg.Server.Host, Port: cfg.Server.Port},
			&discovery.ServiceInstance{Name: grpcName, Host: cfg.Server.Host, Port: cfg.GRPC.Port})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down backend API")
		health.SetServing(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("Graceful shutdown failed, forcing close", zap.Error(err))
			httpServer.Close()
		}
		health.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Backend API stopped with error", zap.Error(err))
		return
	}
	log.Info("Backend API stopped")
}

// register announces the instances in etcd for as long as ctx lives.
func register(ctx context.Context, sd *discovery.ServiceDiscovery, log *zap.Logger, instances ...*discovery.ServiceInstance) {
	for _, instance := range instances {
		if err := sd.Register(ctx, instance); err != nil {
			log.Warn("Failed to register service", zap.String("name", instance.Name), zap.Error(err))
			continue
		}
		log.Info("Service registered in etcd",
			zap.String("name", instance.Name),
			zap.String("address", instance.Addr()))
	}
}
