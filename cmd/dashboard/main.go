package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CesarCrz/cEatssFB/gateway"
	"github.com/CesarCrz/cEatssFB/pkg/board"
	"github.com/CesarCrz/cEatssFB/pkg/config"
	"github.com/CesarCrz/cEatssFB/pkg/console"
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

	log.Info("Starting dashboard",
		zap.Int("port", cfg.Dashboard.Port),
		zap.String("host", cfg.Dashboard.Host))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := platform.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open platform", zap.Error(err))
	}
	defer p.Close()

	var disc console.Discoverer
	if p.Discovery != nil {
		disc = p.Discovery
	}

	backend := console.NewHTTPBackend(cfg.Dashboard.APIServiceName, cfg.Dashboard.APIURL, disc,
		cfg.Dashboard.RequestTimeout, log.Named("backend"))

	clients := grpc.NewClientManager(cfg.Dashboard.APIServiceName+"-grpc", cfg.Dashboard.APIGRPCAddr, disc, log)
	if err := clients.Connect(); err != nil {
		log.Warn("Backend gRPC client unavailable", zap.Error(err))
	}
	defer clients.Close()

	boards := board.NewManager(p.Store, log)
	defer boards.Shutdown()

	gw := gateway.NewGateway(gateway.Deps{
		Sessions: session.NewResolver(p.Store, p.Identity, log),
		Provisioning: provisioning.NewService(p.Store, p.Identity, log,
			provisioning.WithAuditor(p.Auditor),
			provisioning.WithRollback(cfg.Provisioning.RollbackOrphans)),
		Orders: orders.NewService(p.Store, log,
			orders.WithAuditor(p.Auditor),
			orders.WithPublisher(p.Publisher)),
		Boards:  boards,
		Console: console.New(p.Store, backend, log),
		Backend: clients,
	}, log)

	g, gctx := errgroup.WithContext(ctx)

	// Open order streams end when the server context is cancelled.
	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Dashboard.Host, cfg.Dashboard.Port),
		Handler:     gw.Handler(),
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		log.Info("Gateway starting", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("Graceful shutdown failed, forcing close", zap.Error(err))
			httpServer.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Gateway stopped with error", zap.Error(err))
		return
	}
	log.Info("Gateway stopped")
}
