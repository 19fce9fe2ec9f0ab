// Package platform opens the infrastructure adapters selected by the
// configuration and releases them on shutdown.
package platform

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/CesarCrz/cEatssFB/pkg/config"
	"github.com/CesarCrz/cEatssFB/pkg/discovery"
	"github.com/CesarCrz/cEatssFB/pkg/events"
	"github.com/CesarCrz/cEatssFB/pkg/identity"
	"github.com/CesarCrz/cEatssFB/pkg/repository"
	"go.uber.org/zap"
)

// Platform holds the opened adapters. Optional adapters that are not
// configured, or fail to connect, are replaced by no-ops or left nil.
type Platform struct {
	Store     repository.Store
	Identity  identity.Provider
	Auditor   repository.Auditor
	Publisher events.Publisher
	// Ledger is nil unless MySQL is configured.
	Ledger *repository.GormLedger
	// Audit is nil unless MongoDB is configured.
	Audit *repository.MongoRepository
	// Discovery is nil unless etcd is configured.
	Discovery *discovery.ServiceDiscovery

	closers []func() error
	logger  *zap.Logger
}

// Open connects every adapter. The store and identity provider are
// required; the rest degrade with a warning.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Platform, error) {
	p := &Platform{
		Auditor:   repository.NopAuditor{},
		Publisher: events.NopPublisher{},
		logger:    logger,
	}

	var app *firebase.App
	if cfg.UsesFirebase() {
		var err error
		app, err = repository.NewFirebaseApp(ctx, &cfg.Firebase)
		if err != nil {
			return nil, err
		}
		logger.Info("Firebase initialized",
			zap.String("project_id", cfg.Firebase.ProjectID),
			zap.Bool("emulator", cfg.Firebase.Emulator.Enabled))
	}

	if err := p.openStore(ctx, cfg, app); err != nil {
		p.Close()
		return nil, err
	}
	if err := p.openIdentity(ctx, cfg, app); err != nil {
		p.Close()
		return nil, err
	}

	p.openAudit(cfg)
	p.openLedger(cfg)
	p.openPublisher(cfg)
	p.openDiscovery(cfg)

	return p, nil
}

func (p *Platform) openStore(ctx context.Context, cfg *config.Config, app *firebase.App) error {
	switch cfg.Store.Driver {
	case config.DriverFirebase:
		store, err := repository.NewFirebaseStore(ctx, app, cfg.Store.PollInterval, p.logger.Named("store"))
		if err != nil {
			return err
		}
		p.Store = store
	case config.DriverRedis:
		store := repository.NewRedisStore(&cfg.Redis, p.logger.Named("store"))
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			store.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		p.Store = store
	default:
		p.Store = repository.NewMemoryStore()
	}
	p.closers = append(p.closers, p.Store.Close)
	p.logger.Info("Store ready", zap.String("driver", cfg.Store.Driver))
	return nil
}

func (p *Platform) openIdentity(ctx context.Context, cfg *config.Config, app *firebase.App) error {
	switch cfg.Identity.Driver {
	case config.DriverFirebase:
		provider, err := identity.NewFirebaseProvider(ctx, app, &cfg.Firebase, p.logger.Named("identity"))
		if err != nil {
			return err
		}
		p.Identity = provider
	case config.DriverLocal:
		provider, err := identity.NewMemoryProvider(cfg.Identity.TokenSecret, cfg.Identity.TokenTTL,
			identity.WithAccountStore(p.Store))
		if err != nil {
			return err
		}
		p.Identity = provider
	default:
		provider, err := identity.NewMemoryProvider(cfg.Identity.TokenSecret, cfg.Identity.TokenTTL)
		if err != nil {
			return err
		}
		p.Identity = provider
		p.logger.Warn("Identity accounts are kept in this process only")
	}
	p.logger.Info("Identity provider ready", zap.String("driver", cfg.Identity.Driver))
	return nil
}

func (p *Platform) openAudit(cfg *config.Config) {
	if cfg.MongoDB.URI == "" {
		return
	}
	repo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		p.logger.Warn("MongoDB connection failed, continuing without audit log", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := repo.Ping(ctx); err != nil {
		p.logger.Warn("MongoDB ping failed, continuing without audit log", zap.Error(err))
		repo.Close(ctx)
		return
	}

	p.Audit = repo
	p.Auditor = repo
	p.closers = append(p.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return repo.Close(ctx)
	})
	p.logger.Info("MongoDB audit log connected", zap.String("database", cfg.MongoDB.Database))
}

func (p *Platform) openLedger(cfg *config.Config) {
	if !cfg.MySQL.Enabled() {
		return
	}
	ledger, err := repository.OpenMySQLLedger(&cfg.MySQL)
	if err != nil {
		p.logger.Warn("MySQL connection failed, continuing without orphan ledger", zap.Error(err))
		return
	}
	p.Ledger = ledger
	p.closers = append(p.closers, ledger.Close)
	p.logger.Info("MySQL orphan ledger connected", zap.String("host", cfg.MySQL.Host))
}

func (p *Platform) openPublisher(cfg *config.Config) {
	if cfg.RabbitMQ.URL == "" {
		return
	}
	pub, err := events.NewRabbitPublisher(&cfg.RabbitMQ, p.logger.Named("events"))
	if err != nil {
		p.logger.Warn("RabbitMQ connection failed, continuing without order events", zap.Error(err))
		return
	}
	p.Publisher = pub
	p.closers = append(p.closers, pub.Close)
}

func (p *Platform) openDiscovery(cfg *config.Config) {
	if len(cfg.Etcd.Endpoints) == 0 {
		return
	}
	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, p.logger.Named("discovery"))
	if err != nil {
		p.logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		return
	}
	p.Discovery = sd
	p.closers = append(p.closers, sd.Close)
}

// Close releases the adapters in reverse order of opening.
func (p *Platform) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			p.logger.Warn("Failed to close adapter", zap.Error(err))
		}
	}
	p.closers = nil
}
