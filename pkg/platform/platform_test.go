package platform

import (
	"context"
	"testing"
	"time"

	"github.com/CesarCrz/cEatssFB/pkg/config"
	"github.com/CesarCrz/cEatssFB/pkg/events"
	"github.com/CesarCrz/cEatssFB/pkg/identity"
	"github.com/CesarCrz/cEatssFB/pkg/repository"
	"go.uber.org/zap"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Store:    config.StoreConfig{Driver: config.DriverMemory},
		Identity: config.IdentityConfig{Driver: config.DriverMemory, TokenSecret: "secret", TokenTTL: time.Hour},
	}
}

func TestOpen_MemoryDrivers(t *testing.T) {
	p, err := Open(context.Background(), memoryConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close()

	if _, ok := p.Store.(*repository.MemoryStore); !ok {
		t.Errorf("expected memory store, got %T", p.Store)
	}
	if _, ok := p.Identity.(*identity.MemoryProvider); !ok {
		t.Errorf("expected memory provider, got %T", p.Identity)
	}
	if _, ok := p.Auditor.(repository.NopAuditor); !ok {
		t.Errorf("expected no-op auditor, got %T", p.Auditor)
	}
	if _, ok := p.Publisher.(events.NopPublisher); !ok {
		t.Errorf("expected no-op publisher, got %T", p.Publisher)
	}
	if p.Ledger != nil || p.Discovery != nil || p.Audit != nil {
		t.Error("expected optional adapters to be absent")
	}
}

func TestOpen_MissingSecret(t *testing.T) {
	cfg := memoryConfig()
	cfg.Identity.TokenSecret = ""
	if _, err := Open(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Error("expected error without token secret")
	}
}

func TestClose_ReleasesStore(t *testing.T) {
	p, err := Open(context.Background(), memoryConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Close()

	if err := p.Store.Set(context.Background(), "restaurants/R1", map[string]string{"name": "x"}); err != repository.ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}

func TestOpen_LocalIdentityUsesStore(t *testing.T) {
	cfg := memoryConfig()
	cfg.Identity.Driver = config.DriverLocal
	p, err := Open(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close()

	uid, err := p.Identity.CreateUser(context.Background(), "staff@r1.com", "secret1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	children, err := p.Store.List(context.Background(), repository.Query{Path: repository.AccountsPath()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := children[uid]; !ok {
		t.Errorf("expected account %s in the store, got %v", uid, children)
	}
}
