package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/CesarCrz/cEatssFB/pkg/config"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// OrphanedAccount is an identity-provider account that exists without a
// complete profile because provisioning failed after the account was created.
type OrphanedAccount struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UID          string    `gorm:"type:varchar(128);not null;index" json:"uid"`
	Email        string    `gorm:"type:varchar(255)" json:"email"`
	RestaurantID string    `gorm:"type:varchar(128)" json:"restaurant_id"`
	Step         string    `gorm:"type:varchar(32)" json:"step"`
	Reason       string    `gorm:"type:text" json:"reason"`
	RolledBack   bool      `json:"rolled_back"`
	CreatedAt    time.Time `json:"created_at"`
}

func (OrphanedAccount) TableName() string {
	return "orphaned_accounts"
}

// Ledger keeps orphaned accounts for operators to repair.
type Ledger interface {
	RecordOrphan(ctx context.Context, account *OrphanedAccount) error
	ListOrphans(ctx context.Context, limit int) ([]OrphanedAccount, error)
}

type GormLedger struct {
	db *gorm.DB
}

// OpenMySQLLedger connects to MySQL and migrates the ledger table.
func OpenMySQLLedger(cfg *config.MySQLConfig) (*GormLedger, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	// Auto migrate
	if err := db.AutoMigrate(&OrphanedAccount{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return NewGormLedger(db), nil
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) RecordOrphan(ctx context.Context, account *OrphanedAccount) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	if err := l.db.WithContext(ctx).Create(account).Error; err != nil {
		return fmt.Errorf("failed to record orphaned account: %w", err)
	}
	return nil
}

func (l *GormLedger) ListOrphans(ctx context.Context, limit int) ([]OrphanedAccount, error) {
	if limit <= 0 {
		limit = 50
	}
	var accounts []OrphanedAccount
	if err := l.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list orphaned accounts: %w", err)
	}
	return accounts, nil
}

func (l *GormLedger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
