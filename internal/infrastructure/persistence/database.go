package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erp/stockledger/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database owns the GORM handle of the ledger store
type Database struct {
	DB *gorm.DB
}

// Open connects to Postgres, sizes the pool from cfg and checks the
// connection once. A nil gormLogger silences GORM.
func Open(cfg *config.DatabaseConfig, gormLogger logger.Interface) (*Database, error) {
	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormLogger,
		// Every write already runs inside an explicit position transaction
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger database %s: %w", cfg.DBName, err)
	}

	d := &Database{DB: db}
	sqlDB, err := d.SQL()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(minutes(cfg.ConnMaxLifetime))
	sqlDB.SetConnMaxIdleTime(minutes(cfg.ConnMaxIdleTime))

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping ledger database %s: %w", cfg.DBName, err)
	}
	return d, nil
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// SQL returns the pool behind the GORM handle
func (d *Database) SQL() (*sql.DB, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("ledger database pool: %w", err)
	}
	return sqlDB, nil
}

// Ping satisfies the health check contract
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.SQL()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.SQL()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
