package persistence

import (
	"context"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Every repository handed to the callback is bound to the same *gorm.DB
// transaction handle.
type GormTransactionScope struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewGormTransactionScope creates a new GormTransactionScope. lockTimeout
// bounds row-lock waits on PostgreSQL; zero leaves the server default.
func NewGormTransactionScope(db *gorm.DB, lockTimeout time.Duration) *GormTransactionScope {
	return &GormTransactionScope{db: db, lockTimeout: lockTimeout}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepositories{db: tx, lockTimeout: s.lockTimeout})
	})
	return translateError(err)
}

// NewRepositories returns non-transactional repositories over db, used for
// reads outside a unit of work.
func NewRepositories(db *gorm.DB) appinv.TransactionalRepositories {
	return &gormRepositories{db: db}
}

// gormRepositories provides access to all ledger repositories over one handle.
type gormRepositories struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func (r *gormRepositories) Positions() inventory.PositionRepository {
	return NewGormPositionRepository(r.db).WithLockTimeout(r.lockTimeout)
}

func (r *gormRepositories) Movements() inventory.MovementRepository {
	return NewGormMovementRepository(r.db)
}

func (r *gormRepositories) Adjustments() inventory.AdjustmentRepository {
	return NewGormAdjustmentRepository(r.db)
}

func (r *gormRepositories) Transfers() inventory.TransferRepository {
	return NewGormTransferRepository(r.db)
}

func (r *gormRepositories) Allocations() inventory.AllocationRepository {
	return NewGormAllocationRepository(r.db)
}

func (r *gormRepositories) Receipts() inventory.ReceiptRepository {
	return NewGormReceiptRepository(r.db)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appinv.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormRepositories implements TransactionalRepositories
var _ appinv.TransactionalRepositories = (*gormRepositories)(nil)
