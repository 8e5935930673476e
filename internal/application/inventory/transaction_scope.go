package inventory

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
)

// TransactionScope provides transactional access to ledger repositories.
// Every repository handed to fn shares one database transaction, which is
// committed when fn returns nil and rolled back on error or panic.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all ledger repositories within a transaction.
type TransactionalRepositories interface {
	Positions() inventory.PositionRepository
	Movements() inventory.MovementRepository
	Adjustments() inventory.AdjustmentRepository
	Transfers() inventory.TransferRepository
	Allocations() inventory.AllocationRepository
	Receipts() inventory.ReceiptRepository
}

// NoOpTransactionScope runs fn against fixed repositories without a real
// transaction. Used where transactional behaviour is not under test.
type NoOpTransactionScope struct {
	positions   inventory.PositionRepository
	movements   inventory.MovementRepository
	adjustments inventory.AdjustmentRepository
	transfers   inventory.TransferRepository
	allocations inventory.AllocationRepository
	receipts    inventory.ReceiptRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope. Any repository may be nil.
func NewNoOpTransactionScope(
	positions inventory.PositionRepository,
	movements inventory.MovementRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		positions: positions,
		movements: movements,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) Positions() inventory.PositionRepository { return s.positions }
func (s *NoOpTransactionScope) Movements() inventory.MovementRepository { return s.movements }
func (s *NoOpTransactionScope) Adjustments() inventory.AdjustmentRepository { return s.adjustments }
func (s *NoOpTransactionScope) Transfers() inventory.TransferRepository { return s.transfers }
func (s *NoOpTransactionScope) Allocations() inventory.AllocationRepository { return s.allocations }
func (s *NoOpTransactionScope) Receipts() inventory.ReceiptRepository { return s.receipts }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
