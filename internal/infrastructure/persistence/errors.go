package persistence

import (
	"errors"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL error codes the ledger reacts to
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// translateError maps driver and GORM errors onto ledger domain errors.
// Unknown errors are returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.Errorf(shared.ErrDuplicateReference, "%s", err.Error())
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable:
			return shared.Errorf(shared.ErrLockTimeout, "row lock not available: %s", pgErr.Message)
		case pgSerializationFailure, pgDeadlockDetected:
			return shared.Errorf(shared.ErrConcurrentModification, "%s", pgErr.Message)
		case pgUniqueViolation:
			return shared.Errorf(shared.ErrDuplicateReference, "%s", pgErr.Detail)
		}
	}
	return err
}

func concurrentModification(entity string) error {
	return shared.Errorf(shared.ErrConcurrentModification, "%s was modified by another transaction", entity)
}
