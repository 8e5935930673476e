package inventory

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// stageMovement builds a movement record against the current position.
// Callers must hold the position lock and run inside a transaction.
func stageMovement(ctx context.Context, repos TransactionalRepositories, in inventory.MovementInput, now time.Time) (*inventory.MovementRecord, *inventory.InventoryPosition, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}
	if in.ReferenceNumber == "" {
		ref, err := freshReference(ctx, in.MovementType.ReferencePrefix(), now, repos.Movements().ExistsByReference)
		if err != nil {
			return nil, nil, err
		}
		in.ReferenceNumber = ref
	} else {
		exists, err := repos.Movements().ExistsByReference(ctx, in.ReferenceNumber)
		if err != nil {
			return nil, nil, err
		}
		if exists {
			return nil, nil, shared.Errorf(shared.ErrDuplicateReference,
				"reference number %s already exists", in.ReferenceNumber)
		}
	}
	key := inventory.PositionKey{ProductID: in.ProductID, WarehouseID: in.WarehouseID}
	position, err := repos.Positions().GetForUpdate(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	record, err := inventory.NewMovementRecord(in, position, now)
	if err != nil {
		return nil, nil, err
	}
	return record, position, nil
}

// commitMovement applies the record to the position unless it has to wait
// for approval, then appends it. Both writes share the caller's transaction.
func commitMovement(ctx context.Context, repos TransactionalRepositories, record *inventory.MovementRecord, position *inventory.InventoryPosition, preApproved bool, now time.Time) error {
	if !record.NeedsApproval(preApproved) {
		expected := position.Version
		if err := record.Apply(position, now); err != nil {
			return err
		}
		if _, err := repos.Positions().ApplyDelta(ctx, record.Key(), record.Delta(), expected); err != nil {
			return err
		}
	}
	if _, err := repos.Movements().Append(ctx, record); err != nil {
		return err
	}
	return nil
}

// postMovement stages and commits a movement in one step
func postMovement(ctx context.Context, repos TransactionalRepositories, in inventory.MovementInput, now time.Time) (*inventory.MovementRecord, error) {
	record, position, err := stageMovement(ctx, repos, in, now)
	if err != nil {
		return nil, err
	}
	if err := commitMovement(ctx, repos, record, position, in.PreApproved, now); err != nil {
		return nil, err
	}
	return record, nil
}

// applyPendingMovement approves a pending record and applies it to its
// freshly read position, re-stamping the before/after snapshot.
func applyPendingMovement(ctx context.Context, repos TransactionalRepositories, record *inventory.MovementRecord, approverID uuid.UUID, now time.Time) error {
	position, err := repos.Positions().GetForUpdate(ctx, record.Key())
	if err != nil {
		return err
	}
	expected := position.Version
	if err := record.Approve(approverID, now); err != nil {
		return err
	}
	if err := record.Apply(position, now); err != nil {
		return err
	}
	if _, err := repos.Positions().ApplyDelta(ctx, record.Key(), record.Delta(), expected); err != nil {
		return err
	}
	return repos.Movements().Save(ctx, record)
}

// eventBuffer collects domain events raised inside a transaction so they can
// be published once it commits. It is reset at the start of every attempt.
type eventBuffer struct {
	events []shared.DomainEvent
}

func (b *eventBuffer) reset() {
	b.events = b.events[:0]
}

func (b *eventBuffer) collect(aggregates ...shared.AggregateRoot) {
	for _, agg := range aggregates {
		if agg == nil {
			continue
		}
		b.events = append(b.events, agg.GetDomainEvents()...)
		agg.ClearDomainEvents()
	}
}

// publishEvents publishes domain events after commit. Publishing failures
// are logged and never undo the committed ledger change.
func publishEvents(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, events []shared.DomainEvent) {
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.Warn("Failed to publish ledger events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}
