package inventory

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
)

// referenceAttempts bounds how many generated references are tried
const referenceAttempts = 5

var generateReference = inventory.GenerateReference

// freshReference generates references until taken reports one as free
func freshReference(ctx context.Context, prefix string, at time.Time, taken func(context.Context, string) (bool, error)) (string, error) {
	for range referenceAttempts {
		ref := generateReference(prefix, at)
		exists, err := taken(ctx, ref)
		if err != nil {
			return "", err
		}
		if !exists {
			return ref, nil
		}
	}
	return "", shared.Errorf(shared.ErrDuplicateReference,
		"no free %s reference after %d attempts", prefix, referenceAttempts)
}
