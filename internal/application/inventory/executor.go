package inventory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"go.uber.org/zap"
)

// PositionLocker serialises work on a single position key across goroutines
// and, depending on the backend, across processes.
type PositionLocker interface {
	// Lock blocks until the key is held or timeout elapses. A timeout
	// returns shared.ErrLockTimeout.
	Lock(ctx context.Context, key string, timeout time.Duration) (unlock func(), err error)
}

// RetryPolicy bounds how concurrency failures are retried
type RetryPolicy struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	LockTimeout time.Duration
}

// DefaultRetryPolicy returns 3 retries with 20ms..500ms jittered backoff and
// a 5 second lock timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  3,
		BaseDelay:   20 * time.Millisecond,
		MaxDelay:    500 * time.Millisecond,
		LockTimeout: 5 * time.Second,
	}
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	return b
}

// PositionExecutor runs a unit of work while holding the locks of every
// position it touches, inside one transaction, retrying transient
// concurrency failures.
type PositionExecutor struct {
	scope  TransactionScope
	locker PositionLocker
	policy RetryPolicy
	logger *zap.Logger
}

// NewPositionExecutor creates a PositionExecutor. A nil locker disables
// application-level locking and leaves concurrency control to the
// version check in the ledger store.
func NewPositionExecutor(scope TransactionScope, locker PositionLocker, policy RetryPolicy, logger *zap.Logger) *PositionExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.LockTimeout <= 0 {
		policy.LockTimeout = DefaultRetryPolicy().LockTimeout
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return &PositionExecutor{
		scope:  scope,
		locker: locker,
		policy: policy,
		logger: logger,
	}
}

// Execute acquires the locks for keys in a stable order, runs fn in a
// transaction and releases the locks. ErrConcurrentModification and
// ErrLockTimeout are retried up to the policy bound; anything else is
// returned on first occurrence.
func (e *PositionExecutor) Execute(ctx context.Context, op string, keys []inventory.PositionKey, fn func(repos TransactionalRepositories) error) error {
	names := lockNames(keys)
	attempt := 0

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := e.attempt(ctx, names, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if !shared.IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		if attempt <= e.policy.MaxRetries {
			e.logger.Warn("Retrying ledger operation after concurrency failure",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Strings("positions", names),
				zap.Error(err),
			)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(e.policy.backOff()),
		backoff.WithMaxTries(uint(e.policy.MaxRetries+1)),
	)
	if err != nil && shared.IsRetryable(err) {
		e.logger.Warn("Ledger operation gave up after retries",
			zap.String("operation", op),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
	}
	return unwrapPermanent(err)
}

func (e *PositionExecutor) attempt(ctx context.Context, names []string, fn func(repos TransactionalRepositories) error) error {
	if e.locker != nil {
		unlocks := make([]func(), 0, len(names))
		defer func() {
			for i := len(unlocks) - 1; i >= 0; i-- {
				unlocks[i]()
			}
		}()
		for _, name := range names {
			unlock, err := e.locker.Lock(ctx, name, e.policy.LockTimeout)
			if err != nil {
				return err
			}
			unlocks = append(unlocks, unlock)
		}
	}
	return e.scope.Execute(ctx, fn)
}

// lockNames returns the distinct lock names for keys in sorted order, so
// multi-position operations never deadlock against each other.
func lockNames(keys []inventory.PositionKey) []string {
	seen := make(map[string]struct{}, len(keys))
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		name := k.String()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	return err
}
