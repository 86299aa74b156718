package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// TransactionRetries bounds the number of times RunInTransaction retries a
// transaction function after the wire service reports a concurrent
// transaction conflict (§4.6).
const TransactionRetries = 10

// txKey is the unexported context key a transaction's state is attached
// under. Scoping through context, rather than a goroutine-local stack,
// means a transaction's scope follows a context.Context exactly as far as
// the caller threads it, with no global registry to leak or race on.
type txKey struct{}

// txState is the per-attempt bookkeeping a TxCoordinator attaches to a
// context for the duration of one transaction function invocation.
type txState struct {
	id          string
	d           Dispatch
	pinnedGroup string // String() of the entity group this transaction first touched
}

// Transaction has no exported constructor, and nothing in this package
// constructs one. RunInTransaction scopes Put/Get/Delete through the
// context it passes to fn, which carries a txState under txKey, not
// through a Transaction value.
type Transaction struct {
	ctx   context.Context
	state *txState
}

// fromContext retrieves the active transaction, if any, from ctx.
func fromContext(ctx context.Context) (*txState, bool) {
	ts, ok := ctx.Value(txKey{}).(*txState)
	return ts, ok
}

// pin records the entity group key k's first operation touches, and
// rejects a later operation against a different entity group: a single
// transaction may only span one entity group (§4.6, §5).
func (ts *txState) pin(k *Key) error {
	group := k.EntityGroup().String()
	if ts.pinnedGroup == "" {
		ts.pinnedGroup = group
		return nil
	}
	if ts.pinnedGroup != group {
		return newErr(KindBadRequest, "transaction already pinned to entity group %s, cannot also touch %s", ts.pinnedGroup, group)
	}
	return nil
}

// TxFunc is a function run under RunInTransaction. Returning Rollback()
// aborts the transaction cleanly with no error from RunInTransaction;
// returning any other non-nil error aborts the transaction and that error
// propagates from RunInTransaction; returning nil commits.
type TxFunc func(ctx context.Context) error

// RunInTransaction runs fn inside a transaction, retrying up to
// TransactionRetries times if the wire service reports the transaction
// lost a write race (§4.6). Operations performed with the context passed
// to fn are automatically transaction-scoped; RunInTransaction rejects
// being called again with an already transaction-scoped ctx, since this
// store does not support nested transactions.
func RunInTransaction(ctx context.Context, d Dispatch, logger *zap.Logger, fn TxFunc) error {
	return RunInTransactionWithRetries(ctx, d, logger, TransactionRetries, fn)
}

// RunInTransactionWithRetries behaves like RunInTransaction but bounds
// retries at maxRetries instead of the TransactionRetries default,
// letting a caller honor a configured retry budget (§6).
func RunInTransactionWithRetries(ctx context.Context, d Dispatch, logger *zap.Logger, maxRetries int, fn TxFunc) error {
	if _, nested := fromContext(ctx); nested {
		return newErr(KindBadRequest, "transactions cannot be nested")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := bo.NextBackOff()
			logger.Debug("retrying transaction after concurrent-transaction conflict",
				zap.Int("attempt", attempt), zap.Duration("wait", wait))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return wrapErr(KindTimeout, ctx.Err(), "transaction retry canceled")
			}
		}

		begun, err := d.BeginTransaction(ctx)
		if err != nil {
			return classifyWireError(err)
		}
		ts := &txState{id: begun.TransactionID, d: d}
		txCtx := context.WithValue(ctx, txKey{}, ts)

		fnErr := fn(txCtx)
		if IsRollback(fnErr) {
			if rbErr := d.Rollback(ctx, ts.id); rbErr != nil {
				logger.Warn("rollback after explicit Rollback() failed", zap.Error(rbErr))
			}
			return nil
		}
		if fnErr != nil {
			if rbErr := d.Rollback(ctx, ts.id); rbErr != nil {
				logger.Warn("rollback after transaction function error failed", zap.Error(rbErr))
			}
			return fnErr
		}

		if err := d.Commit(ctx, ts.id); err != nil {
			if isConcurrentTransaction(err) {
				lastErr = classifyWireError(err)
				continue
			}
			return classifyWireError(err)
		}
		return nil
	}
	return wrapErr(KindTransactionFailed, lastErr, "transaction did not commit after %d retries", maxRetries)
}
