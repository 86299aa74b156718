// Package store implements a client-side access layer for a hierarchical,
// schemaless, transactional entity store: keys, entities, queries, an
// iterator over query results, and a transaction coordinator, all speaking
// to a pluggable Dispatch transport through a pluggable PropertyCodec.
package store

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind identifies one of the closed set of error categories a store
// operation can fail with.
type ErrorKind int

const (
	// KindBadArgument marks a malformed call (wrong type, nil where required).
	KindBadArgument ErrorKind = iota
	// KindBadProperty marks an invalid property name.
	KindBadProperty
	// KindBadValue marks a value a PropertyCodec could not validate.
	KindBadValue
	// KindBadFilter marks a malformed FilterExpr string or filter combination.
	KindBadFilter
	// KindBadQuery marks a Query violating one of its structural invariants.
	KindBadQuery
	// KindBadKey marks a malformed or incomplete Key where a complete one is required.
	KindBadKey
	// KindBadRequest mirrors a BAD_REQUEST response from the wire service.
	KindBadRequest
	// KindEntityNotFound marks a Get against a key with no stored entity.
	KindEntityNotFound
	// KindTransactionFailed marks a transaction that could not commit.
	KindTransactionFailed
	// KindNeedIndex mirrors a NEED_INDEX response: the query shape requires
	// a composite index the store does not have.
	KindNeedIndex
	// KindTimeout mirrors a TIMEOUT response from the wire service.
	KindTimeout
	// KindInternal marks an unexpected failure, wire-level or local.
	KindInternal
	// KindRollback marks the RunInTransaction rollback sentinel; it never
	// escapes RunInTransaction as an error, see TxCoordinator.
	KindRollback
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadArgument:
		return "bad-argument"
	case KindBadProperty:
		return "bad-property"
	case KindBadValue:
		return "bad-value"
	case KindBadFilter:
		return "bad-filter"
	case KindBadQuery:
		return "bad-query"
	case KindBadKey:
		return "bad-key"
	case KindBadRequest:
		return "bad-request"
	case KindEntityNotFound:
		return "entity-not-found"
	case KindTransactionFailed:
		return "transaction-failed"
	case KindNeedIndex:
		return "need-index"
	case KindTimeout:
		return "timeout"
	case KindInternal:
		return "internal-error"
	case KindRollback:
		return "rollback-sentinel"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by every exported operation in
// this package. Its Kind is stable API: callers branch on it with errors.As
// and the Kind field, never on the message text.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// newErr builds a *Error without a wrapped cause.
func newErr(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// wrapErr builds a *Error around an unexpected failure, attaching a stack
// trace to the cause so operators can tell "the store rejected this" apart
// from "our own code misbehaved" in logs.
func wrapErr(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: errors.WithStack(cause)}
}

// IsNotFound reports whether err is an entity-not-found Error.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindEntityNotFound
}

// rollbackSentinel is the distinguished value RunInTransaction recognizes
// as "the caller asked to abort cleanly" rather than a real failure.
var rollbackSentinel = &Error{Kind: KindRollback, Message: "transaction rolled back"}

// Rollback returns the sentinel error a transaction function returns to
// abort its transaction without that abort surfacing as a RunInTransaction
// error. RunInTransaction recognizes this exact value (via errors.Is),
// rolls back, and returns nil.
func Rollback() error { return rollbackSentinel }

// IsRollback reports whether err is the Rollback sentinel.
func IsRollback(err error) bool {
	return errors.Is(err, rollbackSentinel)
}
