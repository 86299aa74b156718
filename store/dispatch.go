package store

import "context"

// WireErrorCode mirrors the closed set of error codes the wire service
// returns, distinct from the richer client-side ErrorKind taxonomy.
type WireErrorCode int

const (
	WireOK WireErrorCode = iota
	WireBadRequest
	WireConcurrentTransaction
	WireInternalError
	WireNeedIndex
	WireTimeout
)

// WireError is the error shape a Dispatch implementation returns for a
// failed RPC.
type WireError struct {
	Code    WireErrorCode
	Message string
}

func (e *WireError) Error() string { return e.Message }

// PutRequest/PutResponse carry one Put RPC: upsert each entity, returning
// the definitive (now-complete) key for each, in the same order.
type PutRequest struct {
	TransactionID string
	Entities      []WireEntity
}

type PutResponse struct {
	Keys []WireKey
}

// GetRequest/GetResponse carry one Get RPC (called "Lookup" on the wire in
// the service this package's conventions are grounded on).
type GetRequest struct {
	TransactionID string
	Keys          []WireKey
}

type GetResponse struct {
	// Found holds, in Keys order, the entity found for each key, or nil
	// if that key had no stored entity.
	Found []*WireEntity
}

// DeleteRequest carries one Delete RPC.
type DeleteRequest struct {
	TransactionID string
	Keys          []WireKey
}

// wireFilter/wireOrder/RunQueryRequest/RunQueryResponse carry one RunQuery
// RPC: the serialized form of a Query (§4.4), plus the server's cursor and
// "more results" signal.
type wireFilter struct {
	Name  string
	Op    filterOperator
	Value WireValue
}

type wireOrder struct {
	Name string
	Desc bool
}

type RunQueryRequest struct {
	TransactionID string
	App           string
	Kind          string
	Ancestor      *WireKey
	Filters       []wireFilter
	Orders        []wireOrder
	Limit         int // 0 means unbounded
	Offset        int
	StartCursor   string
	KeysOnly      bool
}

// MoreResults signals whether a query batch is the last one.
type MoreResults int

const (
	MoreResultsUnspecified MoreResults = iota
	NotFinished
	NoMoreResults
)

type RunQueryResponse struct {
	Entities    []WireEntity
	EndCursor   string
	MoreResults MoreResults
}

// NextRequest/NextResponse carry one Next RPC: continue a server-side
// cursor for count entities.
type NextRequest struct {
	Cursor string
	Count  int
}

type NextResponse struct {
	Entities    []WireEntity
	EndCursor   string
	MoreResults MoreResults
}

// CountRequest/CountResponse carry one Count RPC.
type CountRequest struct {
	TransactionID string
	App           string
	Kind          string
	Ancestor      *WireKey
	Filters       []wireFilter
}

type CountResponse struct {
	Count int64
}

// BeginTransactionResponse carries the id a new transaction dispatches
// subsequent calls under.
type BeginTransactionResponse struct {
	TransactionID string
}

// Dispatch is the abstract RPC channel every store operation funnels
// through (§6). A concrete implementation owns everything transport
// specific — wire encoding, retries, authentication — and this package
// never assumes anything about it beyond this interface.
type Dispatch interface {
	Put(ctx context.Context, req PutRequest) (PutResponse, error)
	Get(ctx context.Context, req GetRequest) (GetResponse, error)
	Delete(ctx context.Context, req DeleteRequest) error
	RunQuery(ctx context.Context, req RunQueryRequest) (RunQueryResponse, error)
	Next(ctx context.Context, req NextRequest) (NextResponse, error)
	Count(ctx context.Context, req CountRequest) (CountResponse, error)
	BeginTransaction(ctx context.Context) (BeginTransactionResponse, error)
	Commit(ctx context.Context, transactionID string) error
	Rollback(ctx context.Context, transactionID string) error
}

// classifyWireError maps a WireError to the client-side ErrorKind taxonomy.
func classifyWireError(err error) *Error {
	we, ok := err.(*WireError)
	if !ok {
		return wrapErr(KindInternal, err, "dispatch failed")
	}
	switch we.Code {
	case WireBadRequest:
		return newErr(KindBadRequest, "%s", we.Message)
	case WireConcurrentTransaction:
		return newErr(KindTransactionFailed, "%s", we.Message)
	case WireNeedIndex:
		return newErr(KindNeedIndex, "%s", we.Message)
	case WireTimeout:
		return newErr(KindTimeout, "%s", we.Message)
	default:
		return newErr(KindInternal, "%s", we.Message)
	}
}

// isConcurrentTransaction reports whether err is the wire service's signal
// that a transaction lost a write race and may be retried.
func isConcurrentTransaction(err error) bool {
	we, ok := err.(*WireError)
	return ok && we.Code == WireConcurrentTransaction
}
