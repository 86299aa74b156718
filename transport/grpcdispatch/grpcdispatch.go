// Package grpcdispatch implements store.Dispatch over a gRPC channel. Wire
// messages are the same Go structs package store already defines; rather
// than compiling a .proto schema, calls are marshaled through a
// hand-registered JSON encoding.Codec (see codec.go), which grpc-go
// supports natively via grpc.CallContentSubtype.
package grpcdispatch

import (
	"context"
	"fmt"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpc_retry "github.com/grpc-ecosystem/go-grpc-middleware/retry"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/lodestar-dev/lodestore/store"
)

const serviceName = "lodestore.datastore.v1.Datastore"

// Dispatch is a store.Dispatch implementation speaking gRPC.
type Dispatch struct {
	conn *grpc.ClientConn
	app  string
}

// New dials target and returns a Dispatch for application app. Call
// Close when done to release the underlying connection.
func New(target, app string, logger *zap.Logger) (*Dispatch, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	chained := grpc_middleware.ChainUnaryClient(
		grpc_zap.UnaryClientInterceptor(logger),
		grpc_retry.UnaryClientInterceptor(grpc_retry.WithMax(3)),
	)
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
		grpc.WithUnaryInterceptor(chained),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Dispatch{conn: conn, app: app}, nil
}

// Close releases the underlying gRPC connection.
func (d *Dispatch) Close() error { return d.conn.Close() }

func method(name string) string {
	return "/" + serviceName + "/" + name
}

func (d *Dispatch) invoke(ctx context.Context, name string, req, resp any) error {
	if err := d.conn.Invoke(ctx, method(name), req, resp); err != nil {
		return &store.WireError{Code: store.WireInternalError, Message: err.Error()}
	}
	return nil
}

// Put implements store.Dispatch.
func (d *Dispatch) Put(ctx context.Context, req store.PutRequest) (store.PutResponse, error) {
	var out store.PutResponse
	err := d.invoke(ctx, "Put", &req, &out)
	return out, err
}

// Get implements store.Dispatch.
func (d *Dispatch) Get(ctx context.Context, req store.GetRequest) (store.GetResponse, error) {
	var out store.GetResponse
	err := d.invoke(ctx, "Get", &req, &out)
	return out, err
}

// Delete implements store.Dispatch.
func (d *Dispatch) Delete(ctx context.Context, req store.DeleteRequest) error {
	return d.invoke(ctx, "Delete", &req, &struct{}{})
}

// RunQuery implements store.Dispatch.
func (d *Dispatch) RunQuery(ctx context.Context, req store.RunQueryRequest) (store.RunQueryResponse, error) {
	var out store.RunQueryResponse
	err := d.invoke(ctx, "RunQuery", &req, &out)
	return out, err
}

// Next implements store.Dispatch.
func (d *Dispatch) Next(ctx context.Context, req store.NextRequest) (store.NextResponse, error) {
	var out store.NextResponse
	err := d.invoke(ctx, "Next", &req, &out)
	return out, err
}

// Count implements store.Dispatch.
func (d *Dispatch) Count(ctx context.Context, req store.CountRequest) (store.CountResponse, error) {
	var out store.CountResponse
	err := d.invoke(ctx, "Count", &req, &out)
	return out, err
}

// BeginTransaction implements store.Dispatch.
func (d *Dispatch) BeginTransaction(ctx context.Context) (store.BeginTransactionResponse, error) {
	var out store.BeginTransactionResponse
	err := d.invoke(ctx, "BeginTransaction", &struct{}{}, &out)
	return out, err
}

// Commit implements store.Dispatch.
func (d *Dispatch) Commit(ctx context.Context, transactionID string) error {
	req := struct {
		TransactionID string `json:"transactionId"`
	}{transactionID}
	return d.invoke(ctx, "Commit", &req, &struct{}{})
}

// Rollback implements store.Dispatch.
func (d *Dispatch) Rollback(ctx context.Context, transactionID string) error {
	req := struct {
		TransactionID string `json:"transactionId"`
	}{transactionID}
	return d.invoke(ctx, "Rollback", &req, &struct{}{})
}

var _ store.Dispatch = (*Dispatch)(nil)
