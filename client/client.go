// Package client assembles the pieces in store, codec, and the transport
// packages into the ergonomic, single-object API most callers want: a
// Client bound to one application, one Dispatch transport, and one
// PropertyCodec, exposing Put/Get/Delete/RunInTransaction without asking
// the caller to thread those three through every call.
package client

import (
	"context"

	"go.uber.org/zap"

	"github.com/lodestar-dev/lodestore/codec"
	"github.com/lodestar-dev/lodestore/internal/config"
	"github.com/lodestar-dev/lodestore/store"
	"github.com/lodestar-dev/lodestore/transport/restdispatch"
)

// Client is a Google-Cloud-Datastore-style client bound to one application.
type Client struct {
	dispatch   store.Dispatch
	codec      store.PropertyCodec
	logger     *zap.Logger
	app        string
	maxRetries int
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithPropertyCodec overrides the default codec.Default.
func WithPropertyCodec(c store.PropertyCodec) Option {
	return func(cl *Client) { cl.codec = c }
}

// WithLogger attaches a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithDispatch overrides the transport, bypassing config-driven
// construction entirely. Primarily used in tests, with a storetest.Store.
func WithDispatch(d store.Dispatch) Option {
	return func(cl *Client) { cl.dispatch = d }
}

// New constructs a Client from a loaded Config. Unless WithDispatch
// supplies a transport, it builds a REST dispatch when config.Transport is
// rest or empty; any other transport, grpc included, returns a
// KindBadArgument error.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	cl := &Client{
		app:        cfg.ApplicationID,
		codec:      codec.Default{},
		logger:     zap.NewNop(),
		maxRetries: cfg.TransactionRetries,
	}
	for _, opt := range opts {
		opt(cl)
	}
	if cl.dispatch == nil {
		switch cfg.Transport {
		case config.TransportREST, "":
			cl.dispatch = restdispatch.New(cfg.Endpoint, cfg.ApplicationID,
				restdispatch.WithLogger(cl.logger),
				restdispatch.WithRequestsPerSecond(cfg.RequestsPerSecond))
		default:
			return nil, &store.Error{Kind: store.KindBadArgument, Message: "unsupported transport " + string(cfg.Transport)}
		}
	}
	return cl, nil
}

// App returns the application namespace this client is bound to.
func (c *Client) App() string { return c.app }

// IncompleteKey builds an incomplete key under this client's application.
func (c *Client) IncompleteKey(kind string, parent *store.Key) (*store.Key, error) {
	return store.NewIncompleteKey(c.app, kind, parent)
}

// IDKey builds a complete, numeric-id key under this client's application.
func (c *Client) IDKey(kind string, id int64, parent *store.Key) (*store.Key, error) {
	return store.NewIDKey(c.app, kind, id, parent)
}

// NameKey builds a complete, string-named key under this client's
// application.
func (c *Client) NameKey(kind, name string, parent *store.Key) (*store.Key, error) {
	return store.NewNameKey(c.app, kind, name, parent)
}

// NewQuery builds a query over entities of kind within this client's
// application.
func (c *Client) NewQuery(kind string) *store.Query {
	return store.NewQuery(c.app, kind)
}

// Put creates or updates a single entity.
func (c *Client) Put(ctx context.Context, e *store.Entity) (*store.Key, error) {
	return store.Put(ctx, c.dispatch, c.codec, e)
}

// PutMulti creates or updates entities.
func (c *Client) PutMulti(ctx context.Context, entities []*store.Entity) ([]*store.Key, error) {
	return store.PutMulti(ctx, c.dispatch, c.codec, entities)
}

// Get fetches the entity for key.
func (c *Client) Get(ctx context.Context, key *store.Key) (*store.Entity, error) {
	return store.Get(ctx, c.dispatch, c.codec, key)
}

// GetMulti fetches the entities for keys.
func (c *Client) GetMulti(ctx context.Context, keys []*store.Key) ([]*store.Entity, error) {
	return store.GetMulti(ctx, c.dispatch, c.codec, keys)
}

// Delete removes the entity for key.
func (c *Client) Delete(ctx context.Context, key *store.Key) error {
	return store.Delete(ctx, c.dispatch, c.codec, key)
}

// DeleteMulti removes the entities for keys.
func (c *Client) DeleteMulti(ctx context.Context, keys []*store.Key) error {
	return store.DeleteMulti(ctx, c.dispatch, c.codec, keys)
}

// RunInTransaction runs fn inside a transaction.
func (c *Client) RunInTransaction(ctx context.Context, fn store.TxFunc) error {
	maxRetries := c.maxRetries
	if maxRetries == 0 {
		maxRetries = store.TransactionRetries
	}
	return store.RunInTransactionWithRetries(ctx, c.dispatch, c.logger, maxRetries, fn)
}

// Run executes q and returns an iterator over its results.
func (c *Client) Run(ctx context.Context, q *store.Query) (*store.Iterator, error) {
	return q.Run(ctx, c.dispatch, c.codec)
}
