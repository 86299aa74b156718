package store

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// transactionID returns the id of the transaction scoped to ctx, or "" if
// ctx carries no transaction. When a transaction is active, every key
// touched is pinned to that transaction's entity group.
func transactionID(ctx context.Context, keys ...*Key) (string, error) {
	ts, ok := fromContext(ctx)
	if !ok {
		return "", nil
	}
	for _, k := range keys {
		if err := ts.pin(k); err != nil {
			return "", err
		}
	}
	return ts.id, nil
}

// requireSameEntityGroup rejects a batch whose keys span more than one
// entity group. Put and Delete enforce this unconditionally, regardless of
// whether a transaction is active; Get does not (§4.7, §9).
func requireSameEntityGroup(keys []*Key) error {
	if len(keys) < 2 {
		return nil
	}
	first := keys[0]
	for _, k := range keys[1:] {
		if !first.SameEntityGroup(k) {
			return newErr(KindBadRequest, "batch spans more than one entity group: %s and %s", first, k)
		}
	}
	return nil
}

// Put creates or updates a single entity and returns its definitive key.
// If e's key is incomplete, the store assigns an id and the returned key
// reflects it.
func Put(ctx context.Context, d Dispatch, codec PropertyCodec, e *Entity) (*Key, error) {
	keys, err := PutMulti(ctx, d, codec, []*Entity{e})
	if err != nil {
		return nil, err
	}
	return keys[0], nil
}

// PutMulti creates or updates entities and returns their definitive keys
// in the same order (shape-preservation: a slice in, a same-length slice
// out).
func PutMulti(ctx context.Context, d Dispatch, codec PropertyCodec, entities []*Entity) ([]*Key, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	keys := make([]*Key, len(entities))
	for i, e := range entities {
		keys[i] = e.Key()
	}
	if err := requireSameEntityGroup(keys); err != nil {
		return nil, err
	}
	txID, err := transactionID(ctx, keys...)
	if err != nil {
		return nil, err
	}

	wireEntities := make([]WireEntity, len(entities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, e := range entities {
		i, e := i, e
		g.Go(func() error {
			_ = gctx
			we, err := e.ToWire(codec)
			if err != nil {
				return err
			}
			wireEntities[i] = we
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp, err := d.Put(ctx, PutRequest{TransactionID: txID, Entities: wireEntities})
	if err != nil {
		return nil, classifyWireError(err)
	}
	if len(resp.Keys) != len(entities) {
		return nil, newErr(KindInternal, "dispatch returned %d keys for %d entities", len(resp.Keys), len(entities))
	}
	out := make([]*Key, len(resp.Keys))
	for i, wk := range resp.Keys {
		k, err := KeyFromWire(wk)
		if err != nil {
			return nil, err
		}
		out[i] = k
	}
	return out, nil
}

// Get fetches the entity for key. If no entity exists for key, Get returns
// an error with Kind KindEntityNotFound.
func Get(ctx context.Context, d Dispatch, codec PropertyCodec, key *Key) (*Entity, error) {
	entities, err := GetMulti(ctx, d, codec, []*Key{key})
	if err != nil {
		return nil, err
	}
	if entities[0] == nil {
		return nil, newErr(KindEntityNotFound, "no entity for key %s", key)
	}
	return entities[0], nil
}

// GetMulti fetches entities for keys, returning a same-length slice
// (shape-preservation). A key with no stored entity yields a nil entry at
// that position rather than an error, matching the wire service's
// found/missing split (§6).
func GetMulti(ctx context.Context, d Dispatch, codec PropertyCodec, keys []*Key) ([]*Entity, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	txID, err := transactionID(ctx, keys...)
	if err != nil {
		return nil, err
	}
	wireKeys := make([]WireKey, len(keys))
	for i, k := range keys {
		wireKeys[i] = k.ToWire()
	}
	resp, err := d.Get(ctx, GetRequest{TransactionID: txID, Keys: wireKeys})
	if err != nil {
		return nil, classifyWireError(err)
	}
	if len(resp.Found) != len(keys) {
		return nil, newErr(KindInternal, "dispatch returned %d results for %d keys", len(resp.Found), len(keys))
	}
	out := make([]*Entity, len(keys))
	for i, we := range resp.Found {
		if we == nil {
			continue
		}
		e, err := EntityFromWire(*we, codec)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// Delete removes the entity for key. Deleting a key with no stored entity
// is not an error.
func Delete(ctx context.Context, d Dispatch, codec PropertyCodec, key *Key) error {
	return DeleteMulti(ctx, d, codec, []*Key{key})
}

// DeleteMulti removes the entities for keys.
func DeleteMulti(ctx context.Context, d Dispatch, codec PropertyCodec, keys []*Key) error {
	if len(keys) == 0 {
		return nil
	}
	if err := requireSameEntityGroup(keys); err != nil {
		return err
	}
	txID, err := transactionID(ctx, keys...)
	if err != nil {
		return err
	}
	wireKeys := make([]WireKey, len(keys))
	for i, k := range keys {
		if !k.Complete() {
			return newErr(KindBadKey, "cannot delete incomplete key %s", k)
		}
		wireKeys[i] = k.ToWire()
	}
	if err := d.Delete(ctx, DeleteRequest{TransactionID: txID, Keys: wireKeys}); err != nil {
		return classifyWireError(err)
	}
	return nil
}
