package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestar-dev/lodestore/codec"
	"github.com/lodestar-dev/lodestore/store"
	"github.com/lodestar-dev/lodestore/storetest"
)

func newGreeting(t *testing.T, id int64, message string) *store.Entity {
	t.Helper()
	k, err := store.NewIDKey("app", "Greeting", id, nil)
	require.NoError(t, err)
	e := store.NewEntity(k)
	require.NoError(t, e.Set(codec.Default{}, "message", message))
	return e
}

func TestPutGetDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := storetest.New()
	c := codec.Default{}

	k, err := store.NewIncompleteKey("app", "Greeting", nil)
	require.NoError(t, err)
	e := store.NewEntity(k)
	require.NoError(t, e.Set(c, "message", "hello"))

	putKey, err := store.Put(ctx, d, c, e)
	require.NoError(t, err)
	assert.True(t, putKey.Complete())

	got, err := store.Get(ctx, d, c, putKey)
	require.NoError(t, err)
	v, _ := got.Get("message")
	assert.Equal(t, "hello", v)

	require.NoError(t, store.Delete(ctx, d, c, putKey))

	_, err = store.Get(ctx, d, c, putKey)
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))
}

func TestGetMultiReturnsNilForMissingKeys(t *testing.T) {
	ctx := context.Background()
	d := storetest.New()
	c := codec.Default{}

	present := newGreeting(t, 1, "hi")
	_, err := store.Put(ctx, d, c, present)
	require.NoError(t, err)

	missingKey, err := store.NewIDKey("app", "Greeting", 999, nil)
	require.NoError(t, err)

	entities, err := store.GetMulti(ctx, d, c, []*store.Key{present.Key(), missingKey})
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.NotNil(t, entities[0])
	assert.Nil(t, entities[1])
}

func TestRunInTransactionCommits(t *testing.T) {
	ctx := context.Background()
	d := storetest.New()
	c := codec.Default{}

	k, err := store.NewIDKey("app", "Counter", 1, nil)
	require.NoError(t, err)

	err = store.RunInTransaction(ctx, d, nil, func(txCtx context.Context) error {
		e := store.NewEntity(k)
		return e.Set(c, "value", int64(1))
	})
	// the transaction function above never calls Put, so nothing should be
	// persisted; this exercises that a transaction with no writes commits
	// cleanly with no side effects.
	require.NoError(t, err)

	_, err = store.Get(ctx, d, c, k)
	assert.True(t, store.IsNotFound(err))
}

func TestRunInTransactionPutThenGet(t *testing.T) {
	ctx := context.Background()
	d := storetest.New()
	c := codec.Default{}

	k, err := store.NewIDKey("app", "Counter", 1, nil)
	require.NoError(t, err)

	err = store.RunInTransaction(ctx, d, nil, func(txCtx context.Context) error {
		e := store.NewEntity(k)
		if err := e.Set(c, "value", int64(42)); err != nil {
			return err
		}
		_, err := store.Put(txCtx, d, c, e)
		return err
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, d, c, k)
	require.NoError(t, err)
	v, _ := got.Get("value")
	assert.Equal(t, int64(42), v)
}

func TestRunInTransactionRollbackSentinel(t *testing.T) {
	ctx := context.Background()
	d := storetest.New()
	c := codec.Default{}
	k, err := store.NewIDKey("app", "Counter", 1, nil)
	require.NoError(t, err)

	err = store.RunInTransaction(ctx, d, nil, func(txCtx context.Context) error {
		e := store.NewEntity(k)
		_ = e.Set(c, "value", int64(1))
		if _, err := store.Put(txCtx, d, c, e); err != nil {
			return err
		}
		return store.Rollback()
	})
	require.NoError(t, err)

	_, err = store.Get(ctx, d, c, k)
	assert.True(t, store.IsNotFound(err))
}

func TestRunInTransactionPropagatesFunctionError(t *testing.T) {
	ctx := context.Background()
	d := storetest.New()

	sentinel := &store.Error{Kind: store.KindBadArgument, Message: "boom"}
	err := store.RunInTransaction(ctx, d, nil, func(txCtx context.Context) error {
		return sentinel
	})
	require.Error(t, err)
	assert.Equal(t, sentinel, err)
}

func TestRunInTransactionRejectsNesting(t *testing.T) {
	ctx := context.Background()
	d := storetest.New()

	err := store.RunInTransaction(ctx, d, nil, func(txCtx context.Context) error {
		return store.RunInTransaction(txCtx, d, nil, func(context.Context) error { return nil })
	})
	require.Error(t, err)
}

func TestRunInTransactionRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	d := storetest.New()
	c := codec.Default{}
	d.ForceConflicts(2)

	k, err := store.NewIDKey("app", "Counter", 1, nil)
	require.NoError(t, err)

	attempts := 0
	err = store.RunInTransaction(ctx, d, nil, func(txCtx context.Context) error {
		attempts++
		e := store.NewEntity(k)
		_ = e.Set(c, "value", int64(attempts))
		_, err := store.Put(txCtx, d, c, e)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts) // 2 forced conflicts, then a commit that sticks
}

func TestRunInTransactionExhaustsRetries(t *testing.T) {
	ctx := context.Background()
	d := storetest.New()
	d.ForceConflicts(store.TransactionRetries + 1)

	err := store.RunInTransaction(ctx, d, nil, func(txCtx context.Context) error { return nil })
	require.Error(t, err)
	var serr *store.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, store.KindTransactionFailed, serr.Kind)
}

func TestQueryRunAndIteratorNext(t *testing.T) {
	ctx := context.Background()
	d := storetest.New()
	c := codec.Default{}

	for i := int64(1); i <= 5; i++ {
		_, err := store.Put(ctx, d, c, newGreeting(t, i, "hi"))
		require.NoError(t, err)
	}

	q := store.NewQuery("app", "Greeting")
	it, err := q.Run(ctx, d, c)
	require.NoError(t, err)

	count := 0
	for {
		_, err := it.Next(ctx)
		if err == store.ErrIteratorDone {
			break
		}
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 5, count)
}

func TestIteratorForbidsInterleavingNextAndNextBatch(t *testing.T) {
	ctx := context.Background()
	d := storetest.New()
	c := codec.Default{}
	_, err := store.Put(ctx, d, c, newGreeting(t, 1, "hi"))
	require.NoError(t, err)

	q := store.NewQuery("app", "Greeting")
	it, err := q.Run(ctx, d, c)
	require.NoError(t, err)

	_, err = it.Next(ctx)
	require.NoError(t, err)

	_, err = it.NextBatch(ctx, 10)
	require.Error(t, err)
}

func TestIteratorBatchesAcrossBufferSize(t *testing.T) {
	ctx := context.Background()
	d := storetest.New()
	c := codec.Default{}

	const total = 45
	for i := int64(1); i <= total; i++ {
		_, err := store.Put(ctx, d, c, newGreeting(t, i, "hi"))
		require.NoError(t, err)
	}

	q := store.NewQuery("app", "Greeting")
	it, err := q.Run(ctx, d, c)
	require.NoError(t, err)

	fetched := 0
	batches := 0
	for {
		batch, err := it.NextBatch(ctx, store.BufferSize)
		if err == store.ErrIteratorDone {
			break
		}
		require.NoError(t, err)
		fetched += len(batch)
		batches++
	}
	assert.Equal(t, total, fetched)
	assert.Equal(t, 3, batches) // 20 + 20 + 5
}

func TestQueryCount(t *testing.T) {
	ctx := context.Background()
	d := storetest.New()
	c := codec.Default{}
	for i := int64(1); i <= 4; i++ {
		_, err := store.Put(ctx, d, c, newGreeting(t, i, "hi"))
		require.NoError(t, err)
	}
	n, err := store.NewQuery("app", "Greeting").Count(ctx, d, c)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestQueryAncestorFilter(t *testing.T) {
	ctx := context.Background()
	d := storetest.New()
	c := codec.Default{}

	parentA, err := store.NewIDKey("app", "Parent", 1, nil)
	require.NoError(t, err)
	parentB, err := store.NewIDKey("app", "Parent", 2, nil)
	require.NoError(t, err)

	for i, parent := range []*store.Key{parentA, parentA, parentB} {
		childKey, err := store.NewIDKey("", "Child", int64(i+1), parent)
		require.NoError(t, err)
		e := store.NewEntity(childKey)
		require.NoError(t, e.Set(c, "n", int64(i)))
		_, err = store.Put(ctx, d, c, e)
		require.NoError(t, err)
	}

	results, err := store.NewQuery("app", "Child").Ancestor(parentA).GetAll(ctx, d, c)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestPutMultiRejectsCrossEntityGroupBatchOutsideTransaction(t *testing.T) {
	ctx := context.Background()
	d := storetest.New()
	c := codec.Default{}

	a := newGreeting(t, 1, "one")
	b := newGreeting(t, 2, "two") // distinct top-level key: a different entity group

	_, err := store.PutMulti(ctx, d, c, []*store.Entity{a, b})
	require.Error(t, err)
	var serr *store.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, store.KindBadRequest, serr.Kind)
}

func TestDeleteMultiRejectsCrossEntityGroupBatchOutsideTransaction(t *testing.T) {
	ctx := context.Background()
	d := storetest.New()
	c := codec.Default{}

	keyA, err := store.NewIDKey("app", "Greeting", 1, nil)
	require.NoError(t, err)
	keyB, err := store.NewIDKey("app", "Greeting", 2, nil)
	require.NoError(t, err)

	err = store.DeleteMulti(ctx, d, c, []*store.Key{keyA, keyB})
	require.Error(t, err)
	var serr *store.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, store.KindBadRequest, serr.Kind)
}
