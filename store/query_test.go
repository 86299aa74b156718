package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryRejectsMultipleInequalityProperties(t *testing.T) {
	q := NewQuery("app", "Greeting")
	q, err := q.Filter("age >", int64(10), testCodec{})
	require.NoError(t, err)

	_, err = q.Filter("height >", int64(10), testCodec{})
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, KindBadFilter, serr.Kind)
}

func TestQueryOrderMustLeadWithInequalityProperty(t *testing.T) {
	q := NewQuery("app", "Greeting")
	q, err := q.Filter("age >", int64(10), testCodec{})
	require.NoError(t, err)

	_, err = q.Order("name")
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, KindBadFilter, serr.Kind)
}

func TestQueryFilterAfterOrderMustLeadWithInequalityProperty(t *testing.T) {
	q, err := NewQuery("app", "Greeting").Order("name")
	require.NoError(t, err)
	_, err = q.Filter("age >", int64(10), testCodec{})
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, KindBadFilter, serr.Kind)
}

func TestQueryOrderLeadingWithInequalityPropertyIsValid(t *testing.T) {
	q := NewQuery("app", "Greeting")
	q, err := q.Filter("age >", int64(10), testCodec{})
	require.NoError(t, err)

	q, err = q.Order("age")
	require.NoError(t, err)
	q, err = q.Order("name")
	require.NoError(t, err)

	require.NoError(t, q.validate())
}

func TestQueryFilterRejectsListValueWithMoreThanOneElement(t *testing.T) {
	q := NewQuery("app", "Greeting")
	_, err := q.Filter("tags =", []any{"a", "b"}, testCodec{})
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, KindBadFilter, serr.Kind)
}

func TestQueryFilterAcceptsSingleElementListValue(t *testing.T) {
	q := NewQuery("app", "Greeting")
	_, err := q.Filter("tags =", []any{"a"}, testCodec{})
	require.NoError(t, err)
}

func TestQueryFilterRejectsRawValue(t *testing.T) {
	q := NewQuery("app", "Greeting")
	_, err := q.Filter("bio =", []byte("long text"), testCodec{})
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, KindBadValue, serr.Kind)
}

func TestQueryFilterRejectsKeyUnderInequality(t *testing.T) {
	q := NewQuery("app", "Greeting")
	k := mustKey(t, "Parent", 1)
	_, err := q.Filter("parent >", k, testCodec{})
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, KindBadFilter, serr.Kind)
}

func TestQueryFilterAllowsKeyUnderEquality(t *testing.T) {
	q := NewQuery("app", "Greeting")
	k := mustKey(t, "Parent", 1)
	_, err := q.Filter("parent =", k, testCodec{})
	require.NoError(t, err)
}

func TestQueryBuildersAreImmutable(t *testing.T) {
	base := NewQuery("app", "Greeting")
	withFilter, err := base.Filter("age >", int64(10), testCodec{})
	require.NoError(t, err)

	assert.Empty(t, base.filters)
	assert.Len(t, withFilter.filters, 1)
}

func TestQueryHint(t *testing.T) {
	q, err := NewQuery("app", "Greeting").Order("name")
	require.NoError(t, err)
	assert.Equal(t, HintOrderFirst, q.hint())

	parent := mustKey(t, "Parent", 1)
	q = NewQuery("app", "Greeting").Ancestor(parent)
	assert.Equal(t, HintAncestorFirst, q.hint())

	q, err = NewQuery("app", "Greeting").Filter("age >", int64(1), testCodec{})
	require.NoError(t, err)
	assert.Equal(t, HintFilterFirst, q.hint())

	assert.Equal(t, HintNone, NewQuery("app", "Greeting").hint())
}

func TestQueryFiltersSerializeInFirstSeenOrder(t *testing.T) {
	q := NewQuery("app", "Greeting")
	q, err := q.Filter("b =", int64(1), testCodec{})
	require.NoError(t, err)
	q, err = q.Filter("a =", int64(2), testCodec{})
	require.NoError(t, err)
	q, err = q.Filter("b =", int64(3), testCodec{})
	require.NoError(t, err)

	req, err := q.toWire(testCodec{}, "")
	require.NoError(t, err)
	require.Len(t, req.Filters, 3)
	assert.Equal(t, "b", req.Filters[0].Name)
	assert.Equal(t, "a", req.Filters[1].Name)
	assert.Equal(t, "b", req.Filters[2].Name)
}
