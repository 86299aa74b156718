package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDKeyRejectsZeroID(t *testing.T) {
	_, err := NewIDKey("app", "Kind", 0, nil)
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, KindBadKey, serr.Kind)
}

func TestNewNameKeyRejectsAllDigitNames(t *testing.T) {
	_, err := NewNameKey("app", "Kind", "12345", nil)
	require.Error(t, err)
}

func TestNewKeyRequiresApp(t *testing.T) {
	_, err := NewIncompleteKey("", "Kind", nil)
	require.Error(t, err)
}

func TestChildKeyInheritsParentApp(t *testing.T) {
	parent, err := NewIDKey("app", "Parent", 1, nil)
	require.NoError(t, err)
	child, err := NewNameKey("", "Child", "leaf", parent)
	require.NoError(t, err)
	assert.Equal(t, "app", child.App())
}

func TestChildKeyRejectsMismatchedApp(t *testing.T) {
	parent, err := NewIDKey("app", "Parent", 1, nil)
	require.NoError(t, err)
	_, err = NewNameKey("other-app", "Child", "leaf", parent)
	require.Error(t, err)
}

func TestIncompleteParentRejected(t *testing.T) {
	parent, err := NewIncompleteKey("app", "Parent", nil)
	require.NoError(t, err)
	_, err = NewIDKey("", "Child", 1, parent)
	require.Error(t, err)
}

func TestCompleteRequiresWholePathComplete(t *testing.T) {
	complete, err := NewIDKey("app", "Parent", 1, nil)
	require.NoError(t, err)
	child, err := NewIDKey("", "Child", 2, complete)
	require.NoError(t, err)
	assert.True(t, child.Complete())
}

func TestEntityGroupIsRootOfPath(t *testing.T) {
	root, err := NewIDKey("app", "Parent", 1, nil)
	require.NoError(t, err)
	mid, err := NewIDKey("", "Middle", 2, root)
	require.NoError(t, err)
	leaf, err := NewIDKey("", "Leaf", 3, mid)
	require.NoError(t, err)

	group := leaf.EntityGroup()
	assert.Equal(t, "Parent", group.Kind())
	assert.Equal(t, int64(1), group.ID())
	assert.Nil(t, group.Parent())
}

func TestSameEntityGroup(t *testing.T) {
	root, err := NewIDKey("app", "Parent", 1, nil)
	require.NoError(t, err)
	a, err := NewIDKey("", "Child", 2, root)
	require.NoError(t, err)
	b, err := NewIDKey("", "Child", 3, root)
	require.NoError(t, err)
	other, err := NewIDKey("app", "Parent", 9, nil)
	require.NoError(t, err)

	assert.True(t, a.SameEntityGroup(b))
	assert.False(t, a.SameEntityGroup(other))
}

func TestKeyEqual(t *testing.T) {
	a, err := NewIDKey("app", "Kind", 1, nil)
	require.NoError(t, err)
	b, err := NewIDKey("app", "Kind", 1, nil)
	require.NoError(t, err)
	c, err := NewIDKey("app", "Kind", 2, nil)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestKeyWireRoundTrip(t *testing.T) {
	root, err := NewIDKey("app", "Parent", 1, nil)
	require.NoError(t, err)
	leaf, err := NewNameKey("", "Child", "leaf-name", root)
	require.NoError(t, err)

	wk := leaf.ToWire()
	back, err := KeyFromWire(wk)
	require.NoError(t, err)
	assert.True(t, leaf.Equal(back))
}

func TestKeyFromWireRejectsEmptyPath(t *testing.T) {
	_, err := KeyFromWire(WireKey{App: "app"})
	require.Error(t, err)
}
