package codec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestar-dev/lodestore/codec"
	"github.com/lodestar-dev/lodestore/store"
)

func TestDefaultRawClassification(t *testing.T) {
	c := codec.Default{}
	assert.True(t, c.Raw([]byte("blob")))
	assert.True(t, c.Raw(codec.Text("long text")))
	assert.False(t, c.Raw("short string"))
	assert.False(t, c.Raw(int64(1)))
}

func TestDefaultEncodeDecodeRoundTrip(t *testing.T) {
	c := codec.Default{}
	now := time.Now().UTC().Truncate(time.Second)

	cases := []any{
		"hello",
		int64(42),
		3.14,
		true,
		now,
		[]byte("blob-data"),
	}
	for _, v := range cases {
		wv, err := c.Encode(v)
		require.NoError(t, err)
		back, err := c.Decode(wv)
		require.NoError(t, err)
		assert.Equal(t, v, back)
	}
}

func TestDefaultEncodeKeyReference(t *testing.T) {
	c := codec.Default{}
	k, err := store.NewIDKey("app", "Kind", 1, nil)
	require.NoError(t, err)

	wv, err := c.Encode(k)
	require.NoError(t, err)
	back, err := c.Decode(wv)
	require.NoError(t, err)

	backKey, ok := back.(*store.Key)
	require.True(t, ok)
	assert.True(t, k.Equal(backKey))
}

func TestDefaultRejectsUnsupportedType(t *testing.T) {
	c := codec.Default{}
	err := c.Validate(struct{ X int }{})
	require.Error(t, err)
}

func TestTextEncodesAsString(t *testing.T) {
	c := codec.Default{}
	wv, err := c.Encode(codec.Text("long form"))
	require.NoError(t, err)
	assert.Equal(t, store.WireString, wv.Kind)
	assert.Equal(t, "long form", wv.Str)
}
