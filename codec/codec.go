// Package codec provides the default store.PropertyCodec: a concrete
// mapping between Go values and the store's wire value vocabulary,
// grounded in the same stringValue/integerValue/doubleValue/booleanValue/
// timestampValue/blobValue/keyValue vocabulary a real entity-store wire
// protocol uses.
package codec

import (
	"fmt"
	"time"

	"github.com/lodestar-dev/lodestore/store"
)

// Text marks a string as long-form, raw (unindexed) text, distinct from a
// plain string, which is indexed. Use Text for values too large or free
// form to be usefully compared or sorted on.
type Text string

// Default is the store.PropertyCodec every facade operation uses unless a
// caller supplies another. It supports string, Text, int64/int, float64,
// bool, time.Time, []byte, and *store.Key.
type Default struct{}

var _ store.PropertyCodec = Default{}

// Validate reports whether v is one of the supported scalar types.
func (Default) Validate(v any) error {
	switch v.(type) {
	case string, Text, int64, int, float64, bool, time.Time, []byte, *store.Key:
		return nil
	case nil:
		return nil
	default:
		return fmt.Errorf("codec: unsupported property value type %T", v)
	}
}

// Raw reports whether v belongs to the raw (unindexed) storage class:
// opaque blobs and long text are raw; everything else is indexed.
func (Default) Raw(v any) bool {
	switch v.(type) {
	case []byte, Text:
		return true
	default:
		return false
	}
}

// Encode converts a validated scalar value to its wire form.
func (Default) Encode(v any) (store.WireValue, error) {
	switch val := v.(type) {
	case string:
		return store.WireValue{Kind: store.WireString, Str: val}, nil
	case Text:
		return store.WireValue{Kind: store.WireString, Str: string(val)}, nil
	case int64:
		return store.WireValue{Kind: store.WireInteger, Int: val}, nil
	case int:
		return store.WireValue{Kind: store.WireInteger, Int: int64(val)}, nil
	case float64:
		return store.WireValue{Kind: store.WireDouble, Dbl: val}, nil
	case bool:
		return store.WireValue{Kind: store.WireBoolean, Bool: val}, nil
	case time.Time:
		return store.WireValue{Kind: store.WireTimestamp, Time: val.UTC()}, nil
	case []byte:
		return store.WireValue{Kind: store.WireBlob, Blob: append([]byte(nil), val...)}, nil
	case *store.Key:
		wk := val.ToWire()
		return store.WireValue{Kind: store.WireKeyRef, KeyRef: &wk}, nil
	case nil:
		return store.WireValue{Kind: store.WireNull}, nil
	default:
		return store.WireValue{}, fmt.Errorf("codec: unsupported property value type %T", v)
	}
}

// Decode converts a wire value back to a Go value. Long-form text and
// blobs are not distinguished on decode by length, only by wire kind: a
// WireString always decodes to a plain string, since the raw-vs-indexed
// split matters only when encoding a Go value the caller supplied.
func (Default) Decode(wv store.WireValue) (any, error) {
	switch wv.Kind {
	case store.WireNull:
		return nil, nil
	case store.WireString:
		return wv.Str, nil
	case store.WireInteger:
		return wv.Int, nil
	case store.WireDouble:
		return wv.Dbl, nil
	case store.WireBoolean:
		return wv.Bool, nil
	case store.WireTimestamp:
		return wv.Time, nil
	case store.WireBlob:
		return append([]byte(nil), wv.Blob...), nil
	case store.WireKeyRef:
		if wv.KeyRef == nil {
			return nil, fmt.Errorf("codec: keyValue missing key")
		}
		return store.KeyFromWire(*wv.KeyRef)
	default:
		return nil, fmt.Errorf("codec: unrecognized wire value kind %v", wv.Kind)
	}
}
