package store

import "sort"

// The functions in this file exist solely so that a Dispatch fake (see
// package storetest) built outside this package can evaluate a query
// against an in-memory entity set without reimplementing filter/order
// comparison semantics. They are not part of the wire protocol and no
// production Dispatch implementation needs them.

// CompareWireValues orders two wire values of the same kind, returning a
// negative number, zero, or a positive number as a < b, a == b, a > b.
// Values of differing kinds compare by Kind, so they sort together but
// never equal.
func CompareWireValues(a, b WireValue) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	switch a.Kind {
	case WireString:
		return compareStrings(a.Str, b.Str)
	case WireInteger:
		return compareInt64(a.Int, b.Int)
	case WireDouble:
		return compareFloat64(a.Dbl, b.Dbl)
	case WireBoolean:
		return compareBool(a.Bool, b.Bool)
	case WireTimestamp:
		return compareInt64(a.Time.UnixNano(), b.Time.UnixNano())
	case WireBlob:
		return compareBytes(a.Blob, b.Blob)
	case WireKeyRef:
		return compareStrings(keyRefString(a.KeyRef), keyRefString(b.KeyRef))
	default:
		return 0
	}
}

func keyRefString(wk *WireKey) string {
	if wk == nil {
		return ""
	}
	k, err := KeyFromWire(*wk)
	if err != nil {
		return ""
	}
	return k.String()
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

func satisfiesFilter(we WireEntity, f wireFilter) bool {
	for _, p := range we.Properties {
		if p.Name != f.Name {
			continue
		}
		c := CompareWireValues(p.Value, f.Value)
		switch f.Op {
		case opEqual:
			if c == 0 {
				return true
			}
		case opLessThan:
			if c < 0 {
				return true
			}
		case opLessThanOrEqual:
			if c <= 0 {
				return true
			}
		case opGreaterThan:
			if c > 0 {
				return true
			}
		case opGreaterThanOrEqual:
			if c >= 0 {
				return true
			}
		}
	}
	return false
}

func keyHasAncestor(k *Key, ancestor *Key) bool {
	for cur := k; cur != nil; cur = cur.Parent() {
		if cur.Equal(ancestor) {
			return true
		}
	}
	return false
}

// EntityMatchesQuery reports whether we belongs to kind and app, lies
// under ancestor if one is set, and satisfies every filter in filters.
func EntityMatchesQuery(we WireEntity, app, kind string, ancestor *WireKey, filters []wireFilter) bool {
	if we.Key.App != app {
		return false
	}
	if len(we.Key.Path) == 0 || we.Key.Path[len(we.Key.Path)-1].Kind != kind {
		return false
	}
	if ancestor != nil {
		k, err := KeyFromWire(we.Key)
		if err != nil {
			return false
		}
		a, err := KeyFromWire(*ancestor)
		if err != nil {
			return false
		}
		if !keyHasAncestor(k, a) {
			return false
		}
	}
	for _, f := range filters {
		if !satisfiesFilter(we, f) {
			return false
		}
	}
	return true
}

func propertyValue(we WireEntity, name string) (WireValue, bool) {
	for _, p := range we.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return WireValue{}, false
}

// SortEntities orders entities in place according to orders.
func SortEntities(entities []WireEntity, orders []wireOrder) {
	sort.SliceStable(entities, func(i, j int) bool {
		for _, o := range orders {
			vi, oki := propertyValue(entities[i], o.Name)
			vj, okj := propertyValue(entities[j], o.Name)
			if !oki || !okj {
				continue
			}
			c := CompareWireValues(vi, vj)
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
