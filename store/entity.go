package store

import "sort"

// Entity is a schemaless bag of named properties attached to a Key. Its
// zero value is not usable; construct one with NewEntity. Copying an Entity
// by value (*e) compiles, but the copy shares the original's property map,
// so the two alias each other's property storage. Clone returns an
// independent copy.
type Entity struct {
	key   *Key
	props map[string]any
	order []string // insertion order, for stable wire serialization
}

// NewEntity creates an empty entity for key. key need not be complete;
// Put assigns an id to an incomplete key on insert.
func NewEntity(key *Key) *Entity {
	return &Entity{key: key, props: make(map[string]any)}
}

// Key returns the entity's key.
func (e *Entity) Key() *Key { return e.key }

// Set assigns value to name, validating it against codec. value may be a
// slice, representing a multi-valued property; a nil slice or an empty
// slice clears the property the same as Delete.
func (e *Entity) Set(codec PropertyCodec, name string, value any) error {
	if name == "" {
		return newErr(KindBadProperty, "property name must be non-empty")
	}
	if values, ok := asSlice(value); ok {
		for _, v := range values {
			if err := codec.Validate(v); err != nil {
				return wrapErr(KindBadValue, err, "property %q", name)
			}
		}
		if len(values) == 0 {
			e.Delete(name)
			return nil
		}
	} else if value != nil {
		if err := codec.Validate(value); err != nil {
			return wrapErr(KindBadValue, err, "property %q", name)
		}
	}
	if _, exists := e.props[name]; !exists {
		e.order = append(e.order, name)
	}
	e.props[name] = value
	return nil
}

// Get returns the value stored for name and whether it was present.
func (e *Entity) Get(name string) (any, bool) {
	v, ok := e.props[name]
	return v, ok
}

// Contains reports whether name has an assigned value.
func (e *Entity) Contains(name string) bool {
	_, ok := e.props[name]
	return ok
}

// Delete removes name from the entity. Deleting an absent property is a
// no-op, not an error.
func (e *Entity) Delete(name string) {
	if _, ok := e.props[name]; !ok {
		return
	}
	delete(e.props, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Names returns the entity's property names in insertion order.
func (e *Entity) Names() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Clone returns an independent copy of e: a new backing map, safe to
// mutate without affecting the original.
func (e *Entity) Clone() *Entity {
	clone := &Entity{key: e.key, props: make(map[string]any, len(e.props)), order: append([]string(nil), e.order...)}
	for k, v := range e.props {
		clone.props[k] = v
	}
	return clone
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case nil:
		return nil, false
	default:
		return nil, false
	}
}

// ToWire flattens e into its wire form using codec. List-valued properties
// expand to one WireProperty per element, each marked Multiple, matching
// the store's original wire convention for repeated properties. Properties
// are emitted in lexicographic order of name (§4.2), not insertion order.
func (e *Entity) ToWire(codec PropertyCodec) (WireEntity, error) {
	we := WireEntity{Key: e.key.ToWire()}
	names := append([]string(nil), e.order...)
	sort.Strings(names)
	for _, name := range names {
		v := e.props[name]
		if values, ok := asSlice(v); ok {
			for _, elem := range values {
				wv, err := codec.Encode(elem)
				if err != nil {
					return WireEntity{}, wrapErr(KindBadValue, err, "property %q", name)
				}
				we.Properties = append(we.Properties, WireProperty{
					Name: name, Value: wv, Raw: codec.Raw(elem), Multiple: true,
				})
			}
			continue
		}
		if v == nil {
			we.Properties = append(we.Properties, WireProperty{Name: name, Value: WireValue{Kind: WireNull}})
			continue
		}
		wv, err := codec.Encode(v)
		if err != nil {
			return WireEntity{}, wrapErr(KindBadValue, err, "property %q", name)
		}
		we.Properties = append(we.Properties, WireProperty{Name: name, Value: wv, Raw: codec.Raw(v)})
	}
	return we, nil
}

// EntityFromWire reconstructs an Entity from its wire form using codec.
// Wire properties sharing a name and Multiple=true are regrouped into a
// single []any property, inverting ToWire's expansion. The entity's key
// must be complete: a store-provided entity always has one.
func EntityFromWire(we WireEntity, codec PropertyCodec) (*Entity, error) {
	key, err := KeyFromWire(we.Key)
	if err != nil {
		return nil, err
	}
	if !key.Complete() {
		return nil, newErr(KindBadKey, "wire entity key %s is incomplete", key)
	}
	e := NewEntity(key)
	multiValued := make(map[string][]any)
	var multiOrder []string
	for _, wp := range we.Properties {
		var v any
		if wp.Value.Kind != WireNull {
			v, err = codec.Decode(wp.Value)
			if err != nil {
				return nil, wrapErr(KindBadValue, err, "property %q", wp.Name)
			}
		}
		if wp.Multiple {
			if _, seen := multiValued[wp.Name]; !seen {
				multiOrder = append(multiOrder, wp.Name)
			}
			multiValued[wp.Name] = append(multiValued[wp.Name], v)
			continue
		}
		if _, exists := e.props[wp.Name]; !exists {
			e.order = append(e.order, wp.Name)
		}
		e.props[wp.Name] = v
	}
	for _, name := range multiOrder {
		e.props[name] = multiValued[name]
		e.order = append(e.order, name)
	}
	return e, nil
}
