package store

import (
	"strconv"
	"strings"
	"unicode"
)

// Key identifies an entity's position in the store: an ordered path of
// kind/id-or-name steps rooted under an application namespace. A Key is
// complete when its final step carries an id or a name; incomplete keys
// (final step bare) may only be used to create new entities.
//
// Key is immutable once constructed; there is no exported way to mutate
// one in place, so callers share the pointer.
type Key struct {
	parent *Key
	app    string
	kind   string
	name   string
	id     int64
}

// App returns the application namespace this key belongs to.
func (k *Key) App() string { return k.app }

// Kind returns this key's kind (the type name of its final path step).
func (k *Key) Kind() string { return k.kind }

// ID returns the numeric id of this key's final step, or 0 if it is
// name-keyed or incomplete.
func (k *Key) ID() int64 { return k.id }

// Name returns the string name of this key's final step, or "" if it is
// id-keyed or incomplete.
func (k *Key) Name() string { return k.name }

// Parent returns the key one level up the path, or nil at the root.
func (k *Key) Parent() *Key { return k.parent }

// Complete reports whether every step on this key's path, including the
// final one, carries an id or a name.
func (k *Key) Complete() bool {
	for cur := k; cur != nil; cur = cur.parent {
		if cur.id == 0 && cur.name == "" {
			return false
		}
	}
	return true
}

// Root returns the topmost ancestor of this key: the path's first step,
// detached from the rest of the chain. Two keys sharing a Root belong to
// the same entity group.
func (k *Key) Root() *Key {
	cur := k
	for cur.parent != nil {
		cur = cur.parent
	}
	return &Key{app: cur.app, kind: cur.kind, id: cur.id, name: cur.name}
}

// EntityGroup is an alias for Root: the unit transactions serialize
// around, per the store's entity-group concurrency model.
func (k *Key) EntityGroup() *Key { return k.Root() }

// SameEntityGroup reports whether k and other share an application and
// root path step.
func (k *Key) SameEntityGroup(other *Key) bool {
	if k == nil || other == nil {
		return false
	}
	a, b := k.Root(), other.Root()
	return a.app == b.app && a.kind == b.kind && a.id == b.id && a.name == b.name
}

// Equal reports whether two keys denote the same path element by element.
func (k *Key) Equal(other *Key) bool {
	for a, b := k, other; ; a, b = a.parent, b.parent {
		if a == nil || b == nil {
			return a == b
		}
		if a.app != b.app || a.kind != b.kind || a.id != b.id || a.name != b.name {
			return false
		}
	}
}

// String renders a key as a compact, human-readable path, e.g.
// "app:/Parent,1/Child,"name"". Intended for logs and as the canonical
// form used internally wherever a key must serve as a map key.
func (k *Key) String() string {
	var steps []string
	for cur := k; cur != nil; cur = cur.parent {
		var step string
		switch {
		case cur.name != "":
			step = cur.kind + `,"` + cur.name + `"`
		case cur.id != 0:
			step = cur.kind + "," + strconv.FormatInt(cur.id, 10)
		default:
			step = cur.kind + ",*"
		}
		steps = append([]string{step}, steps...)
	}
	return k.app + ":/" + strings.Join(steps, "/")
}

func isDigitString(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// NewIncompleteKey constructs a key whose final step has neither an id nor
// a name, suitable only as an argument to Put, which assigns an id on
// insert. parent may be nil for a root-level key, in which case app must
// be non-empty; when parent is non-nil, app may be "" to inherit the
// parent's application.
func NewIncompleteKey(app, kind string, parent *Key) (*Key, error) {
	return newKey(app, kind, 0, "", parent)
}

// NewIDKey constructs a complete, numeric-id key.
func NewIDKey(app, kind string, id int64, parent *Key) (*Key, error) {
	if id == 0 {
		return nil, newErr(KindBadKey, "id must be non-zero")
	}
	return newKey(app, kind, id, "", parent)
}

// NewNameKey constructs a complete, string-named key. Names consisting
// entirely of digits are rejected: they are indistinguishable on the wire
// from an id and the store's original implementation reserves them.
func NewNameKey(app, kind, name string, parent *Key) (*Key, error) {
	if name == "" {
		return nil, newErr(KindBadKey, "name must be non-empty")
	}
	if isDigitString(name) {
		return nil, newErr(KindBadKey, "name %q must not consist entirely of digits", name)
	}
	return newKey(app, kind, 0, name, parent)
}

func newKey(app, kind string, id int64, name string, parent *Key) (*Key, error) {
	if kind == "" {
		return nil, newErr(KindBadKey, "kind must be non-empty")
	}
	if parent != nil {
		if !parent.Complete() {
			return nil, newErr(KindBadKey, "parent key %s is incomplete", parent)
		}
		if app == "" {
			app = parent.app
		} else if app != parent.app {
			return nil, newErr(KindBadKey, "app %q does not match parent app %q", app, parent.app)
		}
	}
	if app == "" {
		return nil, newErr(KindBadKey, "app must be non-empty for a root key")
	}
	return &Key{parent: parent, app: app, kind: kind, id: id, name: name}, nil
}

// path returns this key's steps from root to leaf.
func (k *Key) path() []*Key {
	var steps []*Key
	for cur := k; cur != nil; cur = cur.parent {
		steps = append(steps, cur)
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return steps
}

// wireKeyElement and WireKey model the over-the-wire key shape (§6):
// App plus an ordered Path of Kind/Id/Name steps.
type wireKeyElement struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// WireKey is the transport-agnostic wire representation of a Key, shared
// by every Dispatch implementation.
type WireKey struct {
	App  string           `json:"app"`
	Path []wireKeyElement `json:"path"`
}

// ToWire serializes k to its wire representation.
func (k *Key) ToWire() WireKey {
	steps := k.path()
	wk := WireKey{App: steps[0].app, Path: make([]wireKeyElement, len(steps))}
	for i, s := range steps {
		wk.Path[i] = wireKeyElement{Kind: s.kind, ID: s.id, Name: s.name}
	}
	return wk
}

// KeyFromWire reconstructs a *Key from its wire representation.
func KeyFromWire(wk WireKey) (*Key, error) {
	if len(wk.Path) == 0 {
		return nil, newErr(KindBadKey, "wire key has an empty path")
	}
	var cur *Key
	for _, step := range wk.Path {
		if step.Kind == "" {
			return nil, newErr(KindBadKey, "wire key path element has empty kind")
		}
		cur = &Key{parent: cur, app: wk.App, kind: step.Kind, id: step.ID, name: step.Name}
	}
	return cur, nil
}
