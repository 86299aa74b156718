package store

import "context"

// ScanHint names which part of a query shape is cheapest to evaluate
// first, as derived by Query.hint. It is not part of RunQueryRequest:
// toWire does not serialize it, so no Dispatch implementation receives it.
type ScanHint int

const (
	HintNone ScanHint = iota
	HintOrderFirst
	HintAncestorFirst
	HintFilterFirst
)

// Query builds a request against entities of one kind, optionally scoped
// to an ancestor, filtered, and ordered. A Query is reusable and
// immutable-by-convention: every builder method returns a new *Query
// rather than mutating the receiver, so a base query can be specialized
// along multiple branches safely.
type Query struct {
	app          string
	kind         string
	ancestor     *Key
	filters      []filter
	filterNames  []string // insertion order of first-seen filter names, for stable wire serialization
	orders       []wireOrder
	limit        int
	offset       int
	startCursor  string
	keysOnly     bool
	distinctOn   []string
}

// NewQuery creates a query over entities of kind within app.
func NewQuery(app, kind string) *Query {
	return &Query{app: app, kind: kind}
}

func (q *Query) clone() *Query {
	c := *q
	c.filters = append([]filter(nil), q.filters...)
	c.filterNames = append([]string(nil), q.filterNames...)
	c.orders = append([]wireOrder(nil), q.orders...)
	c.distinctOn = append([]string(nil), q.distinctOn...)
	return &c
}

// Ancestor restricts the query to key and its descendants.
func (q *Query) Ancestor(key *Key) *Query {
	c := q.clone()
	c.ancestor = key
	return c
}

// Filter adds a comparison term parsed from a FilterExpr string (§4.3),
// validating it immediately against codec rather than deferring to Run or
// Count (§4.4): a list value must have exactly one element, raw-type
// values cannot be filtered on, a Key value cannot be compared with an
// inequality operator, and a second inequality property or an
// inequality/ordering conflict is rejected at the point it is introduced.
func (q *Query) Filter(expr string, value any, codec PropertyCodec) (*Query, error) {
	name, op, err := ParseFilterExpr(expr)
	if err != nil {
		return nil, err
	}

	scalar := value
	if values, ok := asSlice(value); ok {
		if len(values) != 1 {
			return nil, newErr(KindBadFilter, "filter %q: list value must have exactly one element, got %d", name, len(values))
		}
		scalar = values[0]
	}
	if scalar != nil {
		if codec.Raw(scalar) {
			return nil, newErr(KindBadValue, "filter %q: cannot filter on a raw-type value", name)
		}
		if _, isKey := scalar.(*Key); isKey && op != opEqual {
			return nil, newErr(KindBadFilter, "filter %q: key values do not support inequality comparisons", name)
		}
	}

	f := filter{name: name, op: op, value: scalar}
	if f.inequality() {
		if existing := q.inequalityProperty(); existing != "" && existing != name {
			return nil, newErr(KindBadFilter, "query already has an inequality filter on %q, cannot also filter on %q", existing, name)
		}
		if len(q.orders) > 0 && q.orders[0].Name != name {
			return nil, newErr(KindBadFilter, "query orders by %q but filters with an inequality on %q; the inequality property must be the first ordering", q.orders[0].Name, name)
		}
	}

	c := q.clone()
	if _, seen := indexOfFilterName(c.filterNames, name); !seen {
		c.filterNames = append(c.filterNames, name)
	}
	c.filters = append(c.filters, f)
	return c, nil
}

func indexOfFilterName(names []string, name string) (int, bool) {
	for i, n := range names {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// Order adds a sort term. A leading "-" requests descending order, e.g.
// Order("-created"). If the query has an inequality filter, the first
// ordering term must be on that property; violating this is rejected
// immediately rather than deferred to Run or Count (§4.4, §8 S4).
func (q *Query) Order(name string) (*Query, error) {
	desc := false
	if len(name) > 0 && name[0] == '-' {
		desc = true
		name = name[1:]
	}
	if len(q.orders) == 0 {
		if ineq := q.inequalityProperty(); ineq != "" && ineq != name {
			return nil, newErr(KindBadFilter, "query has an inequality filter on %q; the first ordering must be on %q, got %q", ineq, ineq, name)
		}
	}
	c := q.clone()
	c.orders = append(c.orders, wireOrder{Name: name, Desc: desc})
	return c, nil
}

// Limit bounds the number of results.
func (q *Query) Limit(n int) *Query {
	c := q.clone()
	c.limit = n
	return c
}

// Offset skips the first n matching results.
func (q *Query) Offset(n int) *Query {
	c := q.clone()
	c.offset = n
	return c
}

// Start resumes a previous query from an iterator cursor.
func (q *Query) Start(cursor string) *Query {
	c := q.clone()
	c.startCursor = cursor
	return c
}

// KeysOnly restricts results to keys, omitting property data.
func (q *Query) KeysOnly() *Query {
	c := q.clone()
	c.keysOnly = true
	return c
}

// inequalityProperty returns the name of the query's single inequality
// filter property, or "" if the query has none.
func (q *Query) inequalityProperty() string {
	for _, f := range q.filters {
		if f.inequality() {
			return f.name
		}
	}
	return ""
}

// validate enforces the query's structural invariants (§4.4): at most one
// inequality property, and if an inequality property exists its first
// ordering term, if any orderings are given, must match it.
func (q *Query) validate() error {
	ineqNames := map[string]bool{}
	for _, f := range q.filters {
		if f.inequality() {
			ineqNames[f.name] = true
		}
	}
	if len(ineqNames) > 1 {
		return newErr(KindBadQuery, "query has inequality filters on more than one property")
	}
	ineq := q.inequalityProperty()
	if ineq != "" && len(q.orders) > 0 && q.orders[0].Name != ineq {
		return newErr(KindBadQuery, "query orders by %q but has an inequality filter on %q; the inequality property must be the first ordering", q.orders[0].Name, ineq)
	}
	return nil
}

// hint derives a ScanHint consistent with the query's shape: orderings
// with no filters give HintOrderFirst; an ancestor restriction with no
// filters gives HintAncestorFirst; any filter, equality or inequality,
// gives HintFilterFirst.
func (q *Query) hint() ScanHint {
	switch {
	case len(q.orders) > 0 && len(q.filters) == 0:
		return HintOrderFirst
	case q.ancestor != nil && len(q.filters) == 0:
		return HintAncestorFirst
	case len(q.filters) > 0:
		return HintFilterFirst
	default:
		return HintNone
	}
}

// toWire serializes the query, encoding filter values through codec.
func (q *Query) toWire(codec PropertyCodec, transactionID string) (RunQueryRequest, error) {
	req := RunQueryRequest{
		TransactionID: transactionID,
		App:           q.app,
		Kind:          q.kind,
		Limit:         q.limit,
		Offset:        q.offset,
		StartCursor:   q.startCursor,
		KeysOnly:      q.keysOnly,
	}
	if q.ancestor != nil {
		wk := q.ancestor.ToWire()
		req.Ancestor = &wk
	}
	// filters emitted in insertion order for deterministic wire output
	for _, f := range q.filters {
		wv, err := codec.Encode(f.value)
		if err != nil {
			return RunQueryRequest{}, wrapErr(KindBadValue, err, "filter %q", f.name)
		}
		req.Filters = append(req.Filters, wireFilter{Name: f.name, Op: f.op, Value: wv})
	}
	req.Orders = append(req.Orders, q.orders...)
	return req, nil
}

// Run executes the query and returns an Iterator over its results.
func (q *Query) Run(ctx context.Context, d Dispatch, codec PropertyCodec) (*Iterator, error) {
	return newIterator(ctx, d, codec, q, "")
}

// Count returns the number of entities the query matches, without
// fetching their data.
func (q *Query) Count(ctx context.Context, d Dispatch, codec PropertyCodec) (int64, error) {
	if err := q.validate(); err != nil {
		return 0, err
	}
	req := CountRequest{App: q.app, Kind: q.kind}
	if q.ancestor != nil {
		wk := q.ancestor.ToWire()
		req.Ancestor = &wk
	}
	for _, name := range q.filterNames {
		for _, f := range q.filters {
			if f.name != name {
				continue
			}
			wv, err := codec.Encode(f.value)
			if err != nil {
				return 0, wrapErr(KindBadValue, err, "filter %q", f.name)
			}
			req.Filters = append(req.Filters, wireFilter{Name: f.name, Op: f.op, Value: wv})
		}
	}
	resp, err := d.Count(ctx, req)
	if err != nil {
		return 0, classifyWireError(err)
	}
	return resp.Count, nil
}

// GetAll runs the query to completion and returns every matching entity.
func (q *Query) GetAll(ctx context.Context, d Dispatch, codec PropertyCodec) ([]*Entity, error) {
	it, err := q.Run(ctx, d, codec)
	if err != nil {
		return nil, err
	}
	var out []*Entity
	for {
		e, err := it.Next(ctx)
		if err == ErrIteratorDone {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
}
