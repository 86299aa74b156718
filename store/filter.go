package store

import (
	"regexp"
	"strings"
)

// filterExprPattern matches a property name, optional whitespace, an
// optional comparison operator, and optional trailing whitespace. A
// missing operator defaults to equality. The name class is any non-
// whitespace run, matching the wire grammar exactly (a name may contain
// punctuation such as a hyphen).
var filterExprPattern = regexp.MustCompile(`(?i)^\s*(\S+)(\s+(<=|>=|==|<|>|=)\s*)?$`)

// filterOperator is the normalized set of comparison operators a filter
// may use.
type filterOperator string

const (
	opLessThan           filterOperator = "<"
	opLessThanOrEqual    filterOperator = "<="
	opGreaterThan        filterOperator = ">"
	opGreaterThanOrEqual filterOperator = ">="
	opEqual              filterOperator = "="
)

// ParseFilterExpr parses a "name" or "name op" filter expression string
// (e.g. "age >=", "name") into a property name and operator. An absent
// operator defaults to equality (§4.3).
func ParseFilterExpr(expr string) (name string, op filterOperator, err error) {
	m := filterExprPattern.FindStringSubmatch(expr)
	if m == nil {
		return "", "", newErr(KindBadFilter, "malformed filter expression %q", expr)
	}
	name = m[1]
	rawOp := m[3]
	if rawOp == "" {
		return name, opEqual, nil
	}
	switch strings.ToLower(rawOp) {
	case "<":
		op = opLessThan
	case "<=":
		op = opLessThanOrEqual
	case ">":
		op = opGreaterThan
	case ">=":
		op = opGreaterThanOrEqual
	case "=", "==":
		op = opEqual
	default:
		return "", "", newErr(KindBadFilter, "unrecognized operator %q in filter expression %q", rawOp, expr)
	}
	return name, op, nil
}

// filter is one property-comparison term of a Query, built from a
// FilterExpr plus the value it compares against.
type filter struct {
	name  string
	op    filterOperator
	value any
}

func (f filter) inequality() bool {
	return f.op != opEqual
}
