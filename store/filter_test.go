package store

import "testing"

func TestParseFilterExpr(t *testing.T) {
	cases := []struct {
		expr    string
		name    string
		op      filterOperator
		wantErr bool
	}{
		{"age", "age", opEqual, false},
		{"age =", "age", opEqual, false},
		{"age ==", "age", opEqual, false},
		{"age >=", "age", opGreaterThanOrEqual, false},
		{"age <=", "age", opLessThanOrEqual, false},
		{"age <", "age", opLessThan, false},
		{"age >", "age", opGreaterThan, false},
		{"  age   >  ", "age", opGreaterThan, false},
		{"user-id >", "user-id", opGreaterThan, false},
		{"user-id", "user-id", opEqual, false},
		{"", "", "", true},
		{"age !=", "", "", true},
		{"age bogus", "", "", true},
	}
	for _, c := range cases {
		name, op, err := ParseFilterExpr(c.expr)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseFilterExpr(%q): expected error, got nil", c.expr)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFilterExpr(%q): unexpected error %v", c.expr, err)
			continue
		}
		if name != c.name || op != c.op {
			t.Errorf("ParseFilterExpr(%q) = (%q, %q), want (%q, %q)", c.expr, name, op, c.name, c.op)
		}
	}
}
