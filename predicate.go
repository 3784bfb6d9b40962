package fieldcrypt

import "fmt"

// Op is a lookup operator.
type Op string

const (
	OpEqual          Op = "eq"
	OpIn             Op = "in"
	OpIsNull         Op = "isnull"
	OpLessThan       Op = "lt"
	OpLessOrEqual    Op = "lte"
	OpGreaterThan    Op = "gt"
	OpGreaterOrEqual Op = "gte"
	OpBetween        Op = "between"
	OpContains       Op = "contains"
	OpStartsWith     Op = "startswith"
)

// Predicate is a single lookup against one column. Before a predicate on an
// encrypted field reaches storage it must pass through the field's
// RewritePredicate, which either redirects it to a queryable column or
// rejects it.
type Predicate struct {
	Column string
	Op     Op
	Values []any
}

// Eq matches rows whose column equals v. Eq(col, nil) matches NULL.
func Eq(column string, v any) Predicate {
	return Predicate{Column: column, Op: OpEqual, Values: []any{v}}
}

// In matches rows whose column equals any of vs. An empty set matches nothing.
func In(column string, vs ...any) Predicate {
	return Predicate{Column: column, Op: OpIn, Values: vs}
}

// IsNull matches rows whose column is NULL.
func IsNull(column string) Predicate {
	return Predicate{Column: column, Op: OpIsNull}
}

func Lt(column string, v any) Predicate {
	return Predicate{Column: column, Op: OpLessThan, Values: []any{v}}
}

func Lte(column string, v any) Predicate {
	return Predicate{Column: column, Op: OpLessOrEqual, Values: []any{v}}
}

func Gt(column string, v any) Predicate {
	return Predicate{Column: column, Op: OpGreaterThan, Values: []any{v}}
}

func Gte(column string, v any) Predicate {
	return Predicate{Column: column, Op: OpGreaterOrEqual, Values: []any{v}}
}

// Between matches lo <= column <= hi.
func Between(column string, lo, hi any) Predicate {
	return Predicate{Column: column, Op: OpBetween, Values: []any{lo, hi}}
}

func Contains(column string, substr string) Predicate {
	return Predicate{Column: column, Op: OpContains, Values: []any{substr}}
}

func StartsWith(column string, prefix string) Predicate {
	return Predicate{Column: column, Op: OpStartsWith, Values: []any{prefix}}
}

// IsEquality reports whether p is answerable by comparing digests.
func (p Predicate) IsEquality() bool {
	return p.Op == OpEqual || p.Op == OpIn || p.Op == OpIsNull
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %v", p.Column, p.Op, p.Values)
}

// rejectPredicate builds the QueryError for p against field.
func rejectPredicate(field string, p Predicate) error {
	return fmt.Errorf("%w: %s lookup on %q", ErrUnsupportedPredicate, p.Op, field)
}
