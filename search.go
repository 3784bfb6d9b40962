package fieldcrypt

import (
	"fmt"
	"strconv"
	"strings"
)

// maxParamNumber is the PostgreSQL maximum parameter number.
const maxParamNumber = 65535

// Placeholder renders the n-th bind parameter for a SQL dialect.
type Placeholder func(n int) string

// DollarPlaceholder renders PostgreSQL placeholders ($1, $2, ...).
func DollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// QuestionPlaceholder renders MySQL placeholders (?).
func QuestionPlaceholder(int) string { return "?" }

// IsValidColumnName checks if a column name is safe for SQL interpolation.
// Must start with letter or underscore, followed by alphanumeric/underscore.
func IsValidColumnName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		letter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		if i == 0 && !letter {
			return false
		}
		if !letter && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// SearchCondition holds a SQL WHERE clause fragment and its arguments.
type SearchCondition struct {
	SQL  string // e.g. "email_idx IN ($1, $2)"
	Args []any
}

// Condition renders p as a WHERE fragment. paramOffset is the first
// parameter number to use; pass 1 unless composing with other conditions.
//
// Condition renders exactly what it is given. Predicates on encrypted fields
// must be rewritten by the field first.
func (p Predicate) Condition(ph Placeholder, paramOffset int) (*SearchCondition, error) {
	if !IsValidColumnName(p.Column) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColumn, p.Column)
	}
	if paramOffset < 1 || paramOffset+len(p.Values)-1 > maxParamNumber {
		return nil, fmt.Errorf("fieldcrypt: parameters %d..%d exceed limit %d",
			paramOffset, paramOffset+len(p.Values)-1, maxParamNumber)
	}

	one := func(op string) (*SearchCondition, error) {
		if len(p.Values) != 1 {
			return nil, fmt.Errorf("fieldcrypt: %s expects 1 value, got %d", p.Op, len(p.Values))
		}
		return &SearchCondition{
			SQL:  fmt.Sprintf("%s %s %s", p.Column, op, ph(paramOffset)),
			Args: []any{p.Values[0]},
		}, nil
	}

	switch p.Op {
	case OpEqual:
		if len(p.Values) == 1 && p.Values[0] == nil {
			return &SearchCondition{SQL: p.Column + " IS NULL"}, nil
		}
		return one("=")
	case OpIsNull:
		return &SearchCondition{SQL: p.Column + " IS NULL"}, nil
	case OpIn:
		if len(p.Values) == 0 {
			return &SearchCondition{SQL: "FALSE"}, nil // empty set can't match
		}
		marks := make([]string, len(p.Values))
		for i := range p.Values {
			marks[i] = ph(paramOffset + i)
		}
		return &SearchCondition{
			SQL:  fmt.Sprintf("%s IN (%s)", p.Column, strings.Join(marks, ", ")),
			Args: append([]any(nil), p.Values...),
		}, nil
	case OpLessThan:
		return one("<")
	case OpLessOrEqual:
		return one("<=")
	case OpGreaterThan:
		return one(">")
	case OpGreaterOrEqual:
		return one(">=")
	case OpBetween:
		if len(p.Values) != 2 {
			return nil, fmt.Errorf("fieldcrypt: between expects 2 values, got %d", len(p.Values))
		}
		return &SearchCondition{
			SQL:  fmt.Sprintf("%s BETWEEN %s AND %s", p.Column, ph(paramOffset), ph(paramOffset+1)),
			Args: []any{p.Values[0], p.Values[1]},
		}, nil
	case OpContains, OpStartsWith:
		if len(p.Values) != 1 {
			return nil, fmt.Errorf("fieldcrypt: %s expects 1 value, got %d", p.Op, len(p.Values))
		}
		s, ok := p.Values[0].(string)
		if !ok {
			return nil, fmt.Errorf("fieldcrypt: %s expects a string, got %T", p.Op, p.Values[0])
		}
		pattern := escapeLike(s) + "%"
		if p.Op == OpContains {
			pattern = "%" + pattern
		}
		return &SearchCondition{
			SQL:  fmt.Sprintf("%s LIKE %s", p.Column, ph(paramOffset)),
			Args: []any{pattern},
		}, nil
	default:
		return nil, fmt.Errorf("fieldcrypt: unknown operator %q", p.Op)
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
