// Package filter provides a structured filter specification that compiles
// to a SQL WHERE clause without exposing callers to injection: column
// names are validated and double-quoted, string values are escaped and
// single-quoted, LIKE wildcards are escaped.
package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Operator is a typed comparison applied to one column.
type Operator string

const (
	Equals             Operator = "eq"
	NotEquals          Operator = "ne"
	GreaterThan        Operator = "gt"
	GreaterThanOrEqual Operator = "gte"
	LessThan           Operator = "lt"
	LessThanOrEqual    Operator = "lte"
	Contains           Operator = "contains"
	NotContains        Operator = "not_contains"
	StartsWith         Operator = "starts_with"
	EndsWith           Operator = "ends_with"
	IsNull             Operator = "is_null"
	IsNotNull          Operator = "is_not_null"
)

// Logic combines multiple conditions.
type Logic string

const (
	And Logic = "and"
	Or  Logic = "or"
)

// Condition is a single column comparison. Value is ignored for the null
// checks.
type Condition struct {
	Column   string   `json:"column"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// Spec is a complete filter: one or more conditions joined by Logic.
type Spec struct {
	Conditions []Condition `json:"conditions"`
	Logic      Logic       `json:"logic"`
}

// ErrEmptySpec is returned when a spec has no conditions.
var ErrEmptySpec = errors.New("filter must have at least one condition")

// WhereClause compiles the spec into a SQL WHERE clause body.
func (s Spec) WhereClause() (string, error) {
	if len(s.Conditions) == 0 {
		return "", ErrEmptySpec
	}

	clauses := make([]string, len(s.Conditions))
	for i, cond := range s.Conditions {
		sql, err := cond.toSQL()
		if err != nil {
			return "", err
		}
		clauses[i] = sql
	}

	joiner := " AND "
	if s.Logic == Or {
		joiner = " OR "
	}
	return strings.Join(clauses, joiner), nil
}

func (c Condition) toSQL() (string, error) {
	col, err := quoteColumn(c.Column)
	if err != nil {
		return "", err
	}

	switch c.Operator {
	case Equals:
		return fmt.Sprintf("%s = %s", col, literal(c.Value)), nil
	case NotEquals:
		return fmt.Sprintf("%s != %s", col, literal(c.Value)), nil
	case GreaterThan:
		return fmt.Sprintf("%s > %s", col, literal(c.Value)), nil
	case GreaterThanOrEqual:
		return fmt.Sprintf("%s >= %s", col, literal(c.Value)), nil
	case LessThan:
		return fmt.Sprintf("%s < %s", col, literal(c.Value)), nil
	case LessThanOrEqual:
		return fmt.Sprintf("%s <= %s", col, literal(c.Value)), nil
	case Contains:
		return fmt.Sprintf("%s LIKE '%%%s%%'", col, escapeLike(c.Value)), nil
	case NotContains:
		return fmt.Sprintf("%s NOT LIKE '%%%s%%'", col, escapeLike(c.Value)), nil
	case StartsWith:
		return fmt.Sprintf("%s LIKE '%s%%'", col, escapeLike(c.Value)), nil
	case EndsWith:
		return fmt.Sprintf("%s LIKE '%%%s'", col, escapeLike(c.Value)), nil
	case IsNull:
		return col + " IS NULL", nil
	case IsNotNull:
		return col + " IS NOT NULL", nil
	default:
		return "", fmt.Errorf("unknown filter operator %q", c.Operator)
	}
}

// quoteColumn validates and double-quotes a column name. Letters, digits,
// underscores, spaces, and dots are allowed.
func quoteColumn(name string) (string, error) {
	if name == "" || len(name) > 256 {
		return "", fmt.Errorf("invalid column name: %q", name)
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == ' ' || r == '.' {
			continue
		}
		return "", fmt.Errorf("invalid column name: %q", name)
	}
	return `"` + name + `"`, nil
}

// literal renders a comparison value: numbers are emitted bare, anything
// else is escaped and single-quoted.
func literal(v string) string {
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	return "'" + escapeString(v) + "'"
}

func escapeString(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// escapeLike prepares a value for a LIKE pattern: quote-safe, with the
// wildcard characters escaped.
func escapeLike(v string) string {
	s := escapeString(v)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
