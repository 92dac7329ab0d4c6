package remote

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Op is a predicate comparison operator.
type Op string

const (
	OpEq       Op = "=="
	OpNe       Op = "!="
	OpLt       Op = "<"
	OpLe       Op = "<="
	OpGt       Op = ">"
	OpGe       Op = ">="
	OpIn       Op = "in"
	OpContains Op = "contains"
)

// ValidOps returns all supported operators.
func ValidOps() []Op {
	return []Op{OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpIn, OpContains}
}

// IsValid returns true if the operator is supported.
func (op Op) IsValid() bool {
	for _, valid := range ValidOps() {
		if op == valid {
			return true
		}
	}
	return false
}

// Predicate constrains one document field. Field may be a dotted path into
// nested documents. For OpIn, Value must be a slice; for OpContains, the
// field must hold a list.
type Predicate struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

// Query selects documents in a collection matching all predicates.
type Query struct {
	Collection string      `json:"collection"`
	Predicates []Predicate `json:"predicates,omitempty"`
}

// Where builds a predicate.
func Where(field string, op Op, value any) Predicate {
	return Predicate{Field: field, Op: op, Value: value}
}

// Validate checks the query is well formed.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Collection) == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidQuery)
	}
	for _, p := range q.Predicates {
		if strings.TrimSpace(p.Field) == "" {
			return fmt.Errorf("%w: predicate field is required", ErrInvalidQuery)
		}
		if !p.Op.IsValid() {
			return fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, p.Op)
		}
		if p.Op == OpIn && listOf(p.Value) == nil {
			return fmt.Errorf("%w: %s in: value must be a list", ErrInvalidQuery, p.Field)
		}
	}
	return nil
}

// Signature returns a canonical string for the query. Queries with the same
// predicates in any order share a signature.
func (q Query) Signature() string {
	parts := make([]string, 0, len(q.Predicates))
	for _, p := range q.Predicates {
		parts = append(parts, p.Field+" "+string(p.Op)+" "+formatValue(p.Value))
	}
	sort.Strings(parts)
	return q.Collection + "?" + strings.Join(parts, "&")
}

func formatValue(value any) string {
	value = NormalizeValue(value)
	if items := listOf(value); items != nil {
		formatted := make([]string, 0, len(items))
		for _, item := range items {
			formatted = append(formatted, formatValue(item))
		}
		sort.Strings(formatted)
		return "[" + strings.Join(formatted, ",") + "]"
	}
	return fmt.Sprintf("%v", value)
}

// NormalizeValue converts predicate values into their stored form:
// timestamps become TimeLayout strings, integer types become float64, and
// string-like named types become string.
func NormalizeValue(value any) any {
	switch v := value.(type) {
	case time.Time:
		return FormatTime(v)
	case *time.Time:
		if v == nil {
			return nil
		}
		return FormatTime(*v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case fmt.Stringer:
		return v.String()
	}
	if items := listOf(value); items != nil {
		normalized := make([]any, len(items))
		for i, item := range items {
			normalized[i] = NormalizeValue(item)
		}
		return normalized
	}
	return stringKind(value)
}
