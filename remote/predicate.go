package remote

import (
	"reflect"
	"strings"
)

// Matches reports whether doc satisfies every predicate.
func Matches(doc map[string]any, predicates []Predicate) bool {
	for _, p := range predicates {
		if !matchPredicate(doc, p) {
			return false
		}
	}
	return true
}

func matchPredicate(doc map[string]any, p Predicate) bool {
	field, present := Lookup(doc, p.Field)
	want := NormalizeValue(p.Value)
	got := NormalizeValue(field)

	switch p.Op {
	case OpEq:
		return present && equalValues(got, want)
	case OpNe:
		return !present || !equalValues(got, want)
	case OpIn:
		if !present {
			return false
		}
		for _, candidate := range listOf(want) {
			if equalValues(got, candidate) {
				return true
			}
		}
		return false
	case OpContains:
		for _, item := range listOf(got) {
			if equalValues(item, want) {
				return true
			}
		}
		return false
	case OpLt, OpLe, OpGt, OpGe:
		if !present {
			return false
		}
		cmp, ok := compareValues(got, want)
		if !ok {
			return false
		}
		switch p.Op {
		case OpLt:
			return cmp < 0
		case OpLe:
			return cmp <= 0
		case OpGt:
			return cmp > 0
		default:
			return cmp >= 0
		}
	default:
		return false
	}
}

// Lookup resolves a dotted field path. A nil value counts as absent.
func Lookup(doc map[string]any, path string) (any, bool) {
	var current any = doc
	for _, part := range strings.Split(path, ".") {
		fields, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = fields[part]
		if !ok {
			return nil, false
		}
	}
	return current, current != nil
}

func equalValues(a, b any) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok || av != bv {
			return 0, false
		}
		return 0, true
	default:
		return 0, false
	}
}

// listOf returns the elements of any slice value, or nil.
func listOf(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return nil
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items
}

// stringKind converts named string types (such as task.Status) to string.
func stringKind(value any) any {
	if value == nil {
		return nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return value
}
