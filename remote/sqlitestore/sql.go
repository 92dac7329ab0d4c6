package sqlitestore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/amonks/taskmirror/remote"
)

// whereClause renders predicates as SQL over json_extract. The result starts
// with " AND " when non-empty.
func whereClause(predicates []remote.Predicate) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	for _, p := range predicates {
		if !fieldPattern.MatchString(p.Field) {
			return "", nil, fmt.Errorf("%w: unsupported field name %q", remote.ErrInvalidQuery, p.Field)
		}
		path := "$." + p.Field
		value := sqlValue(remote.NormalizeValue(p.Value))

		switch p.Op {
		case remote.OpEq:
			clauses = append(clauses, "json_extract(data, ?) = ?")
			args = append(args, path, value)
		case remote.OpNe:
			clauses = append(clauses, "(json_extract(data, ?) IS NULL OR json_extract(data, ?) != ?)")
			args = append(args, path, path, value)
		case remote.OpLt, remote.OpLe, remote.OpGt, remote.OpGe:
			clauses = append(clauses, fmt.Sprintf("json_extract(data, ?) %s ?", p.Op))
			args = append(args, path, value)
		case remote.OpIn:
			items, _ := remote.NormalizeValue(p.Value).([]any)
			if len(items) == 0 {
				clauses = append(clauses, "0")
				continue
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(items)), ", ")
			clauses = append(clauses, "json_extract(data, ?) IN ("+placeholders+")")
			args = append(args, path)
			for _, item := range items {
				args = append(args, sqlValue(item))
			}
		case remote.OpContains:
			clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(data, ?) WHERE json_each.value = ?)")
			args = append(args, path, value)
		default:
			return "", nil, fmt.Errorf("%w: unknown operator %q", remote.ErrInvalidQuery, p.Op)
		}
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " AND " + strings.Join(clauses, " AND "), args, nil
}

// sqlValue converts a normalized predicate value into a bind argument that
// compares equal to what json_extract returns.
func sqlValue(value any) any {
	switch v := value.(type) {
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	case []any, map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return string(data)
	default:
		return v
	}
}

// patchExpression renders patch as a json_set/json_remove expression over
// the data column. Keys are applied in sorted order.
func patchExpression(patch map[string]any) (string, []any, error) {
	keys := make([]string, 0, len(patch))
	for key := range patch {
		if strings.Contains(key, ".") || !fieldPattern.MatchString(key) {
			return "", nil, fmt.Errorf("unsupported field name %q", key)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	expr := "data"
	var (
		setArgs    []any
		setParts   []string
		removeArgs []any
		removes    []string
	)
	for _, key := range keys {
		value := patch[key]
		if value == nil {
			removes = append(removes, "?")
			removeArgs = append(removeArgs, "$."+key)
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			return "", nil, fmt.Errorf("encode field %s: %w", key, err)
		}
		setParts = append(setParts, "?, json(?)")
		setArgs = append(setArgs, "$."+key, string(data))
	}

	var args []any
	if len(setParts) > 0 {
		expr = "json_set(" + expr + ", " + strings.Join(setParts, ", ") + ")"
		args = append(args, setArgs...)
	}
	if len(removes) > 0 {
		expr = "json_remove(" + expr + ", " + strings.Join(removes, ", ") + ")"
		args = append(args, removeArgs...)
	}
	return expr, args, nil
}
