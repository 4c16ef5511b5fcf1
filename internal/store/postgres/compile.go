package postgres

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ploop3/Natours/internal/query"
)

// compiler turns query descriptors into SQL fragments over the doc column.
// Field names are always passed as parameters, never spliced into SQL.
type compiler struct {
	args []any
}

func (c *compiler) arg(v any) string {
	c.args = append(c.args, v)
	return fmt.Sprintf("$%d", len(c.args))
}

// key binds a field name as a text parameter.
func (c *compiler) key(field string) string {
	return c.arg(field) + "::text"
}

func jsonText(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode filter value: %w", err)
	}
	return string(raw), nil
}

func (c *compiler) where(f query.Filter) (string, error) {
	if len(f) == 0 {
		return "TRUE", nil
	}
	parts := make([]string, 0, len(f))
	for _, cond := range f {
		sql, err := c.condition(cond)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return strings.Join(parts, " AND "), nil
}

var rangeOps = map[query.Op]string{
	query.OpGt:  ">",
	query.OpGte: ">=",
	query.OpLt:  "<",
	query.OpLte: "<=",
}

func (c *compiler) condition(cond query.Condition) (string, error) {
	if cond.Field == "id" {
		if sql, ok := c.idCondition(cond); ok {
			return sql, nil
		}
	}

	if op, ok := rangeOps[cond.Op]; ok {
		return c.rangeCondition(cond, op)
	}

	switch cond.Op {
	case query.OpEq, query.OpNe:
		v, err := jsonText(cond.Value)
		if err != nil {
			return "", err
		}
		sql := fmt.Sprintf("doc->%s @> %s::text::jsonb", c.key(cond.Field), c.arg(v))
		if cond.Op == query.OpNe {
			sql = "NOT COALESCE(" + sql + ", FALSE)"
		}
		return sql, nil
	case query.OpIn:
		vs, _ := cond.Value.([]any)
		if len(vs) == 0 {
			return "FALSE", nil
		}
		texts := make([]string, len(vs))
		for i, v := range vs {
			t, err := jsonText(v)
			if err != nil {
				return "", err
			}
			texts[i] = t
		}
		return fmt.Sprintf("doc->%s @> ANY(%s::text[]::jsonb[])", c.key(cond.Field), c.arg(texts)), nil
	}
	return "", fmt.Errorf("unsupported operator %q", cond.Op)
}

// idCondition compiles equality on the primary key. Values that are not
// UUIDs cannot match any row.
func (c *compiler) idCondition(cond query.Condition) (string, bool) {
	switch cond.Op {
	case query.OpEq, query.OpNe:
		s, _ := cond.Value.(string)
		if _, err := uuid.Parse(s); err != nil {
			if cond.Op == query.OpEq {
				return "FALSE", true
			}
			return "TRUE", true
		}
		op := "="
		if cond.Op == query.OpNe {
			op = "<>"
		}
		return fmt.Sprintf("id %s %s::uuid", op, c.arg(s)), true
	case query.OpIn:
		vs, _ := cond.Value.([]any)
		var valid []string
		for _, v := range vs {
			if s, ok := v.(string); ok {
				if _, err := uuid.Parse(s); err == nil {
					valid = append(valid, s)
				}
			}
		}
		if len(valid) == 0 {
			return "FALSE", true
		}
		return fmt.Sprintf("id = ANY(%s::uuid[])", c.arg(valid)), true
	}
	return "", false
}

func (c *compiler) rangeCondition(cond query.Condition, op string) (string, error) {
	if t, ok := timeValue(cond.Value); ok {
		if cond.Field == "created_at" {
			return fmt.Sprintf("created_at %s %s", op, c.arg(t)), nil
		}
		return c.dateRange(cond.Field, op, t), nil
	}

	v, err := jsonText(cond.Value)
	if err != nil {
		return "", err
	}
	field, val := c.key(cond.Field), c.arg(v)
	return fmt.Sprintf("(jsonb_typeof(doc->%s) = jsonb_typeof(%s::text::jsonb) AND doc->%s %s %s::text::jsonb)",
		field, val, field, op, val), nil
}

// datePattern matches the strings timeValue parses, so the cast below never
// fails on other strings.
const datePattern = `^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2}))?$`

// dateRange compares a date stored as a JSON string. An array field matches
// when any of its elements does; non-date values never match.
func (c *compiler) dateRange(field, op string, t time.Time) string {
	f := c.key(field)
	return fmt.Sprintf("EXISTS (SELECT 1 FROM jsonb_array_elements("+
		"CASE jsonb_typeof(doc->%s) WHEN 'array' THEN doc->%s ELSE jsonb_build_array(doc->%s) END) AS e(v) "+
		"WHERE CASE WHEN jsonb_typeof(e.v) = 'string' AND (e.v #>> '{}') ~ %s "+
		"THEN (e.v #>> '{}')::timestamptz %s %s ELSE FALSE END)",
		f, f, f, c.arg(datePattern), op, c.arg(t))
}

// timeValue accepts a time.Time or a date string from a request parameter.
func timeValue(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
			if t, err := time.Parse(layout, x); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func (c *compiler) orderBy(sort []query.SortField) string {
	parts := make([]string, 0, len(sort)+1)
	for _, s := range sort {
		var expr string
		switch s.Field {
		case "id", "created_at":
			expr = s.Field
		default:
			expr = "doc->" + c.key(s.Field)
		}
		if s.Desc {
			parts = append(parts, expr+" DESC NULLS LAST")
		} else {
			parts = append(parts, expr+" ASC NULLS FIRST")
		}
	}
	parts = append(parts, "id")
	return strings.Join(parts, ", ")
}

func (c *compiler) projection(p query.Projection) string {
	if len(p.Include) > 0 {
		pairs := []string{"'id', doc->'id'"}
		for _, f := range p.Include {
			if f == "id" {
				continue
			}
			k := c.key(f)
			pairs = append(pairs, fmt.Sprintf("%s, doc->%s", k, k))
		}
		return "jsonb_strip_nulls(jsonb_build_object(" + strings.Join(pairs, ", ") + "))"
	}
	if len(p.Exclude) > 0 {
		return "doc - " + c.arg(p.Exclude) + "::text[]"
	}
	return "doc"
}
