package memory

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/internal/store"
)

// type ranks used to order values of different JSON types; missing sorts
// lowest.
const (
	rankMissing = iota
	rankNull
	rankString
	rankNumber
	rankBool
	rankArray
	rankObject
)

func rank(v any, ok bool) int {
	if !ok {
		return rankMissing
	}
	switch v.(type) {
	case nil:
		return rankNull
	case string, time.Time:
		return rankString
	case float64:
		return rankNumber
	case bool:
		return rankBool
	case []any:
		return rankArray
	default:
		return rankObject
	}
}

// normalize converts a filter value into the representation stored records
// use, keeping time.Time for chronological comparison.
func normalize(v any) any {
	switch x := v.(type) {
	case nil, string, float64, bool, time.Time:
		return x
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		if len(x) < len("2006-01-02") || !strings.Contains(x, "-") {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
			if t, err := time.Parse(layout, x); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// compare orders two present values. comparable is false when the values
// have different types and so cannot satisfy a range condition.
func compare(a, b any) (c int, comparable bool) {
	ra, rb := rank(a, true), rank(b, true)
	if ra != rb {
		if ra < rb {
			return -1, false
		}
		return 1, false
	}

	switch x := a.(type) {
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	case nil:
		return 0, true
	}

	if ta, ok := asTime(a); ok {
		if tb, ok := asTime(b); ok {
			return ta.Compare(tb), true
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return strings.Compare(sa, sb), true
	}
	if reflect.DeepEqual(a, b) {
		return 0, true
	}
	return 0, false
}

func equal(a, b any) bool {
	c, ok := compare(a, b)
	return ok && c == 0
}

// equalOrContains treats an array field as matching when any element
// matches.
func equalOrContains(field, v any) bool {
	if equal(field, v) {
		return true
	}
	if arr, ok := field.([]any); ok {
		for _, e := range arr {
			if equal(e, v) {
				return true
			}
		}
	}
	return false
}

func matches(rec store.Record, f query.Filter) bool {
	for _, c := range f {
		if !matchCondition(rec, c) {
			return false
		}
	}
	return true
}

func matchCondition(rec store.Record, c query.Condition) bool {
	field, present := rec[c.Field]
	want := normalize(c.Value)

	switch c.Op {
	case query.OpEq:
		return present && equalOrContains(field, want)
	case query.OpNe:
		return !present || !equalOrContains(field, want)
	case query.OpIn:
		vs, _ := want.([]any)
		for _, v := range vs {
			if present && equalOrContains(field, v) {
				return true
			}
		}
		return false
	}

	if !present {
		return false
	}
	if wantTime, isTime := asTime(want); isTime {
		// Date ranges match an array field when any element is in range.
		if arr, ok := field.([]any); ok {
			for _, e := range arr {
				if inTimeRange(e, wantTime, c.Op) {
					return true
				}
			}
			return false
		}
		return inTimeRange(field, wantTime, c.Op)
	}
	cmp, ok := compare(field, want)
	if !ok {
		return false
	}
	return holds(cmp, c.Op)
}

// inTimeRange reports whether v is a date satisfying op against want.
// Values that are not dates never match.
func inTimeRange(v any, want time.Time, op query.Op) bool {
	t, ok := asTime(v)
	if !ok {
		return false
	}
	return holds(t.Compare(want), op)
}

func holds(cmp int, op query.Op) bool {
	switch op {
	case query.OpGt:
		return cmp > 0
	case query.OpGte:
		return cmp >= 0
	case query.OpLt:
		return cmp < 0
	case query.OpLte:
		return cmp <= 0
	}
	return false
}

// less orders records by the sort fields; missing values sort first.
func less(a, b store.Record, sort []query.SortField) bool {
	for _, s := range sort {
		va, aok := a[s.Field]
		vb, bok := b[s.Field]

		var c int
		switch {
		case !aok || !bok:
			c = rank(va, aok) - rank(vb, bok)
		default:
			c, _ = compare(va, vb)
		}
		if c == 0 {
			continue
		}
		if s.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

func project(rec store.Record, p query.Projection) store.Record {
	if len(p.Include) > 0 {
		out := store.Record{"id": rec["id"]}
		for _, f := range p.Include {
			if v, ok := rec[f]; ok {
				out[f] = v
			}
		}
		return out
	}
	out := make(store.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	for _, f := range p.Exclude {
		delete(out, f)
	}
	return out
}
