// Package query turns request parameters into an unexecuted read descriptor
// that any store.Collection can run.
package query

import "slices"

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
)

// Condition compares one field against a value. For OpIn, Value is a []any.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Filter is a conjunction of conditions.
type Filter []Condition

// Eq matches documents whose field equals v.
func Eq(field string, v any) Condition { return Condition{Field: field, Op: OpEq, Value: v} }

// Ne matches documents whose field is absent or differs from v.
func Ne(field string, v any) Condition { return Condition{Field: field, Op: OpNe, Value: v} }

// Gt matches documents whose field is greater than v.
func Gt(field string, v any) Condition { return Condition{Field: field, Op: OpGt, Value: v} }

// Gte matches documents whose field is greater than or equal to v.
func Gte(field string, v any) Condition { return Condition{Field: field, Op: OpGte, Value: v} }

// Lt matches documents whose field is less than v.
func Lt(field string, v any) Condition { return Condition{Field: field, Op: OpLt, Value: v} }

// Lte matches documents whose field is less than or equal to v.
func Lte(field string, v any) Condition { return Condition{Field: field, Op: OpLte, Value: v} }

// In matches documents whose field equals one of vs.
func In(field string, vs ...any) Condition { return Condition{Field: field, Op: OpIn, Value: vs} }

// ByID is the filter selecting a single document by id.
func ByID(id string) Filter { return Filter{Eq("id", id)} }

// And returns a new filter holding f followed by cs.
func (f Filter) And(cs ...Condition) Filter {
	out := make(Filter, 0, len(f)+len(cs))
	out = append(out, f...)
	return append(out, cs...)
}

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// Projection selects the fields returned for each document. When Include is
// non-empty only those fields (and id) are returned; otherwise every field
// except those in Exclude is.
type Projection struct {
	Include []string
	Exclude []string
}

// Query is a composed, unexecuted read.
type Query struct {
	Filter     Filter
	Sort       []SortField
	Projection Projection
	Skip       int
	Limit      int
}

// WithFilter returns a copy of q with cs ANDed onto its filter.
func (q *Query) WithFilter(cs ...Condition) *Query {
	cpy := *q
	cpy.Filter = q.Filter.And(cs...)
	cpy.Sort = slices.Clone(q.Sort)
	return &cpy
}

// All returns a query matching every document of f with no paging, sorted
// by the default order.
func All(f Filter) *Query {
	return &Query{
		Filter:     f,
		Sort:       []SortField{DefaultSort},
		Projection: Projection{Exclude: []string{VersionField}},
	}
}

// Group describes a grouped aggregation: documents matching Match are
// grouped by the By field (all together when By is empty), and each group
// reports its count plus the requested per-field accumulators.
type Group struct {
	Match Filter
	By    string
	Avg   []string
	Sum   []string
	Min   []string
	Max   []string
}

// GroupResult is one aggregated group.
type GroupResult struct {
	Key   any
	Count int64
	Avg   map[string]float64
	Sum   map[string]float64
	Min   map[string]float64
	Max   map[string]float64
}
