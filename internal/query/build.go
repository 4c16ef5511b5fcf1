package query

import (
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/ploop3/Natours/pkg/pagination"
)

// VersionField is the internal revision marker hidden from default projections.
const VersionField = "__v"

// DefaultSort is applied when the request has no sort parameter.
var DefaultSort = SortField{Field: "created_at", Desc: true}

var reserved = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}

var rangeKey = regexp.MustCompile(`^([^\[\]]+)\[(gte|gt|lte|lt)\]$`)

var decimal = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// Build runs the filter, sort, projection and paginate stages over the
// request values. It never fails: unknown fields become equality filters and
// malformed paging falls back to the defaults.
func Build(values url.Values) *Query {
	q := &Query{}
	q.Filter = buildFilter(values)
	q.Sort = buildSort(values.Get("sort"))
	q.Projection = buildProjection(values.Get("fields"))

	p := pagination.FromValues(values)
	q.Skip, q.Limit = p.Skip, p.Limit
	return q
}

func buildFilter(values url.Values) Filter {
	keys := make([]string, 0, len(values))
	for k := range values {
		if !reserved[k] {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	var f Filter
	for _, k := range keys {
		vs := values[k]
		if len(vs) == 0 {
			continue
		}
		if m := rangeKey.FindStringSubmatch(k); m != nil {
			f = append(f, Condition{Field: m[1], Op: Op(m[2]), Value: ParseValue(vs[len(vs)-1])})
			continue
		}
		if len(vs) > 1 {
			in := make([]any, len(vs))
			for i, v := range vs {
				in[i] = ParseValue(v)
			}
			f = append(f, In(k, in...))
			continue
		}
		f = append(f, Eq(k, ParseValue(vs[0])))
	}
	return f
}

func buildSort(raw string) []SortField {
	var out []SortField
	for _, part := range splitList(raw) {
		if field, ok := strings.CutPrefix(part, "-"); ok {
			if field != "" {
				out = append(out, SortField{Field: field, Desc: true})
			}
			continue
		}
		out = append(out, SortField{Field: part})
	}
	if len(out) == 0 {
		return []SortField{DefaultSort}
	}
	return out
}

// buildProjection includes the listed fields. A list made only of
// "-field" entries excludes those instead; in a mixed list the exclusions
// are ignored.
func buildProjection(raw string) Projection {
	var include, exclude []string
	for _, part := range splitList(raw) {
		if field, ok := strings.CutPrefix(part, "-"); ok {
			if field != "" {
				exclude = append(exclude, field)
			}
			continue
		}
		include = append(include, part)
	}
	if len(include) > 0 {
		return Projection{Include: include}
	}
	if len(exclude) > 0 {
		return Projection{Exclude: exclude}
	}
	return Projection{Exclude: []string{VersionField}}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseValue types a raw parameter: decimal numbers become float64, "true"
// and "false" become booleans and anything else stays a string.
func ParseValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if decimal.MatchString(raw) {
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
	}
	return raw
}

// Alias is a named set of preset parameters such as top-5-cheap.
type Alias url.Values

// TopCheap lists the five best rated tours, cheapest first.
var TopCheap = Alias{
	"limit":  {"5"},
	"sort":   {"-ratings_average,price"},
	"fields": {"name,price,ratings_average,summary,difficulty"},
}

// Apply returns a copy of values with the alias presets set, overriding any
// request values for the same keys.
func (a Alias) Apply(values url.Values) url.Values {
	out := make(url.Values, len(values)+len(a))
	for k, v := range values {
		out[k] = slices.Clone(v)
	}
	for k, v := range a {
		out[k] = slices.Clone(v)
	}
	return out
}
