package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) url.Values {
	t.Helper()
	v, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return v
}

func TestBuild_Defaults(t *testing.T) {
	q := Build(url.Values{})

	assert.Empty(t, q.Filter)
	assert.Equal(t, []SortField{{Field: "created_at", Desc: true}}, q.Sort)
	assert.Equal(t, Projection{Exclude: []string{"__v"}}, q.Projection)
	assert.Equal(t, 0, q.Skip)
	assert.Equal(t, 100, q.Limit)
}

func TestBuild_AllStages(t *testing.T) {
	q := Build(mustParse(t, "difficulty=easy&duration[gte]=5&sort=price,-ratings_average&fields=name,price&page=2&limit=10"))

	assert.Equal(t, Filter{
		Eq("difficulty", "easy"),
		Gte("duration", 5.0),
	}, q.Filter)
	assert.Equal(t, []SortField{{Field: "price"}, {Field: "ratings_average", Desc: true}}, q.Sort)
	assert.Equal(t, Projection{Include: []string{"name", "price"}}, q.Projection)
	assert.Equal(t, 10, q.Skip)
	assert.Equal(t, 10, q.Limit)
}

func TestBuild_KeyOrderIndependent(t *testing.T) {
	a := Build(mustParse(t, "price[lt]=1000&difficulty=easy&duration[gte]=5&sort=price"))
	b := Build(mustParse(t, "sort=price&duration[gte]=5&difficulty=easy&price[lt]=1000"))
	assert.Equal(t, a, b)
}

func TestBuild_ClosedRange(t *testing.T) {
	q := Build(mustParse(t, "duration[gte]=5&duration[lte]=10"))

	assert.ElementsMatch(t, Filter{
		Gte("duration", 5.0),
		Lte("duration", 10.0),
	}, q.Filter)
}

func TestBuild_RangeOperators(t *testing.T) {
	q := Build(mustParse(t, "a[gt]=1&b[gte]=2&c[lt]=3&d[lte]=4"))

	assert.Equal(t, Filter{
		Gt("a", 1.0),
		Gte("b", 2.0),
		Lt("c", 3.0),
		Lte("d", 4.0),
	}, q.Filter)
}

func TestBuild_UnknownOperatorIsLiteralEquality(t *testing.T) {
	q := Build(mustParse(t, "duration[regex]=5"))
	assert.Equal(t, Filter{Eq("duration[regex]", 5.0)}, q.Filter)
}

func TestBuild_UnknownFieldPassesThrough(t *testing.T) {
	q := Build(mustParse(t, "nonexistent=whatever"))
	assert.Equal(t, Filter{Eq("nonexistent", "whatever")}, q.Filter)
}

func TestBuild_MultiValuedKeyBecomesIn(t *testing.T) {
	q := Build(mustParse(t, "difficulty=easy&difficulty=medium"))
	assert.Equal(t, Filter{In("difficulty", "easy", "medium")}, q.Filter)
}

func TestBuild_ReservedKeysStripped(t *testing.T) {
	q := Build(mustParse(t, "page=1&sort=price&limit=3&fields=name"))
	assert.Empty(t, q.Filter)
}

func TestBuild_Pagination(t *testing.T) {
	tests := []struct {
		raw   string
		skip  int
		limit int
	}{
		{"page=2&limit=10", 10, 10},
		{"limit=10", 0, 10},
		{"page=3", 200, 100},
		{"page=abc&limit=-4", 0, 100},
		{"limit=1000", 0, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			q := Build(mustParse(t, tt.raw))
			assert.Equal(t, tt.skip, q.Skip)
			assert.Equal(t, tt.limit, q.Limit)
		})
	}
}

func TestBuild_Projection(t *testing.T) {
	tests := []struct {
		raw  string
		want Projection
	}{
		{"fields=name, price", Projection{Include: []string{"name", "price"}}},
		{"fields=-summary,-description", Projection{Exclude: []string{"summary", "description"}}},
		{"fields=name,-summary", Projection{Include: []string{"name"}}},
		{"fields=,", Projection{Exclude: []string{"__v"}}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Build(mustParse(t, tt.raw)).Projection)
		})
	}
}

func TestBuild_EmptySortFallsBackToDefault(t *testing.T) {
	q := Build(mustParse(t, "sort=,-"))
	assert.Equal(t, []SortField{DefaultSort}, q.Sort)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, 5.0, ParseValue("5"))
	assert.Equal(t, -2.5, ParseValue("-2.5"))
	assert.Equal(t, true, ParseValue("true"))
	assert.Equal(t, false, ParseValue("false"))
	assert.Equal(t, "easy", ParseValue("easy"))
	assert.Equal(t, "1e5", ParseValue("1e5"))
	assert.Equal(t, "Inf", ParseValue("Inf"))
	assert.Equal(t, "", ParseValue(""))
}

func TestWithFilter_DoesNotMutateOriginal(t *testing.T) {
	q := Build(mustParse(t, "rating=5"))
	scoped := q.WithFilter(Eq("tour_id", "t-1"))

	assert.Equal(t, Filter{Eq("rating", 5.0)}, q.Filter)
	assert.Equal(t, Filter{Eq("rating", 5.0), Eq("tour_id", "t-1")}, scoped.Filter)
	assert.Equal(t, q.Skip, scoped.Skip)
	assert.Equal(t, q.Limit, scoped.Limit)
}

func TestAlias_TopCheap(t *testing.T) {
	in := mustParse(t, "limit=50&difficulty=easy")
	q := Build(TopCheap.Apply(in))

	assert.Equal(t, 5, q.Limit)
	assert.Equal(t, []SortField{{Field: "ratings_average", Desc: true}, {Field: "price"}}, q.Sort)
	assert.Equal(t, []string{"name", "price", "ratings_average", "summary", "difficulty"}, q.Projection.Include)
	assert.Equal(t, Filter{Eq("difficulty", "easy")}, q.Filter)

	assert.Equal(t, "50", in.Get("limit"), "input values must not be modified")
}

func TestAll(t *testing.T) {
	q := All(Filter{Eq("tour_id", "t-1")})
	assert.Equal(t, 0, q.Limit)
	assert.Equal(t, []SortField{DefaultSort}, q.Sort)
}
