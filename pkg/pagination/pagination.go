package pagination

import (
	"math"
	"net/url"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Skip  int `json:"-"`
}

// DefaultParams returns the first page with the default limit.
func DefaultParams() Params {
	return Params{Page: DefaultPage, Limit: DefaultLimit}
}

// FromValues reads page and limit from query values. Missing, non-numeric or
// non-positive values fall back to the defaults. There is no upper bound on
// limit; callers that need one apply it themselves. Skip never overflows.
func FromValues(v url.Values) Params {
	p := DefaultParams()

	if n, ok := positiveInt(v.Get("page")); ok {
		p.Page = n
	}
	if n, ok := positiveInt(v.Get("limit")); ok {
		p.Limit = n
	}

	// A skip past math.MaxInt is clamped; such a page is always empty.
	if p.Page-1 > math.MaxInt/p.Limit {
		p.Skip = math.MaxInt
	} else {
		p.Skip = (p.Page - 1) * p.Limit
	}
	return p
}

func positiveInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
