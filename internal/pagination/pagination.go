package pagination

import (
	"math"
	"strconv"
	"strings"

	"call-insights/internal/schema"
)

const (
	MinPage       = 1
	UnlimitedPage = -1
	DefaultLimit  = 20
	MinLimit      = 1
	MaxLimit      = 100
	// MaxOffset caps offsets so the store never sees an overflowing skip.
	MaxOffset int64 = schema.BigInt
)

// Page is the canonical paging request. A nil Limit disables the row cap.
type Page struct {
	Page   int   `json:"page"`
	Limit  *int  `json:"limit,omitempty"`
	Offset int64 `json:"offset"`
}

// Unlimited reports whether paging is disabled.
func (p Page) Unlimited() bool { return p.Limit == nil }

// LimitOr returns the row cap or def when paging is disabled.
func (p Page) LimitOr(def int) int {
	if p.Limit == nil {
		return def
	}
	return *p.Limit
}

// Meta is the pagination block of a list response.
type Meta struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	ItemCount   int  `json:"itemCount"`
	PageCount   int  `json:"pageCount"`
	HasPrevPage bool `json:"hasPrevPage"`
	HasNextPage bool `json:"hasNextPage"`
}

func parseNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, !math.IsNaN(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ResolvePage parses a page number, defaulting to 1 when missing or not numeric.
func ResolvePage(raw any) int {
	f, ok := parseNumber(raw)
	if !ok || f == 0 {
		return MinPage
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	if f < math.MinInt32 {
		return math.MinInt32
	}
	return int(f)
}

// ResolveLimit parses a row cap: default 20 when missing, non-numeric or not positive,
// clamped to 100.
func ResolveLimit(raw any) int {
	f, ok := parseNumber(raw)
	if !ok || f < MinLimit {
		return DefaultLimit
	}
	if f > MaxLimit {
		return MaxLimit
	}
	return int(f)
}

// Offset is (max(page,1)-1)*limit, capped at MaxOffset.
func Offset(page, limit int) int64 {
	if page < MinPage {
		page = MinPage
	}
	if limit <= 0 {
		return 0
	}
	skip := float64(page-1) * float64(limit)
	if skip > float64(MaxOffset) {
		return MaxOffset
	}
	return int64(page-1) * int64(limit)
}

// Resolve converts raw query values into a Page. The unlimited sentinel is checked
// before the page is clamped.
func Resolve(rawPage, rawLimit any) Page {
	page := ResolvePage(rawPage)
	if page == UnlimitedPage {
		return Page{Page: 0, Limit: nil, Offset: 0}
	}
	if page < MinPage {
		page = MinPage
	}
	limit := ResolveLimit(rawLimit)
	return Page{Page: page, Limit: &limit, Offset: Offset(page, limit)}
}

// Metadata derives the response pagination block from the request and the total count.
// With paging disabled the whole result is one page.
func Metadata(p Page, itemCount int) Meta {
	limit := 0
	if p.Limit != nil {
		limit = *p.Limit
	} else if itemCount > 0 {
		limit = itemCount
	}

	pageCount := 0
	if limit > 0 && itemCount > 0 {
		pageCount = (itemCount + limit - 1) / limit
	}

	requested := p.Page
	if requested <= 0 {
		requested = MinPage
	}
	page := requested
	if page > pageCount {
		page = pageCount + 1
	}

	return Meta{
		Page:        page,
		Limit:       limit,
		ItemCount:   itemCount,
		PageCount:   pageCount,
		HasPrevPage: requested > MinPage,
		HasNextPage: page < pageCount,
	}
}

// QueryFields is the schema fragment for page/limit query parameters.
func QueryFields() schema.Fields {
	minLimit, maxLimit := float64(MinLimit), float64(MaxLimit)
	limit := schema.Integer("limit", schema.IntegerOptions{Min: &minLimit, Max: &maxLimit})
	page := &schema.Schema{OneOf: []*schema.Schema{
		{
			Types:   []schema.Type{schema.TypeInteger},
			Format:  schema.FormatInt64,
			Minimum: schema.Num(MinPage),
			Maximum: schema.Num(schema.BigInt),
		},
		{
			Types:    []schema.Type{schema.TypeInteger},
			Const:    float64(UnlimitedPage),
			HasConst: true,
		},
	}}
	return schema.Merge(limit, schema.Fields{"page": page})
}
