// Package listutil parses list query parameters shared by collection endpoints.
package listutil

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// PageParams carries pagination parameters parsed from a request.
// Paginate is false when the request did not ask for a page; the whole list is returned then.
type PageParams struct {
	Paginate bool
	Page     int // 1-indexed page number
	PerPage  int // rows per page
}

// Ordering is a DRF-style ordering: "-created_at" sorts created_at descending.
type Ordering struct {
	Field string
	Desc  bool
}

// String renders the ordering back into query form.
func (o Ordering) String() string {
	if o.Desc {
		return "-" + o.Field
	}
	return o.Field
}

// ListParams combines all list parameters.
type ListParams struct {
	PageParams
	Ordering Ordering
	Search   string // free-text search query
	Filter   string // named category filter, raw
}

// PageInfo carries pagination metadata for the response.
type PageInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// DefaultPerPage is the default number of rows per page.
const DefaultPerPage = 20

// PerPageOptions are the allowed rows-per-page values.
var PerPageOptions = []int{10, 20, 50, 100, 200}

// ParsePageParams extracts page and per_page from URL query values.
// PRE: none
// POST: returns valid PageParams with defaults applied
func ParsePageParams(q url.Values) PageParams {
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if !slices.Contains(PerPageOptions, perPage) {
		perPage = DefaultPerPage
	}
	return PageParams{Paginate: q.Has("page") || q.Has("per_page"), Page: page, PerPage: perPage}
}

// ParseOrdering reads an "ordering" value. Unknown fields fall back to def.
// PRE: def is an allowed ordering, optionally "-" prefixed
// POST: Field is always one of allowed
func ParseOrdering(raw string, allowed []string, def string) Ordering {
	parse := func(s string) Ordering {
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "-") {
			return Ordering{Field: s[1:], Desc: true}
		}
		return Ordering{Field: s}
	}
	o := parse(raw)
	if !slices.Contains(allowed, o.Field) {
		return parse(def)
	}
	return o
}

// ParseListParams parses all list parameters from URL query values.
func ParseListParams(q url.Values, allowedOrdering []string, defaultOrdering string) ListParams {
	return ListParams{
		PageParams: ParsePageParams(q),
		Ordering:   ParseOrdering(q.Get("ordering"), allowedOrdering, defaultOrdering),
		Search:     strings.TrimSpace(q.Get("search")),
		Filter:     strings.TrimSpace(q.Get("filter")),
	}
}

// NewPageInfo computes pagination metadata.
// PRE: total >= 0, perPage > 0, page >= 1
// POST: returns PageInfo with TotalPages computed; Page clamped to valid range
func NewPageInfo(page, perPage, total int) PageInfo {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	totalPages := max((total+perPage-1)/perPage, 1)
	page = min(max(page, 1), totalPages)
	return PageInfo{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}

// Offset returns the index of the first row on the current page.
// PRE: PageInfo is valid
// POST: Returns (Page-1) * PerPage
func (p PageInfo) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// End returns the index one past the last row on the current page.
// POST: Returns min(Offset+PerPage, Total)
func (p PageInfo) End() int {
	return min(p.Offset()+p.PerPage, p.Total)
}

// Window returns the rows of items on the current page.
func Window[T any](items []T, p PageInfo) []T {
	return items[min(p.Offset(), len(items)):min(p.End(), len(items))]
}
