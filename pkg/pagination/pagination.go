// Package pagination pages list endpoints. The body stays a plain JSON array
// so unpaged clients are unaffected; the total count and neighbour pages
// travel in the X-Total-Count and Link headers.
package pagination

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200

	TotalCountHeader = "X-Total-Count"
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts pagination parameters from the echo context. ok is
// false when the request names neither limit nor offset.
func FromContext(c echo.Context) (p Params, ok bool) {
	rawLimit, rawOffset := c.QueryParam("limit"), c.QueryParam("offset")
	if rawLimit == "" && rawOffset == "" {
		return Params{}, false
	}

	limit, _ := strconv.Atoi(rawLimit)
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(rawOffset)
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}, true
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page, never negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

// Slice returns the page of items p selects.
func Slice[T any](items []T, p Params) []T {
	if p.Offset >= len(items) {
		return []T{}
	}
	end := min(p.Offset+p.Limit, len(items))
	return items[p.Offset:end]
}

// Link renders the RFC 8288 Link header value for the neighbours of p. Other
// query parameters of u are preserved.
func (p Params) Link(u *url.URL, total int) string {
	var links []string
	add := func(rel string, offset int) {
		next := *u
		q := next.Query()
		q.Set("limit", strconv.Itoa(p.Limit))
		q.Set("offset", strconv.Itoa(offset))
		next.RawQuery = q.Encode()
		links = append(links, fmt.Sprintf("<%s>; rel=%q", next.RequestURI(), rel))
	}
	if p.HasNext(total) {
		add("next", p.NextOffset())
	}
	if p.HasPrevious() {
		add("prev", p.PreviousOffset())
	}
	return strings.Join(links, ", ")
}

// Apply pages items when the request asks for it and sets the headers.
// Without paging parameters items are returned unchanged.
func Apply[T any](c echo.Context, items []T) []T {
	p, ok := FromContext(c)
	if !ok {
		return items
	}
	h := c.Response().Header()
	h.Set(TotalCountHeader, strconv.Itoa(len(items)))
	if link := p.Link(c.Request().URL, len(items)); link != "" {
		h.Set("Link", link)
	}
	return Slice(items, p)
}
