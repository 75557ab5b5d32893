package query

import (
	"math"
	"net/url"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type Page struct {
	Number int
	Limit  int
}

// ParsePage reads page and limit. Missing, malformed or non-positive values
// fall back to the defaults and limit is capped at MaxLimit. page is capped
// so that Offset cannot overflow; such a page is simply empty.
func ParsePage(values url.Values) Page {
	p := Page{Number: DefaultPage, Limit: DefaultLimit}

	if n, err := strconv.Atoi(values.Get("page")); err == nil && n > 0 {
		p.Number = n
	}
	if n, err := strconv.Atoi(values.Get("limit")); err == nil && n > 0 {
		p.Limit = min(n, MaxLimit)
	}
	p.Number = min(p.Number, math.MaxInt/p.Limit)
	return p
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// PageMeta is the pagination block of a listing response.
type PageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
	TotalNotes int `json:"totalNotes"`
}

func NewPageMeta(p Page, total int) PageMeta {
	totalPages := 0
	if p.Limit > 0 {
		totalPages = (total + p.Limit - 1) / p.Limit
	}
	return PageMeta{
		Page:       p.Number,
		Limit:      p.Limit,
		TotalPages: totalPages,
		TotalNotes: total,
	}
}
