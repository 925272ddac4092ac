package domain

import "math"

const (
	DefaultLimit = 10
	DefaultPage  = 1
)

// Page selects a window of the latest-events listing. Pages are 1-based.
type Page struct {
	Limit int
	Page  int
}

// NewPage applies the defaults to any value that is not a positive integer.
func NewPage(limit, page int) Page {
	if limit < 1 {
		limit = DefaultLimit
	}
	if page < 1 {
		page = DefaultPage
	}
	return Page{Limit: limit, Page: page}
}

// Offset is Limit*(Page-1), saturating at math.MaxInt so that pages far past
// the end stay past the end instead of wrapping negative.
func (p Page) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return p.Limit * (p.Page - 1)
}
