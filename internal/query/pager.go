package query

import "time"

// Page bounds one window of a paginated thread walk. Derived from request
// parameters, used once, never persisted.
type Page struct {
	Limit  int       // page size
	Number int       // 1-based page number
	Last   time.Time // snapshot bound: creation time of the newest item on the walk's first page
}

// NewPage builds a page from request parameters. A number below 1 is
// treated as the first page.
func NewPage(number, perPage int, last time.Time) Page {
	if number < 1 {
		number = 1
	}
	return Page{Limit: perPage, Number: number, Last: last}
}

// Offset returns how many thread groups precede this page.
func (p Page) Offset() int {
	return p.Limit * (p.Number - 1)
}

// seen returns how many items the client will have received including this
// page. The has-more boundary compares this against the total count.
func (p Page) seen() int {
	return p.Limit * p.Number
}

// HasMore reports whether another page exists after this one given the
// total matching count. The boundary is the page-size-scaled comparison
// seen < total: exactly-full final pages report no next page.
func (p Page) HasMore(total int) bool {
	return p.seen() < total
}

// Next returns the cursor for the following page. The cursor time freezes
// the walk's snapshot: it is set once, from the newest item on the first
// page, and propagated unchanged afterwards. Re-deriving it per page would
// shrink the matching set underneath the offset and skip groups. ok is
// false when no page remains.
func (p Page) Next(total int, last time.Time) (next Page, ok bool) {
	if !p.HasMore(total) {
		return Page{}, false
	}
	if !p.Last.IsZero() {
		last = p.Last
	}
	return Page{Limit: p.Limit, Number: p.Number + 1, Last: last}, true
}
