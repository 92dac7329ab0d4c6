// Package paginate exposes a growing prefix window over a task list.
package paginate

import "github.com/amonks/taskmirror/task"

const (
	// DefaultPageSize is how many tasks each page reveals.
	DefaultPageSize = 20

	// DefaultThreshold is how close to the end of the visible window, in
	// scroll units, a consumer should be before calling Advance.
	DefaultThreshold = 200
)

// Paginator tracks how many pages of a list are visible. It is not safe
// for concurrent use.
type Paginator struct {
	pageSize  int
	pages     int
	threshold float64

	// total is the length of the list last passed to VisibleSlice.
	total int

	// covered is true when the window reaches the end of that list.
	covered bool
}

// New creates a paginator. A non-positive page size uses DefaultPageSize.
func New(pageSize int) *Paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Paginator{
		pageSize:  pageSize,
		pages:     1,
		threshold: DefaultThreshold,
		covered:   true,
	}
}

// PageSize returns the configured page size.
func (p *Paginator) PageSize() int {
	return p.pageSize
}

// Pages returns the number of visible pages.
func (p *Paginator) Pages() int {
	return p.pages
}

// Limit returns the current window length.
func (p *Paginator) Limit() int {
	return p.pageSize * p.pages
}

// VisibleSlice returns list[:Limit()], clipped to the list length.
func (p *Paginator) VisibleSlice(list []task.Task) []task.Task {
	limit := p.Limit()
	p.total = len(list)
	p.covered = limit >= p.total
	if p.covered {
		return list
	}
	return list[:limit]
}

// HasMore reports whether the current window leaves tasks of the last
// visible list hidden.
func (p *Paginator) HasMore() bool {
	return !p.covered
}

// Advance reveals one more page, unless the window already covers the list
// last passed to VisibleSlice. It reports whether the window grew. Pages
// never exceed what that list needs.
func (p *Paginator) Advance() bool {
	if p.covered {
		return false
	}
	p.pages++
	p.covered = p.Limit() >= p.total
	return true
}

// ShouldAdvance reports whether a consumer remaining distanceToEnd scroll
// units from the end of the window should call Advance.
func (p *Paginator) ShouldAdvance(distanceToEnd float64) bool {
	return !p.covered && distanceToEnd <= p.threshold
}

// Reset returns to a single page.
func (p *Paginator) Reset() {
	p.pages = 1
	p.total = 0
	p.covered = true
}
