package repository

// MaxOffset bounds how deep a page request may reach.  Larger page numbers
// are clamped to the last page that starts at or before it.
const MaxOffset = 1_000_000

// Page is a 1-based page request.  Offset and Limit translate it to SQL.
// Pages of the same size over a totally ordered result set partition it:
// page n covers rows [(n-1)*size, n*size).
type Page struct {
	Number int
	Size   int
}

// NewPage clamps number to [1, MaxOffset/size+1] and size to [1, max],
// using def when size is not positive.
func NewPage(number, size, def, max int) Page {
	if size < 1 {
		size = def
	}
	if size > max {
		size = max
	}
	if number < 1 {
		number = 1
	}
	if last := MaxOffset/size + 1; number > last {
		number = last
	}
	return Page{Number: number, Size: size}
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// Limit is the maximum number of rows on this page.
func (p Page) Limit() int { return p.Size }
