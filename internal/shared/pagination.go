package shared

const defaultPerPage = 20

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination normalises page and perPage and derives the page count.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	pages := total / perPage
	if total%perPage != 0 {
		pages++
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: pages}
}

// Offset is the row offset for the page, for LIMIT/OFFSET queries.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}
