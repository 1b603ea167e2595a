// Package pagination normalizes zero based page controls and builds paged responses.
package pagination

// Request holds zero based paging controls.
type Request struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Normalize applies defaults and constraints.
func (r *Request) Normalize(opts ...Option) {
	r.Page, r.PageSize = Normalize(r.Page, r.PageSize, opts...)
}

// Offset returns the offset value.
func (r *Request) Offset() int {
	return r.Page * r.PageSize
}

// Limit returns the limit value.
func (r *Request) Limit() int {
	return r.PageSize
}

// Normalize returns page and pageSize with defaults applied: negative pages
// become 0, non positive sizes become the default size and sizes above the
// maximum are clamped.
func Normalize(page, pageSize int, opts ...Option) (int, int) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = o.DefaultPageSize
	}
	if pageSize > o.MaxPageSize {
		pageSize = o.MaxPageSize
	}
	return page, pageSize
}

type Response[T any] struct {
	Page        int   `json:"page"`
	PageSize    int   `json:"pageSize"`
	PageCount   int   `json:"pageCount"`
	TotalCount  int64 `json:"totalCount"`
	PageContent []T   `json:"pageContent"`
}

// NewResponse creates paginated response from items and total count.
func NewResponse[T any](items []T, totalCount int64, req Request) Response[T] {
	pageCount := 0
	if req.PageSize > 0 {
		pageCount = int(totalCount) / req.PageSize
		if int(totalCount)%req.PageSize > 0 {
			pageCount++
		}
	}

	return Response[T]{
		Page:        req.Page,
		PageSize:    req.PageSize,
		PageCount:   pageCount,
		TotalCount:  totalCount,
		PageContent: items,
	}
}
