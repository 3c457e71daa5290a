package pagination

import (
	"strconv"
	"strings"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
)

// PageInfo is embedded into list responses.
type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
}

// Request carries normalized paging parameters.
type Request struct {
	Page     int
	PageSize int
}

// Parse normalizes raw page/page_size query values.
func Parse(rawPage, rawSize string) Request {
	page, _ := strconv.Atoi(strings.TrimSpace(rawPage))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(strings.TrimSpace(rawSize))
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return Request{Page: page, PageSize: size}
}

// Offset returns the row offset for the request.
func (r Request) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// Info builds the PageInfo for a response.
func (r Request) Info(total int64) PageInfo {
	return PageInfo{Page: r.Page, PageSize: r.PageSize, TotalCount: total}
}
