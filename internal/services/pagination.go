package services

import (
	"math"
	"strconv"
	"strings"
)

// PageLimits bounds page sizes for paginated reads
type PageLimits struct {
	DefaultSize int
	MaxSize     int
}

var DefaultPageLimits = PageLimits{DefaultSize: 50, MaxSize: 100}

// Parse coerces raw query values. Malformed or out-of-range input falls back
// to page 1 and the default size; sizes above the maximum are capped.
func (l PageLimits) Parse(rawPage, rawPageSize string) (page, pageSize int) {
	page, _ = strconv.Atoi(strings.TrimSpace(rawPage))
	pageSize, _ = strconv.Atoi(strings.TrimSpace(rawPageSize))
	return l.Clamp(page, pageSize)
}

// Clamp bounds page so that (page-1)*pageSize always fits an int32 offset.
func (l PageLimits) Clamp(page, pageSize int) (int, int) {
	l = l.normalized()

	if page < 1 {
		page = 1
	}
	if page > l.MaxPage() {
		page = l.MaxPage()
	}
	if pageSize < 1 {
		pageSize = l.DefaultSize
	}
	if pageSize > l.MaxSize {
		pageSize = l.MaxSize
	}
	return page, pageSize
}

// MaxPage is the highest page number Clamp lets through.
func (l PageLimits) MaxPage() int {
	return math.MaxInt32 / l.normalized().MaxSize
}

func (l PageLimits) normalized() PageLimits {
	if l.MaxSize < 1 {
		l.MaxSize = DefaultPageLimits.MaxSize
	}
	if l.DefaultSize < 1 || l.DefaultSize > l.MaxSize {
		l.DefaultSize = min(DefaultPageLimits.DefaultSize, l.MaxSize)
	}
	return l
}

// ParsePagination applies DefaultPageLimits.
func ParsePagination(rawPage, rawPageSize string) (int, int) {
	return DefaultPageLimits.Parse(rawPage, rawPageSize)
}
