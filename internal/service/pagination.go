package service

import (
	"math"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageRequest is a normalised offset-pagination window.
type PageRequest struct {
	Page  int
	Limit int
}

// ParsePageRequest reads page/limit query values. Anything that is not a
// positive integer falls back to the default; limit is capped at MaxLimit.
func ParsePageRequest(page, limit string) PageRequest {
	return NewPageRequest(atoiOr(page, DefaultPage), atoiOr(limit, DefaultLimit))
}

func NewPageRequest(page, limit int) PageRequest {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	// keep (page-1)*limit within int
	if maxPage := math.MaxInt/limit + 1; page > maxPage {
		page = maxPage
	}
	return PageRequest{Page: page, Limit: limit}
}

// Offset is the number of records to skip: (page-1)*limit.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PageCount returns ceil(total/limit).
func PageCount(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	l := int64(limit)
	return int((total + l - 1) / l)
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
