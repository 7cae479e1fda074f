// Package pagination normalizes page/limit/sort inputs shared by every list endpoint
// and shapes the page envelope returned to clients.
package pagination

import (
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Request is a normalized page request.
type Request struct {
	Page  int
	Limit int
}

// Offset is the number of rows skipped before the page starts.
func (r Request) Offset() int {
	return (r.Page - 1) * r.Limit
}

// Normalize clamps raw page and limit values. Unparseable values fall back to the defaults.
func Normalize(rawPage, rawLimit string) Request {
	page, err := strconv.Atoi(strings.TrimSpace(rawPage))
	if err != nil {
		page = DefaultPage
	}
	limit, err := strconv.Atoi(strings.TrimSpace(rawLimit))
	if err != nil {
		limit = DefaultLimit
	}
	return NewRequest(page, limit)
}

// NewRequest clamps already-parsed values: page >= 1 and 1 <= limit <= MaxLimit.
// A zero limit means "not given" and becomes DefaultLimit.
func NewRequest(page, limit int) Request {
	if page < 1 {
		page = DefaultPage
	}
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 0:
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Request{Page: page, Limit: limit}
}

// Sort is a validated sort instruction. Field is always a member of the allow-list it was built from.
type Sort struct {
	Field string
	Order Order
}

// SortSpec maps client-facing sort keys to storage columns.
type SortSpec struct {
	Allowed map[string]string
	Default string
}

// Normalize validates rawBy against the allow-list and rawOrder against asc/desc.
// Invalid values fall back to the SortSpec default and desc.
func (s SortSpec) Normalize(rawBy, rawOrder string) Sort {
	by := strings.TrimSpace(rawBy)
	if _, ok := s.Allowed[by]; !ok {
		by = s.Default
	}
	order := Order(strings.ToLower(strings.TrimSpace(rawOrder)))
	if order != Asc && order != Desc {
		order = Desc
	}
	return Sort{Field: by, Order: order}
}

// Column returns the storage column of a normalized sort.
func (s SortSpec) Column(sort Sort) string {
	if col, ok := s.Allowed[sort.Field]; ok {
		return col
	}
	return s.Allowed[s.Default]
}

// Meta is the pagination block of a list response.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewMeta computes totalPages = ceil(total/limit) and the navigation flags.
func NewMeta(req Request, total int64) Meta {
	totalPages := 0
	if req.Limit > 0 && total > 0 {
		totalPages = int((total + int64(req.Limit) - 1) / int64(req.Limit))
	}
	return Meta{
		Page:       req.Page,
		Limit:      req.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    req.Page < totalPages,
		HasPrev:    req.Page > 1,
	}
}

// Page is one page of items plus its metadata.
type Page[T any] struct {
	Items []T `json:"data"`
	Meta  Meta `json:"pagination"`
}

// NewPage builds a Page, never returning a nil item slice.
func NewPage[T any](items []T, req Request, total int64) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Meta: NewMeta(req, total)}
}
