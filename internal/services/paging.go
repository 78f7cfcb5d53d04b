package services

import "arena/internal/store"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PageRequest is a 1-based page number and size as sent by clients.
type PageRequest struct {
	Page  int
	Limit int
}

func (p PageRequest) normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	return p
}

func (p PageRequest) window() store.Page {
	p = p.normalize()
	return store.Page{Limit: p.Limit, Offset: (p.Page - 1) * p.Limit}
}

type Paged[T any] struct {
	Items      []T  `json:"items"`
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

func newPaged[T any](items []T, total int, req PageRequest) Paged[T] {
	req = req.normalize()
	if items == nil {
		items = []T{}
	}
	pages := pageCount(total, req.Limit)
	return Paged[T]{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: pages,
		HasMore:    req.Page < pages,
	}
}
