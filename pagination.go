package datastore

import (
	"context"
)

// PageResult holds one window of a paginated listing.
type PageResult[T any] struct {
	Items      []T   // Items in the current window
	TotalCount int64 // Entities matching the criteria, ignoring the window
	Skip       int
	Take       int
	HasMore    bool // Whether entities exist past the window
}

// PaginationConfig bounds page sizes.
type PaginationConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	MinPageSize     int
}

// DefaultPaginationConfig returns sensible pagination defaults.
func DefaultPaginationConfig() PaginationConfig {
	return PaginationConfig{
		DefaultPageSize: 20,
		MaxPageSize:     100,
		MinPageSize:     1,
	}
}

// PageParams is a normalized zero-based page request.
type PageParams struct {
	Index int
	Size  int
}

// Paginator normalizes page requests and applies them to specifications.
type Paginator struct {
	config PaginationConfig
}

// NewPaginator creates a paginator with default configuration.
func NewPaginator() *Paginator {
	return &Paginator{config: DefaultPaginationConfig()}
}

// NewPaginatorWithConfig creates a paginator with custom configuration.
func NewPaginatorWithConfig(config PaginationConfig) *Paginator {
	return &Paginator{config: config}
}

// ParseParams validates and normalizes a page request.
func (p *Paginator) ParseParams(index, size int) PageParams {
	if size <= 0 {
		size = p.config.DefaultPageSize
	}
	if p.config.MaxPageSize > 0 && size > p.config.MaxPageSize {
		size = p.config.MaxPageSize
	}
	if size < p.config.MinPageSize {
		size = p.config.MinPageSize
	}
	if index < 0 {
		index = 0
	}
	return PageParams{Index: index, Size: size}
}

// Config returns the current pagination configuration.
func (p *Paginator) Config() PaginationConfig {
	return p.config
}

// ApplyPage returns spec restricted to the requested page.
func ApplyPage[T any](spec Spec[T], params PageParams) Spec[T] {
	return spec.Page(params.Index, params.Size)
}

// ListPage lists the window described by spec together with the total
// number of entities matching its criteria. When paging is disabled the
// whole result is one page.
func ListPage[T any](ctx context.Context, repo ReadRepository[T], spec Specification[T]) (PageResult[T], error) {
	var criteria Node
	if spec != nil {
		criteria = spec.Criteria()
	}

	total, err := repo.Count(ctx, criteria)
	if err != nil {
		return PageResult[T]{}, err
	}

	items, err := repo.List(ctx, spec)
	if err != nil {
		return PageResult[T]{}, err
	}

	result := PageResult[T]{
		Items:      items,
		TotalCount: total,
		Take:       len(items),
	}
	if spec != nil && spec.IsPagingEnabled() {
		result.Skip = spec.Skip()
		result.Take = spec.Take()
	}
	result.HasMore = int64(result.Skip+len(items)) < total

	return result, nil
}
