package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// TaskFilters selects a page of the task collection. Zero values mean the
// filter is not applied; an empty or whitespace-only search is the same as
// no search.
type TaskFilters struct {
	Status   TaskStatus
	Priority TaskPriority
	Search   string
	Page     int
	PageSize int
}

func (f TaskFilters) Normalize() TaskFilters {
	if strings.TrimSpace(f.Search) == "" {
		f.Search = ""
	}
	if f.Page < 0 {
		f.Page = 0
	}
	if f.PageSize < 0 {
		f.PageSize = 0
	}
	return f
}

func (f TaskFilters) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return fmt.Errorf("%w: unsupported status %q", ErrInvalidFilters, f.Status)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return fmt.Errorf("%w: unsupported priority %q", ErrInvalidFilters, f.Priority)
	}
	if f.Page < 0 {
		return fmt.Errorf("%w: page must be positive", ErrInvalidFilters)
	}
	if f.PageSize < 0 || f.PageSize > MaxPageSize {
		return fmt.Errorf("%w: page size must be between 1 and %d", ErrInvalidFilters, MaxPageSize)
	}
	return nil
}

// Query encodes the applied filters as request query parameters.
func (f TaskFilters) Query() url.Values {
	normalized := f.Normalize()

	values := url.Values{}
	if normalized.Status != "" {
		values.Set("status", string(normalized.Status))
	}
	if normalized.Priority != "" {
		values.Set("priority", string(normalized.Priority))
	}
	if normalized.Search != "" {
		values.Set("search", normalized.Search)
	}
	if normalized.Page > 0 {
		values.Set("page", strconv.Itoa(normalized.Page))
	}
	if normalized.PageSize > 0 {
		values.Set("page_size", strconv.Itoa(normalized.PageSize))
	}
	return values
}

// Canonical is the order-independent encoding used to compare filter sets.
func (f TaskFilters) Canonical() string {
	return f.Query().Encode()
}

func (f TaskFilters) WithPage(page int) TaskFilters {
	f.Page = page
	return f
}

// WithCriteria replaces status, priority and search and resets to the first
// page, keeping the page size.
func (f TaskFilters) WithCriteria(status TaskStatus, priority TaskPriority, search string) TaskFilters {
	f.Status = status
	f.Priority = priority
	f.Search = search
	f.Page = 1
	return f
}

func (f TaskFilters) Active() bool {
	normalized := f.Normalize()
	return normalized.Status != "" || normalized.Priority != "" || normalized.Search != ""
}

// Resolved fills the page and page size the service would assume, so
// filter sets that select the same page compare equal.
func (f TaskFilters) Resolved() TaskFilters {
	f = f.Normalize()
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PageSize == 0 {
		f.PageSize = DefaultPageSize
	}
	return f
}
