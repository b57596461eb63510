// Package query filters, sorts and paginates candidate entity sets.
package query

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Pagination defaults.
const (
	DefaultPage       = 1
	DefaultPerPage    = 10
	DefaultMaxPerPage = 100
	// DefaultDateField is the timestamp field DateRange applies to.
	DefaultDateField = "created_at"
)

// Record is an entity the query engine can evaluate.
// Field returns the value of a named field and whether the entity has it.
type Record interface {
	GetID() uuid.UUID
	Field(name string) (any, bool)
}

// DateRange bounds a timestamp field. Both bounds are inclusive; a nil bound is open.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Contains reports whether t lies within the range.
func (r DateRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// Filters selects entities. All set criteria must match.
type Filters struct {
	// FieldFilters requires each named field to equal the given value.
	FieldFilters map[string]any `json:"field_filters,omitempty"`
	// SearchQuery is matched case-insensitively against SearchFields. Empty disables search.
	SearchQuery  string   `json:"search_query,omitempty"`
	SearchFields []string `json:"search_fields,omitempty"`
	// DateField names the timestamp DateRange applies to; empty means DefaultDateField.
	DateField string     `json:"date_field,omitempty"`
	DateRange *DateRange `json:"date_range,omitempty"`
	// IncludeIDs restricts results to the listed ids when non-nil.
	IncludeIDs []uuid.UUID `json:"include_ids,omitempty"`
	// ExcludeIDs removes the listed ids after every other filter.
	ExcludeIDs []uuid.UUID `json:"exclude_ids,omitempty"`
}

// IsZero reports whether f selects every entity.
func (f Filters) IsZero() bool {
	return len(f.FieldFilters) == 0 &&
		f.SearchQuery == "" &&
		f.DateRange == nil &&
		f.IncludeIDs == nil &&
		len(f.ExcludeIDs) == 0
}

func (f Filters) dateField() string {
	if f.DateField == "" {
		return DefaultDateField
	}
	return f.DateField
}

// SortOrder is the direction of a sort.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// ParseSortOrder maps "desc" (any case) to Desc and anything else to Asc.
func ParseSortOrder(s string) SortOrder {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

// Sort orders results by Field. Ties, and an empty Field, order by id.
type Sort struct {
	Field string    `json:"field,omitempty"`
	Order SortOrder `json:"order,omitempty"`
}

// Pagination selects one page of a result set.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	MaxPerPage int `json:"max_per_page"`
}

// DefaultPagination returns the first page with default sizes.
func DefaultPagination() Pagination {
	return Pagination{Page: DefaultPage, PerPage: DefaultPerPage, MaxPerPage: DefaultMaxPerPage}
}

// Normalize replaces non-positive values with defaults and clamps PerPage to MaxPerPage.
func (p Pagination) Normalize() Pagination {
	if p.Page <= 0 {
		p.Page = DefaultPage
	}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	if p.MaxPerPage <= 0 {
		p.MaxPerPage = DefaultMaxPerPage
	}
	if p.PerPage > p.MaxPerPage {
		p.PerPage = p.MaxPerPage
	}
	return p
}

// Offset returns the index of the first item on the page.
func (p Pagination) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PerPage
}

// PaginatedResult is one page of a filtered, sorted result set.
type PaginatedResult[T any] struct {
	Items      []T  `json:"items" bson:"items"`
	TotalCount int  `json:"total_count" bson:"total_count"`
	Page       int  `json:"page" bson:"page"`
	PerPage    int  `json:"per_page" bson:"per_page"`
	TotalPages int  `json:"total_pages" bson:"total_pages"`
	HasNext    bool `json:"has_next" bson:"has_next"`
	HasPrev    bool `json:"has_prev" bson:"has_prev"`
}

// NewPaginatedResult builds the page metadata for items out of total matches.
func NewPaginatedResult[T any](items []T, total int, p Pagination) PaginatedResult[T] {
	p = p.Normalize()
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if total > 0 {
		totalPages = (total + p.PerPage - 1) / p.PerPage
	}
	return PaginatedResult[T]{
		Items:      items,
		TotalCount: total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: totalPages,
		HasNext:    p.Page*p.PerPage < total,
		HasPrev:    p.Page > 1,
	}
}
