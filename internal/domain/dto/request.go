// Package dto defines Data Transfer Objects for HTTP request and response handling.
//
// DTOs are used to decouple the HTTP layer from the gateway types,
// providing parsing and validation of query strings and JSON bodies.
package dto

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guttosm/entity-gateway/internal/errs"
	"github.com/guttosm/entity-gateway/internal/query"
)

// ListRequest holds the reserved query parameters of a list endpoint.
// Every other parameter is an equality filter on the field of the same name.
type ListRequest struct {
	Page         int    `form:"page"`
	PerPage      int    `form:"per_page"`
	SortBy       string `form:"sort_by"`
	SortOrder    string `form:"sort_order"`
	Q            string `form:"q"`
	SearchFields string `form:"search_fields"`
	DateField    string `form:"date_field"`
	From         string `form:"from"`
	To           string `form:"to"`
	IncludeIDs   string `form:"include_ids"`
	ExcludeIDs   string `form:"exclude_ids"`
}

var reservedParams = map[string]struct{}{
	"page": {}, "per_page": {}, "sort_by": {}, "sort_order": {}, "q": {},
	"search_fields": {}, "date_field": {}, "from": {}, "to": {},
	"include_ids": {}, "exclude_ids": {},
}

const dateOnly = "2006-01-02"

// Pagination returns the requested page. Non-positive values fall back to defaults.
func (r ListRequest) Pagination() query.Pagination {
	return query.Pagination{Page: r.Page, PerPage: r.PerPage}.Normalize()
}

// Sort returns the requested order.
func (r ListRequest) Sort() query.Sort {
	return query.Sort{Field: strings.TrimSpace(r.SortBy), Order: query.ParseSortOrder(r.SortOrder)}
}

// Filters builds query filters from the request and the raw query values.
// defaultSearch is used when q is set without search_fields.
func (r ListRequest) Filters(values url.Values, defaultSearch []string) (query.Filters, error) {
	f := query.Filters{
		SearchQuery: strings.TrimSpace(r.Q),
		DateField:   strings.TrimSpace(r.DateField),
	}

	if fields := splitList(r.SearchFields); len(fields) > 0 {
		f.SearchFields = fields
	} else if f.SearchQuery != "" {
		f.SearchFields = append([]string(nil), defaultSearch...)
	}

	verr := &errs.ValidationError{}
	start, err := parseTime(r.From, false)
	if err != nil {
		verr.Fields = append(verr.Fields, errs.FieldError{Field: "from", Message: "must be RFC3339 or YYYY-MM-DD"})
	}
	end, err := parseTime(r.To, true)
	if err != nil {
		verr.Fields = append(verr.Fields, errs.FieldError{Field: "to", Message: "must be RFC3339 or YYYY-MM-DD"})
	}
	if start != nil || end != nil {
		f.DateRange = &query.DateRange{Start: start, End: end}
	}

	if _, present := values["include_ids"]; present {
		ids, err := parseIDs(r.IncludeIDs)
		if err != nil {
			verr.Fields = append(verr.Fields, errs.FieldError{Field: "include_ids", Message: "must be a comma separated list of UUIDs"})
		}
		if ids == nil {
			ids = []uuid.UUID{}
		}
		f.IncludeIDs = ids
	}
	ids, err := parseIDs(r.ExcludeIDs)
	if err != nil {
		verr.Fields = append(verr.Fields, errs.FieldError{Field: "exclude_ids", Message: "must be a comma separated list of UUIDs"})
	}
	f.ExcludeIDs = ids

	for name, vals := range values {
		if _, reserved := reservedParams[name]; reserved || len(vals) == 0 {
			continue
		}
		if f.FieldFilters == nil {
			f.FieldFilters = make(map[string]any)
		}
		f.FieldFilters[name] = vals[len(vals)-1]
	}

	if len(verr.Fields) > 0 {
		return query.Filters{}, verr
	}
	return f, nil
}

// parseTime accepts RFC3339 or a date. A date used as an upper bound covers the whole day.
func parseTime(s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseIDs(s string) ([]uuid.UUID, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
