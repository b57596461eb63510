package query

import (
	"bytes"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Apply filters, sorts and paginates candidates. The input slice is not modified.
func Apply[T Record](candidates []T, f Filters, s Sort, p Pagination) PaginatedResult[T] {
	p = p.Normalize()
	matched := Filter(candidates, f)
	SortRecords(matched, s)

	total := len(matched)
	start := min((p.Page-1)*p.PerPage, total)
	end := min(start+p.PerPage, total)

	page := make([]T, end-start)
	copy(page, matched[start:end])
	return NewPaginatedResult(page, total, p)
}

// Count returns how many candidates match f.
func Count[T Record](candidates []T, f Filters) int {
	m := newMatcher(f)
	n := 0
	for _, c := range candidates {
		if m.match(c) {
			n++
		}
	}
	return n
}

// First returns the first match of f under s.
func First[T Record](candidates []T, f Filters, s Sort) (T, bool) {
	matched := Filter(candidates, f)
	if len(matched) == 0 {
		var zero T
		return zero, false
	}
	SortRecords(matched, s)
	return matched[0], true
}

// Filter returns the candidates that match f, in input order.
func Filter[T Record](candidates []T, f Filters) []T {
	m := newMatcher(f)
	out := make([]T, 0, len(candidates))
	for _, c := range candidates {
		if m.match(c) {
			out = append(out, c)
		}
	}
	return out
}

// SortRecords sorts records in place by s, breaking ties by id.
// Records missing the sort field come first in ascending order.
func SortRecords[T Record](records []T, s Sort) {
	desc := s.Order == Desc
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if s.Field != "" {
			av, aok := a.Field(s.Field)
			bv, bok := b.Field(s.Field)
			var c int
			switch {
			case !aok && !bok:
				c = 0
			case !aok:
				c = -1
			case !bok:
				c = 1
			default:
				c = Compare(av, bv)
			}
			if c != 0 {
				if desc {
					return c > 0
				}
				return c < 0
			}
		}
		return compareIDs(a.GetID(), b.GetID()) < 0
	})
}

func compareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

// matcher holds the pre-processed form of Filters.
type matcher struct {
	f         Filters
	search    string
	dateField string
	include   map[uuid.UUID]struct{}
	exclude   map[uuid.UUID]struct{}
}

func newMatcher(f Filters) *matcher {
	m := &matcher{
		f:         f,
		search:    strings.ToLower(strings.TrimSpace(f.SearchQuery)),
		dateField: f.dateField(),
	}
	if f.IncludeIDs != nil {
		m.include = idSet(f.IncludeIDs)
	}
	if len(f.ExcludeIDs) > 0 {
		m.exclude = idSet(f.ExcludeIDs)
	}
	return m
}

func (m *matcher) match(r Record) bool {
	for name, want := range m.f.FieldFilters {
		got, ok := r.Field(name)
		if !ok || !Equal(got, want) {
			return false
		}
	}

	if m.search != "" && !m.matchSearch(r) {
		return false
	}

	if m.f.DateRange != nil {
		v, ok := r.Field(m.dateField)
		if !ok {
			return false
		}
		t, ok := deref(v).(time.Time)
		if !ok || !m.f.DateRange.Contains(t) {
			return false
		}
	}

	id := r.GetID()
	if m.include != nil {
		if _, ok := m.include[id]; !ok {
			return false
		}
	}
	if m.exclude != nil {
		if _, ok := m.exclude[id]; ok {
			return false
		}
	}
	return true
}

// matchSearch is an OR over the search fields. No fields matches nothing.
func (m *matcher) matchSearch(r Record) bool {
	for _, name := range m.f.SearchFields {
		v, ok := r.Field(name)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(text(v)), m.search) {
			return true
		}
	}
	return false
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
