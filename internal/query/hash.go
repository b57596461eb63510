package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// canonical is the order-independent encoding of a query used for hashing.
type canonical struct {
	Fields     [][2]any    `json:"f,omitempty"`
	Search     string      `json:"q,omitempty"`
	SearchIn   []string    `json:"qf,omitempty"`
	DateField  string      `json:"df"`
	From       *time.Time  `json:"from,omitempty"`
	To         *time.Time  `json:"to,omitempty"`
	Include    *[]string   `json:"in,omitempty"`
	Exclude    []string    `json:"ex,omitempty"`
	Sort       *Sort       `json:"s,omitempty"`
	Pagination *Pagination `json:"p,omitempty"`
}

// Hash returns a deterministic key for a query: equal filters, sort and
// normalized pagination always produce the same hash.
func Hash(f Filters, s Sort, p Pagination) string {
	p = p.Normalize()
	if s.Order == "" {
		s.Order = Asc
	}
	c := canonicalFilters(f)
	c.Sort = &s
	c.Pagination = &p
	return digest(c)
}

// HashFilters returns a deterministic key for the filters alone.
func HashFilters(f Filters) string {
	return digest(canonicalFilters(f))
}

func canonicalFilters(f Filters) canonical {
	c := canonical{
		Search:    f.SearchQuery,
		SearchIn:  f.SearchFields,
		DateField: f.dateField(),
		Exclude:   sortedIDs(f.ExcludeIDs),
	}

	if len(f.FieldFilters) > 0 {
		names := make([]string, 0, len(f.FieldFilters))
		for name := range f.FieldFilters {
			names = append(names, name)
		}
		sort.Strings(names)
		c.Fields = make([][2]any, 0, len(names))
		for _, name := range names {
			c.Fields = append(c.Fields, [2]any{name, deref(f.FieldFilters[name])})
		}
	}

	if f.DateRange != nil {
		if f.DateRange.Start != nil {
			t := f.DateRange.Start.UTC()
			c.From = &t
		}
		if f.DateRange.End != nil {
			t := f.DateRange.End.UTC()
			c.To = &t
		}
	}

	if f.IncludeIDs != nil {
		ids := sortedIDs(f.IncludeIDs)
		if ids == nil {
			ids = []string{}
		}
		c.Include = &ids
	}
	return c
}

func digest(c canonical) string {
	data, err := json.Marshal(c)
	if err != nil {
		// Filter values that JSON cannot encode fall back to their printed form.
		data = []byte(fmt.Sprintf("%#v", c))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

func sortedIDs(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id.String())
	}
	sort.Strings(out)
	return out
}
