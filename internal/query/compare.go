package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Equal reports whether a field value matches a filter value.
// Numbers compare numerically across kinds, times by instant, and a string
// filter value is parsed into the field's type before comparing.
func Equal(field, want any) bool {
	field, want = deref(field), deref(want)
	if field == nil || want == nil {
		return field == nil && want == nil
	}

	if fn, ok := toFloat(field); ok {
		if wn, ok := toFloat(want); ok {
			return fn == wn
		}
		if ws, ok := want.(string); ok {
			wn, err := strconv.ParseFloat(strings.TrimSpace(ws), 64)
			return err == nil && fn == wn
		}
		return false
	}

	switch fv := field.(type) {
	case string:
		ws, ok := scalarText(want)
		return ok && fv == ws
	case bool:
		switch wv := want.(type) {
		case bool:
			return fv == wv
		case string:
			b, err := strconv.ParseBool(wv)
			return err == nil && fv == b
		}
		return false
	case time.Time:
		switch wv := want.(type) {
		case time.Time:
			return fv.Equal(wv)
		case string:
			t, err := time.Parse(time.RFC3339Nano, wv)
			return err == nil && fv.Equal(t)
		}
		return false
	case uuid.UUID:
		switch wv := want.(type) {
		case uuid.UUID:
			return fv == wv
		case string:
			id, err := uuid.Parse(wv)
			return err == nil && fv == id
		}
		return false
	case []string:
		// A list field matches when it contains the wanted value.
		ws, ok := scalarText(want)
		if !ok {
			return false
		}
		for _, s := range fv {
			if s == ws {
				return true
			}
		}
		return false
	}

	if fs, ok := field.(fmt.Stringer); ok {
		return fs.String() == text(want)
	}
	return fmt.Sprint(field) == fmt.Sprint(want)
}

// Compare orders two field values. Values of unrelated types order by their text form.
func Compare(a, b any) int {
	a, b = deref(a), deref(b)
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if an, ok := toFloat(a); ok {
		if bn, ok := toFloat(b); ok {
			return compareFloat(an, bn)
		}
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(text(a), text(b))
}

// scalarText is the text a filter value matches against a string field.
// Only strings, ids, numbers and bools have one; a time or a composite
// value never equals a string.
func scalarText(v any) (string, bool) {
	switch tv := v.(type) {
	case string:
		return tv, true
	case uuid.UUID:
		return tv.String(), true
	case bool:
		return strconv.FormatBool(tv), true
	}
	if n, ok := toFloat(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	return "", false
}

// text returns the searchable text form of a value.
func text(v any) string {
	switch tv := deref(v).(type) {
	case nil:
		return ""
	case string:
		return tv
	case []string:
		return strings.Join(tv, " ")
	case time.Time:
		return tv.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return tv.String()
	default:
		return fmt.Sprint(tv)
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		if math.IsNaN(n) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// deref unwraps the pointer types entities commonly expose for optional fields.
func deref(v any) any {
	switch p := v.(type) {
	case *string:
		if p == nil {
			return nil
		}
		return *p
	case *time.Time:
		if p == nil {
			return nil
		}
		return *p
	case *float64:
		if p == nil {
			return nil
		}
		return *p
	case *int:
		if p == nil {
			return nil
		}
		return *p
	case *int64:
		if p == nil {
			return nil
		}
		return *p
	case *bool:
		if p == nil {
			return nil
		}
		return *p
	case *uuid.UUID:
		if p == nil {
			return nil
		}
		return *p
	default:
		return v
	}
}
