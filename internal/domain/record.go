package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Record is a field-keyed view of one row as it crosses the datastore
// boundary. The spreadsheet backend hands rows back as header-keyed maps, so
// the core works on the same shape instead of forcing every table through a
// struct.
type Record map[string]any

// ErrMissingID marks a row that cannot be tracked across runs.
var ErrMissingID = errors.New("record has no reservation_id")

// Str returns the trimmed string form of a field, or "" when absent or nil.
func (r Record) Str(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsBlank reports whether a field value counts as empty for merge purposes:
// nil, a whitespace-only string, or numeric zero. Numeric zero counting as
// blank conflates "not yet computed" with "legitimately zero"; the import
// pipelines were built on that behavior, so it stays.
func IsBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	case float32:
		return t == 0
	}
	return false
}
