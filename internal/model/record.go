package model

import (
	"encoding/json"
	"maps"
	"math"
	"strconv"
	"strings"
)

// Record is a single content record: a section document or a collection item.
type Record map[string]any

// Well-known record fields.
const (
	FieldID        = "id"
	FieldOrder     = "order"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// ID returns the record identity, or "" when the record has none.
func (r Record) ID() string {
	return r.String(FieldID)
}

// Order returns the sort position of the record (0 when unset).
func (r Record) Order() int {
	return r.Int(FieldOrder)
}

// String returns the field as a string. Numbers and booleans are formatted;
// nested values return "".
func (r Record) String(field string) string {
	switch v := r[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// Int returns the field as an integer. Strings holding numbers are parsed;
// anything unparseable yields 0.
func (r Record) Int(field string) int {
	switch v := r[field].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(math.Round(v))
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}

		if f, err := v.Float64(); err == nil {
			return int(math.Round(f))
		}
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}

		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(math.Round(f))
		}
	}

	return 0
}

// Bool returns the field as a boolean. "true", "on", "1" and "yes" count as true.
func (r Record) Bool(field string) bool {
	switch v := r[field].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "on", "1", "yes":
			return true
		}
	case json.Number:
		return v.String() != "0"
	case int:
		return v != 0
	case float64:
		return v != 0
	}

	return false
}

// Has reports whether the field is set to a non-empty value.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	if !ok || v == nil {
		return false
	}

	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}

	return true
}

// Map returns a nested record stored under field, or nil.
func (r Record) Map(field string) Record {
	switch v := r[field].(type) {
	case map[string]any:
		return v
	case Record:
		return v
	}

	return nil
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}

	return maps.Clone(r)
}

// Without returns a copy of the record without the named fields.
func (r Record) Without(fields ...string) Record {
	out := r.Clone()
	if out == nil {
		out = Record{}
	}

	for _, f := range fields {
		delete(out, f)
	}

	return out
}

// AsRecord converts a raw tree value into a Record when it is a map.
func AsRecord(v any) (Record, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	}

	return nil, false
}
