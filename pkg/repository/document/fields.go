package document

import (
	"math"
	"time"
)

// Int returns field as an int64 when it holds an integral number of any numeric kind.
func (d Document) Int(field string) (int64, bool) {
	f, ok := toFloat(d[field])
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// Float returns field as a float64 when it holds a number.
func (d Document) Float(field string) (float64, bool) {
	return toFloat(d[field])
}

// Text returns field when it holds a string.
func (d Document) Text(field string) (string, bool) {
	s, ok := d[field].(string)
	return s, ok
}

// Bool returns field when it holds a boolean.
func (d Document) Bool(field string) (bool, bool) {
	b, ok := d[field].(bool)
	return b, ok
}

// Time returns field as a time. RFC 3339 strings are accepted because some backends
// persist times as text.
func (d Document) Time(field string) (time.Time, bool) {
	switch v := d[field].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		return t, err == nil
	default:
		return time.Time{}, false
	}
}

// Has reports whether field is present and non-nil.
func (d Document) Has(field string) bool {
	v, ok := d[field]
	return ok && v != nil
}
