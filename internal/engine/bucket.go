package engine

import (
	"strings"
	"time"
)

// Layouts tried in order. Values without a zone offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
}

// ParseTimestamp reads s as a UTC instant.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, &TimestampError{Value: s}
}

// HourOfDay returns the UTC hour (0-23) of a Timestamp or timestamp string as
// an Integer value. Null in gives null out; an unparseable string gives null
// and a *TimestampError.
func HourOfDay(v Value) (Value, error) {
	if v.IsNull() {
		return NullValue(Integer), nil
	}
	switch v.typ {
	case Timestamp:
		return IntValue(int64(v.t.UTC().Hour())), nil
	case String:
		ts, err := ParseTimestamp(v.s)
		if err != nil {
			return NullValue(Integer), err
		}
		return IntValue(int64(ts.Hour())), nil
	}
	return NullValue(Integer), &TimestampError{Value: v.String()}
}

// WithHourOfDay derives an Integer column dst holding the hour of src. Rows
// whose timestamp cannot be parsed keep all their other values and get a null
// bucket; their count is returned as invalid.
func WithHourOfDay(t *Table, src, dst string) (out *Table, invalid int, err error) {
	col, err := t.Column(src)
	if err != nil {
		return nil, 0, unknownColumn("hour of day", src)
	}
	if col.typ != String && col.typ != Timestamp {
		return nil, 0, typeMismatch("hour of day", src, "cannot bucket %s column", col.typ)
	}
	out, err = t.AppendDerived(dst, Integer, func(r Row) Value {
		hour, err := HourOfDay(col.Value(r.Index()))
		if err != nil {
			invalid++
		}
		return hour
	})
	if err != nil {
		return nil, 0, err
	}
	if invalid > 0 {
		logger.Warnf("hour of day: %d of %d rows in %q have an unparseable timestamp", invalid, t.NumRows(), src)
	}
	return out, invalid, nil
}
