package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DataType is the logical type of a column.
type DataType int

const (
	Integer DataType = iota
	Float
	String
	Timestamp
)

func (t DataType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Float:
		return "float"
	case String:
		return "string"
	case Timestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("DataType(%d)", int(t))
	}
}

// ParseDataType accepts the names produced by DataType.String.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "integer", "int", "int64":
		return Integer, nil
	case "float", "double", "float64":
		return Float, nil
	case "string", "text":
		return String, nil
	case "timestamp", "datetime":
		return Timestamp, nil
	}
	return 0, fmt.Errorf("unknown data type %q", s)
}

func (t DataType) numeric() bool { return t == Integer || t == Float }

// Value is a single, possibly null, cell.
type Value struct {
	typ   DataType
	valid bool
	i     int64
	f     float64
	s     string
	t     time.Time
}

func IntValue(v int64) Value { return Value{typ: Integer, valid: true, i: v} }
func FloatValue(v float64) Value { return Value{typ: Float, valid: true, f: v} }
func StringValue(v string) Value { return Value{typ: String, valid: true, s: v} }
func NullValue(t DataType) Value { return Value{typ: t} }
func TimestampValue(v time.Time) Value {
	return Value{typ: Timestamp, valid: true, t: v.UTC()}
}

// ValueOf converts a Go value into a Value of type t. nil becomes null.
func ValueOf(t DataType, v interface{}) (Value, error) {
	if v == nil {
		return NullValue(t), nil
	}
	switch t {
	case Integer:
		switch x := v.(type) {
		case int:
			return IntValue(int64(x)), nil
		case int32:
			return IntValue(int64(x)), nil
		case int64:
			return IntValue(x), nil
		case uint32:
			return IntValue(int64(x)), nil
		case uint64:
			return IntValue(int64(x)), nil
		}
	case Float:
		switch x := v.(type) {
		case float64:
			return FloatValue(x), nil
		case float32:
			return FloatValue(float64(x)), nil
		case int:
			return FloatValue(float64(x)), nil
		case int32:
			return FloatValue(float64(x)), nil
		case int64:
			return FloatValue(float64(x)), nil
		}
	case String:
		switch x := v.(type) {
		case string:
			return StringValue(x), nil
		case []byte:
			return StringValue(string(x)), nil
		}
	case Timestamp:
		if x, ok := v.(time.Time); ok {
			return TimestampValue(x), nil
		}
	}
	return Value{}, fmt.Errorf("%w: cannot use %T as %s", ErrTypeMismatch, v, t)
}

func (v Value) Type() DataType { return v.typ }
func (v Value) IsNull() bool { return !v.valid }
func (v Value) Int() int64 { return v.i }
func (v Value) Text() string { return v.s }
func (v Value) Time() time.Time { return v.t }

// Float returns the value as float64; integers are widened.
func (v Value) Float() float64 {
	if v.typ == Integer {
		return float64(v.i)
	}
	return v.f
}

// Interface returns the payload as a plain Go value, nil for null.
func (v Value) Interface() interface{} {
	if !v.valid {
		return nil
	}
	switch v.typ {
	case Integer:
		return v.i
	case Float:
		return v.f
	case String:
		return v.s
	case Timestamp:
		return v.t
	}
	return nil
}

// String renders the value the way it appears in CSV output and pivot column names.
func (v Value) String() string {
	if !v.valid {
		return ""
	}
	switch v.typ {
	case Integer:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case String:
		return v.s
	case Timestamp:
		return v.t.Format(time.RFC3339Nano)
	}
	return ""
}

// convert returns v as type t when that loses nothing.
func (v Value) convert(t DataType) (Value, bool) {
	if v.typ == t {
		return v, true
	}
	if !v.valid {
		return NullValue(t), true
	}
	switch {
	case v.typ == Integer && t == Float:
		return FloatValue(float64(v.i)), true
	case v.typ == Float && t == Integer:
		if v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) {
			return IntValue(int64(v.f)), true
		}
	}
	return Value{}, false
}

// Compare orders two values. Null sorts before every non-null value and
// integers and floats compare numerically with each other.
func Compare(a, b Value) int {
	switch {
	case !a.valid && !b.valid:
		return 0
	case !a.valid:
		return -1
	case !b.valid:
		return 1
	}
	if a.typ == Integer && b.typ == Integer {
		return cmpOrdered(a.i, b.i)
	}
	if a.typ.numeric() && b.typ.numeric() {
		return cmpFloat(a.Float(), b.Float())
	}
	if a.typ != b.typ {
		return cmpOrdered(a.typ, b.typ)
	}
	switch a.typ {
	case String:
		return strings.Compare(a.s, b.s)
	case Timestamp:
		return a.t.Compare(b.t)
	}
	return 0
}

// Equal reports whether Compare(a, b) == 0.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

func cmpOrdered[T int64 | DataType](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// cmpFloat places NaN after every other number.
func cmpFloat(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
