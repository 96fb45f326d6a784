package engine

import (
	"fmt"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
)

// Columns are plain Arrow arrays, so buffers are shared freely between tables
// and left to the Go allocator's GC instead of reference counting.
var mem memory.Allocator = memory.NewGoAllocator()

var timestampType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

// ArrowType maps a DataType onto the Arrow type used to store it.
func (t DataType) ArrowType() arrow.DataType {
	switch t {
	case Integer:
		return arrow.PrimitiveTypes.Int64
	case Float:
		return arrow.PrimitiveTypes.Float64
	case Timestamp:
		return timestampType
	default:
		return arrow.BinaryTypes.String
	}
}

// Column is a named, typed, immutable sequence of nullable values.
type Column struct {
	name string
	typ  DataType
	arr  arrow.Array

	// typed views, exactly one is set
	ints   *array.Int64
	floats *array.Float64
	strs   *array.String
	times  *array.Timestamp
}

// NewColumn wraps an Arrow array. Only int64, float64, utf8 and timestamp arrays are accepted.
func NewColumn(name string, arr arrow.Array) (*Column, error) {
	c := &Column{name: name, arr: arr}
	switch a := arr.(type) {
	case *array.Int64:
		c.typ, c.ints = Integer, a
	case *array.Float64:
		c.typ, c.floats = Float, a
	case *array.String:
		c.typ, c.strs = String, a
	case *array.Timestamp:
		c.typ, c.times = Timestamp, a
	default:
		return nil, typeMismatch("new column", name, "unsupported arrow type %s", arr.DataType())
	}
	return c, nil
}

// ColumnOf builds a column from Go values; nil entries become nulls.
func ColumnOf(name string, typ DataType, values ...interface{}) (*Column, error) {
	b := NewColumnBuilder(name, typ, len(values))
	for _, raw := range values {
		v, err := ValueOf(typ, raw)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		if err := b.Append(v); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

func (c *Column) Name() string { return c.name }
func (c *Column) Type() DataType { return c.typ }
func (c *Column) Len() int { return c.arr.Len() }
func (c *Column) NullN() int { return c.arr.NullN() }
func (c *Column) IsNull(i int) bool { return c.arr.IsNull(i) }
func (c *Column) Array() arrow.Array { return c.arr }

// Value returns row i as a Value.
func (c *Column) Value(i int) Value {
	if c.arr.IsNull(i) {
		return NullValue(c.typ)
	}
	switch c.typ {
	case Integer:
		return IntValue(c.ints.Value(i))
	case Float:
		return FloatValue(c.floats.Value(i))
	case String:
		return StringValue(c.strs.Value(i))
	default:
		return TimestampValue(c.times.Value(i).ToTime(arrow.Microsecond))
	}
}

// Float returns a numeric cell widened to float64. ok is false for nulls and
// non-numeric columns.
func (c *Column) Float(i int) (v float64, ok bool) {
	if c.arr.IsNull(i) {
		return 0, false
	}
	switch c.typ {
	case Float:
		return c.floats.Value(i), true
	case Integer:
		return float64(c.ints.Value(i)), true
	}
	return 0, false
}

func (c *Column) renamed(name string) *Column {
	cp := *c
	cp.name = name
	return &cp
}

// take gathers the given rows into a new column.
func (c *Column) take(indices []int) *Column {
	b := NewColumnBuilder(c.name, c.typ, len(indices))
	for _, i := range indices {
		if c.arr.IsNull(i) {
			b.AppendNull()
			continue
		}
		switch c.typ {
		case Integer:
			b.ints.Append(c.ints.Value(i))
		case Float:
			b.floats.Append(c.floats.Value(i))
		case String:
			b.strs.Append(c.strs.Value(i))
		case Timestamp:
			b.times.Append(c.times.Value(i))
		}
	}
	return b.Build()
}

// ColumnBuilder accumulates values for one column.
type ColumnBuilder struct {
	name string
	typ  DataType
	b    array.Builder

	ints   *array.Int64Builder
	floats *array.Float64Builder
	strs   *array.StringBuilder
	times  *array.TimestampBuilder
}

func NewColumnBuilder(name string, typ DataType, capacity int) *ColumnBuilder {
	cb := &ColumnBuilder{name: name, typ: typ}
	switch typ {
	case Integer:
		cb.ints = array.NewInt64Builder(mem)
		cb.b = cb.ints
	case Float:
		cb.floats = array.NewFloat64Builder(mem)
		cb.b = cb.floats
	case Timestamp:
		cb.times = array.NewTimestampBuilder(mem, timestampType)
		cb.b = cb.times
	default:
		cb.typ = String
		cb.strs = array.NewStringBuilder(mem)
		cb.b = cb.strs
	}
	if capacity > 0 {
		cb.b.Reserve(capacity)
	}
	return cb
}

func (cb *ColumnBuilder) AppendNull() { cb.b.AppendNull() }

// Append adds v, converting integers to floats (and integral floats to
// integers) where nothing is lost.
func (cb *ColumnBuilder) Append(v Value) error {
	cv, ok := v.convert(cb.typ)
	if !ok {
		return typeMismatch("append", cb.name, "cannot store %s value in %s column", v.typ, cb.typ)
	}
	if cv.IsNull() {
		cb.b.AppendNull()
		return nil
	}
	switch cb.typ {
	case Integer:
		cb.ints.Append(cv.i)
	case Float:
		cb.floats.Append(cv.f)
	case String:
		cb.strs.Append(cv.s)
	case Timestamp:
		cb.times.Append(arrow.Timestamp(cv.t.UnixMicro()))
	}
	return nil
}

// Build finishes the column. The builder must not be used afterwards.
func (cb *ColumnBuilder) Build() *Column {
	arr := cb.b.NewArray()
	cb.b.Release()
	col, err := NewColumn(cb.name, arr)
	if err != nil {
		// builders only produce the four supported array types
		panic(err)
	}
	return col
}
