package engine

import (
	"fmt"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
)

// Table is an immutable, ordered set of equal-length named columns.
// Every operation returns a new Table; columns are shared, never mutated.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// NewTable validates that names are unique and lengths agree.
func NewTable(cols ...*Column) (*Table, error) {
	t := &Table{
		cols:  make([]*Column, 0, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if _, exists := t.index[c.name]; exists {
			return nil, duplicateColumn("new table", c.name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, &ColumnError{Op: "new table", Column: c.name,
				Err: fmt.Errorf("%w: %d rows, expected %d", ErrLengthMismatch, c.Len(), t.rows)}
		}
		t.index[c.name] = len(t.cols)
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// FromRecords assembles a table from Arrow record batches sharing one schema.
func FromRecords(recs ...arrow.Record) (*Table, error) {
	if len(recs) == 0 {
		return NewTable()
	}
	schema := recs[0].Schema()
	cols := make([]*Column, schema.NumFields())
	for i, field := range schema.Fields() {
		chunks := make([]arrow.Array, 0, len(recs))
		for _, rec := range recs {
			if !rec.Schema().Equal(schema) {
				return nil, fmt.Errorf("from records: schema mismatch: %s vs %s", rec.Schema(), schema)
			}
			chunks = append(chunks, rec.Column(i))
		}
		arr := chunks[0]
		if len(chunks) > 1 {
			var err error
			if arr, err = array.Concatenate(chunks, mem); err != nil {
				return nil, fmt.Errorf("from records: column %q: %w", field.Name, err)
			}
		}
		col, err := NewColumn(field.Name, arr)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return NewTable(cols...)
}

func (t *Table) NumRows() int { return t.rows }
func (t *Table) NumCols() int { return len(t.cols) }

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.name
	}
	return names
}

// Columns returns the columns in table order.
func (t *Table) Columns() []*Column {
	return append([]*Column(nil), t.cols...)
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column looks a column up by name.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, unknownColumn("column", name)
	}
	return t.cols[i], nil
}

func (t *Table) lookup(op string, names []string) ([]*Column, error) {
	cols := make([]*Column, len(names))
	for i, name := range names {
		idx, ok := t.index[name]
		if !ok {
			return nil, unknownColumn(op, name)
		}
		cols[i] = t.cols[idx]
	}
	return cols, nil
}

// Schema describes the table as an Arrow schema.
func (t *Table) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(t.cols))
	for i, c := range t.cols {
		fields[i] = arrow.Field{Name: c.name, Type: c.arr.DataType(), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// Record exposes the table as a single Arrow record batch.
func (t *Table) Record() arrow.Record {
	arrs := make([]arrow.Array, len(t.cols))
	for i, c := range t.cols {
		arrs[i] = c.arr
	}
	return array.NewRecord(t.Schema(), arrs, int64(t.rows))
}

// Project keeps only the named columns, in the order given.
func (t *Table) Project(names ...string) (*Table, error) {
	cols, err := t.lookup("project", names)
	if err != nil {
		return nil, err
	}
	out, err := NewTable(cols...)
	if err != nil {
		return nil, err
	}
	out.rows = t.rows
	return out, nil
}

// Select keeps the rows whose mask entry is true, preserving their order.
func (t *Table) Select(mask []bool) (*Table, error) {
	if len(mask) != t.rows {
		return nil, fmt.Errorf("select: %w: mask has %d entries, table has %d rows", ErrLengthMismatch, len(mask), t.rows)
	}
	indices := make([]int, 0, countTrue(mask))
	for i, keep := range mask {
		if keep {
			indices = append(indices, i)
		}
	}
	return t.Take(indices), nil
}

// Take gathers rows by index into a new table. Indices may repeat and must be in range.
func (t *Table) Take(indices []int) *Table {
	out := &Table{
		cols:  make([]*Column, len(t.cols)),
		index: t.index,
		rows:  len(indices),
	}
	for i, c := range t.cols {
		out.cols[i] = c.take(indices)
	}
	return out
}

// Head returns the first n rows, or the whole table when it is shorter.
func (t *Table) Head(n int) *Table {
	if n >= t.rows {
		return t
	}
	if n < 0 {
		n = 0
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return t.Take(indices)
}

// WithColumn appends a prebuilt column.
func (t *Table) WithColumn(col *Column) (*Table, error) {
	if t.HasColumn(col.name) {
		return nil, duplicateColumn("with column", col.name)
	}
	if len(t.cols) > 0 && col.Len() != t.rows {
		return nil, &ColumnError{Op: "with column", Column: col.name,
			Err: fmt.Errorf("%w: %d rows, expected %d", ErrLengthMismatch, col.Len(), t.rows)}
	}
	return NewTable(append(t.Columns(), col)...)
}

// AppendDerived adds a column computed row by row from the existing ones.
func (t *Table) AppendDerived(name string, typ DataType, fn func(Row) Value) (*Table, error) {
	if t.HasColumn(name) {
		return nil, duplicateColumn("append derived", name)
	}
	b := NewColumnBuilder(name, typ, t.rows)
	for i := 0; i < t.rows; i++ {
		if err := b.Append(fn(Row{t: t, i: i})); err != nil {
			return nil, err
		}
	}
	out, err := NewTable(append(t.Columns(), b.Build())...)
	if err != nil {
		return nil, err
	}
	out.rows = t.rows
	return out, nil
}

// Row is a read-only view of one record of a table.
type Row struct {
	t *Table
	i int
}

// Row returns a view of row i.
func (t *Table) Row(i int) Row { return Row{t: t, i: i} }

func (r Row) Index() int { return r.i }

// Lookup returns the value of the named column, ok is false when the column does not exist.
func (r Row) Lookup(name string) (Value, bool) {
	idx, ok := r.t.index[name]
	if !ok {
		return Value{}, false
	}
	return r.t.cols[idx].Value(r.i), true
}

// Values returns the row's cells in column order.
func (r Row) Values() []Value {
	vals := make([]Value, len(r.t.cols))
	for i, c := range r.t.cols {
		vals[i] = c.Value(r.i)
	}
	return vals
}

func countTrue(mask []bool) int {
	n := 0
	for _, b := range mask {
		if b {
			n++
		}
	}
	return n
}
