package engine

import "fmt"

// Pivot reshapes long rows (group, bucket, value) into one row per distinct
// group and one Float column per domain value, named by the value's String
// form. Each cell is the average of value over the rows of that
// (group, bucket) pair, or null when there were none. Rows come out in
// ascending group order, columns in domain order. Buckets outside the domain
// are ignored.
//
// The domain is supplied rather than read from the data so that the output
// schema does not depend on which buckets a particular input happens to cover.
func Pivot(t *Table, groupColumn, bucketColumn, valueColumn string, domain []Value, opts ...Option) (*Table, error) {
	if len(domain) == 0 {
		return nil, fmt.Errorf("pivot %q by %q: %w", groupColumn, bucketColumn, ErrEmptyDomain)
	}
	bucketCol, err := t.Column(bucketColumn)
	if err != nil {
		return nil, unknownColumn("pivot", bucketColumn)
	}

	// 1. Index the domain; column names must be unique and not shadow the group column
	slot := make(map[string]int, len(domain))
	names := make(map[string]bool, len(domain)+1)
	names[groupColumn] = true
	for i, d := range domain {
		dv, ok := d.convert(bucketCol.typ)
		if !ok || dv.IsNull() {
			return nil, typeMismatch("pivot", bucketColumn, "domain value %q (%s) for %s column", d, d.typ, bucketCol.typ)
		}
		name := d.String()
		if names[name] {
			return nil, duplicateColumn("pivot", name)
		}
		names[name] = true
		slot[encodeValue(dv)] = i
	}

	// 2. Long-format averages per (group, bucket)
	long, err := Aggregate(t, []string{groupColumn, bucketColumn}, []Measure{Avg(valueColumn)}, opts...)
	if err != nil {
		return nil, err
	}

	// 3. One output row per group, ascending
	groups, err := Distinct(long, []string{groupColumn})
	if err != nil {
		return nil, err
	}
	if groups, err = Sort(groups, Asc(groupColumn)); err != nil {
		return nil, err
	}
	groupKeys, _ := groups.Column(groupColumn)
	rowOf := make(map[string]int, groups.NumRows())
	for i := 0; i < groups.NumRows(); i++ {
		rowOf[encodeValue(groupKeys.Value(i))] = i
	}

	// 4. Fill the grid; missing pairs stay null
	width := len(domain)
	cells := make([]Value, groups.NumRows()*width)
	for i := range cells {
		cells[i] = NullValue(Float)
	}
	longGroup, _ := long.Column(groupColumn)
	longBucket, _ := long.Column(bucketColumn)
	longAvg := long.cols[2]
	for i := 0; i < long.NumRows(); i++ {
		col, ok := slot[encodeValue(longBucket.Value(i))]
		if !ok {
			continue
		}
		row := rowOf[encodeValue(longGroup.Value(i))]
		cells[row*width+col] = longAvg.Value(i)
	}

	out := []*Column{groupKeys}
	for c, d := range domain {
		b := NewColumnBuilder(d.String(), Float, groups.NumRows())
		for r := 0; r < groups.NumRows(); r++ {
			if err := b.Append(cells[r*width+c]); err != nil {
				return nil, err
			}
		}
		out = append(out, b.Build())
	}
	return NewTable(out...)
}

// Unpivot flattens a table produced by Pivot back into long form: one row
// (group, bucket, value) per non-null cell, in row order then domain order.
func Unpivot(wide *Table, groupColumn, bucketColumn, valueColumn string, domain []Value) (*Table, error) {
	if len(domain) == 0 {
		return nil, fmt.Errorf("unpivot %q: %w", groupColumn, ErrEmptyDomain)
	}
	groupCol, err := wide.Column(groupColumn)
	if err != nil {
		return nil, unknownColumn("unpivot", groupColumn)
	}
	if bucketColumn == groupColumn || valueColumn == groupColumn || bucketColumn == valueColumn {
		return nil, duplicateColumn("unpivot", bucketColumn)
	}
	cellCols := make([]*Column, len(domain))
	for i, d := range domain {
		col, err := wide.Column(d.String())
		if err != nil {
			return nil, unknownColumn("unpivot", d.String())
		}
		cellCols[i] = col
	}

	groups := NewColumnBuilder(groupColumn, groupCol.typ, wide.NumRows())
	buckets := NewColumnBuilder(bucketColumn, domain[0].typ, wide.NumRows())
	values := NewColumnBuilder(valueColumn, Float, wide.NumRows())
	for r := 0; r < wide.NumRows(); r++ {
		for i, col := range cellCols {
			v, ok := col.Float(r)
			if !ok {
				continue
			}
			if err := groups.Append(groupCol.Value(r)); err != nil {
				return nil, err
			}
			if err := buckets.Append(domain[i]); err != nil {
				return nil, err
			}
			values.floats.Append(v)
		}
	}
	return NewTable(groups.Build(), buckets.Build(), values.Build())
}
