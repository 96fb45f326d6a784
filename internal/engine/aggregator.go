package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/zeebo/xxh3"
)

// AggOp is an aggregate function.
type AggOp int

const (
	AggAvg AggOp = iota
	AggSum
	AggCount
	AggMin
	AggMax
)

func (op AggOp) String() string {
	switch op {
	case AggAvg:
		return "avg"
	case AggSum:
		return "sum"
	case AggCount:
		return "count"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	}
	return fmt.Sprintf("AggOp(%d)", int(op))
}

// ParseAggOp accepts avg, sum, count, min and max in any case.
func ParseAggOp(s string) (AggOp, error) {
	for op := AggAvg; op <= AggMax; op++ {
		if strings.EqualFold(s, op.String()) {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown aggregate %q", s)
}

// Measure is one aggregated output column.
type Measure struct {
	Column string
	Op     AggOp
	As     string // output name, defaults to <op>_<column>
}

func Avg(column string) Measure { return Measure{Column: column, Op: AggAvg} }
func Sum(column string) Measure { return Measure{Column: column, Op: AggSum} }
func Count(column string) Measure { return Measure{Column: column, Op: AggCount} }
func Min(column string) Measure { return Measure{Column: column, Op: AggMin} }
func Max(column string) Measure { return Measure{Column: column, Op: AggMax} }

// Alias renames the output column.
func (m Measure) Alias(name string) Measure {
	m.As = name
	return m
}

func (m Measure) OutputName() string {
	if m.As != "" {
		return m.As
	}
	return m.Op.String() + "_" + m.Column
}

func (m Measure) outputType() DataType {
	if m.Op == AggCount {
		return Integer
	}
	return Float
}

// accumulator is the running state of one measure in one group. Every field
// merges commutatively, so partials can be combined in any grouping.
type accumulator struct {
	sum   float64
	count int64
	min   float64
	max   float64
}

func (a *accumulator) add(v float64) {
	if a.count == 0 {
		a.min, a.max = v, v
	} else {
		a.min = math.Min(a.min, v)
		a.max = math.Max(a.max, v)
	}
	a.sum += v
	a.count++
}

func (a *accumulator) merge(o accumulator) {
	if o.count == 0 {
		return
	}
	if a.count == 0 {
		*a = o
		return
	}
	a.sum += o.sum
	a.count += o.count
	a.min = math.Min(a.min, o.min)
	a.max = math.Max(a.max, o.max)
}

func (a accumulator) result(op AggOp) Value {
	if op == AggCount {
		return IntValue(a.count)
	}
	if a.count == 0 {
		return NullValue(Float)
	}
	switch op {
	case AggSum:
		return FloatValue(a.sum)
	case AggMin:
		return FloatValue(a.min)
	case AggMax:
		return FloatValue(a.max)
	default:
		return FloatValue(a.sum / float64(a.count))
	}
}

// groupTable maps GroupKeys to accumulators for one partition. Groups are
// numbered in order of first appearance.
type groupTable struct {
	measures int
	buckets  map[uint64][]int
	keys     []string
	hashes   []uint64
	first    []int // lowest row index seen for the group
	accs     []accumulator
}

func newGroupTable(measures int) *groupTable {
	return &groupTable{measures: measures, buckets: make(map[uint64][]int)}
}

func (g *groupTable) len() int { return len(g.keys) }

// find returns the group id for key, creating the group when it is new.
func (g *groupTable) find(key []byte, h uint64, row int) int {
	for _, id := range g.buckets[h] {
		if g.keys[id] == string(key) {
			return id
		}
	}
	id := len(g.keys)
	g.buckets[h] = append(g.buckets[h], id)
	g.keys = append(g.keys, string(key))
	g.hashes = append(g.hashes, h)
	g.first = append(g.first, row)
	for i := 0; i < g.measures; i++ {
		g.accs = append(g.accs, accumulator{})
	}
	return id
}

func (g *groupTable) slots(id int) []accumulator {
	return g.accs[id*g.measures : (id+1)*g.measures]
}

// absorb folds another partition's groups into g, keeping g's order and
// appending groups g has not seen.
func (g *groupTable) absorb(o *groupTable) {
	for id, key := range o.keys {
		mine := g.find([]byte(key), o.hashes[id], o.first[id])
		if o.first[id] < g.first[mine] {
			g.first[mine] = o.first[id]
		}
		dst := g.slots(mine)
		for m, acc := range o.slots(id) {
			dst[m].merge(acc)
		}
	}
}

// Aggregate groups rows by the values of groupBy and computes each measure
// per group. Null measure values are skipped. Output columns are groupBy
// followed by one column per measure; rows come out in order of each key's
// first appearance.
//
// Rows are scanned in contiguous partitions, each accumulating into its own
// groupTable; partials are merged in partition order afterwards.
func Aggregate(t *Table, groupBy []string, measures []Measure, opts ...Option) (*Table, error) {
	// 1. Resolve columns
	keyCols, err := t.lookup("aggregate", groupBy)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(groupBy)+len(measures))
	for _, name := range groupBy {
		if seen[name] {
			return nil, duplicateColumn("aggregate", name)
		}
		seen[name] = true
	}
	measureCols := make([]*Column, len(measures))
	for i, m := range measures {
		col, err := t.Column(m.Column)
		if err != nil {
			return nil, unknownColumn("aggregate", m.Column)
		}
		if m.Op != AggCount && !col.typ.numeric() {
			return nil, typeMismatch("aggregate", m.Column, "%s over %s column", m.Op, col.typ)
		}
		if seen[m.OutputName()] {
			return nil, duplicateColumn("aggregate", m.OutputName())
		}
		seen[m.OutputName()] = true
		measureCols[i] = col
	}

	// 2. Partition-local accumulation
	o := buildOptions(opts)
	spans := o.spans(t.NumRows())
	partials := make([]*groupTable, len(spans))

	parallel(spans, func(part int, s span) {
		g := newGroupTable(len(measures))
		enc := newKeyEncoder(keyCols)
		for row := s.lo; row < s.hi; row++ {
			key, h := enc.encode(row)
			accs := g.slots(g.find(key, h, row))
			for m, col := range measureCols {
				if col.IsNull(row) {
					continue
				}
				if v, ok := col.Float(row); ok {
					accs[m].add(v)
				} else {
					accs[m].count++
				}
			}
		}
		partials[part] = g
	})

	// 3. Merge in partition order
	final := partials[0]
	for _, p := range partials[1:] {
		final.absorb(p)
	}
	if len(groupBy) == 0 && final.len() == 0 {
		// a global aggregate always has exactly one row
		final.find(nil, xxh3.Hash(nil), 0)
	}
	logger.Debugf("aggregate by %v: %d rows, %d partitions, %d groups", groupBy, t.NumRows(), len(spans), final.len())

	// 4. Build output
	var out []*Column
	if len(groupBy) > 0 {
		keys, err := t.Project(groupBy...)
		if err != nil {
			return nil, err
		}
		out = keys.Take(final.first).Columns()
	}
	for m, measure := range measures {
		b := NewColumnBuilder(measure.OutputName(), measure.outputType(), final.len())
		for id := 0; id < final.len(); id++ {
			if err := b.Append(final.slots(id)[m].result(measure.Op)); err != nil {
				return nil, err
			}
		}
		out = append(out, b.Build())
	}
	res, err := NewTable(out...)
	if err != nil {
		return nil, err
	}
	res.rows = final.len()
	return res, nil
}

// Distinct returns each distinct combination of the named columns once, in
// order of first appearance.
func Distinct(t *Table, columns []string, opts ...Option) (*Table, error) {
	return Aggregate(t, columns, nil, opts...)
}
