package engine

import "sort"

// rankedRow lives only while ranks are being assigned.
type rankedRow struct {
	index int
	key   Value
	rank  int64
}

// Rank orders the whole table as one partition by orderColumn and appends an
// Integer column rankColumn holding its competition rank: equal keys share a
// rank and the next distinct key's rank is 1 + the number of rows before it
// (90, 90, 85 rank 1, 1, 3). Rows with equal keys stay in original row order.
// The returned table is in rank order.
func Rank(t *Table, orderColumn string, dir Direction, rankColumn string) (*Table, error) {
	col, err := t.Column(orderColumn)
	if err != nil {
		return nil, unknownColumn("rank", orderColumn)
	}
	if t.HasColumn(rankColumn) {
		return nil, duplicateColumn("rank", rankColumn)
	}

	rows := make([]rankedRow, t.NumRows())
	for i := range rows {
		rows[i] = rankedRow{index: i, key: col.Value(i)}
	}
	sort.Slice(rows, func(a, b int) bool {
		c := Compare(rows[a].key, rows[b].key)
		if dir == Descending {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return rows[a].index < rows[b].index
	})

	for i := range rows {
		if i > 0 && Equal(rows[i-1].key, rows[i].key) {
			rows[i].rank = rows[i-1].rank
		} else {
			rows[i].rank = int64(i + 1)
		}
	}

	order := make([]int, len(rows))
	b := NewColumnBuilder(rankColumn, Integer, len(rows))
	for i, r := range rows {
		order[i] = r.index
		b.ints.Append(r.rank)
	}
	return t.Take(order).WithColumn(b.Build())
}

// Limit returns the first n rows of an already ordered table, all of them
// when there are fewer than n.
func Limit(t *Table, n int) *Table {
	return t.Head(n)
}
