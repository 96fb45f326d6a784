package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Direction orders a sort key.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// ParseDirection accepts asc/ascending and desc/descending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return 0, fmt.Errorf("unknown sort direction %q", s)
}

// SortKey is one column of an ordering.
type SortKey struct {
	Column    string
	Direction Direction
}

func Asc(column string) SortKey { return SortKey{Column: column, Direction: Ascending} }
func Desc(column string) SortKey { return SortKey{Column: column, Direction: Descending} }

// Sort orders rows by keys, compared left to right. Ascending keys put nulls
// first, descending keys put them last. Rows equal on every key keep their
// original relative order.
func Sort(t *Table, keys ...SortKey) (*Table, error) {
	cols := make([]*Column, len(keys))
	for i, k := range keys {
		col, err := t.Column(k.Column)
		if err != nil {
			return nil, unknownColumn("sort", k.Column)
		}
		cols[i] = col
	}
	order := make([]int, t.NumRows())
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ra, rb := order[a], order[b]
		for i, col := range cols {
			c := Compare(col.Value(ra), col.Value(rb))
			if keys[i].Direction == Descending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return ra < rb
	})
	return t.Take(order), nil
}
