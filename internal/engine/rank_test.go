package engine

import (
	"errors"
	"testing"
)

func TestRank(t *testing.T) {
	tests := []struct {
		name      string
		keys      []interface{}
		avgs      []interface{}
		dir       Direction
		wantOrder []interface{}
		wantRanks []interface{}
	}{
		{
			name:      "ties share a rank and consume the next",
			keys:      []interface{}{"C", "A", "D", "B"},
			avgs:      []interface{}{25.0, 30.0, 20.0, 30.0},
			dir:       Descending,
			wantOrder: []interface{}{"A", "B", "C", "D"},
			wantRanks: []interface{}{int64(1), int64(1), int64(3), int64(4)},
		},
		{
			name:      "three way tie at rank two",
			keys:      []interface{}{"a", "b", "c", "d", "e"},
			avgs:      []interface{}{9.0, 5.0, 5.0, 5.0, 1.0},
			dir:       Descending,
			wantOrder: []interface{}{"a", "b", "c", "d", "e"},
			wantRanks: []interface{}{int64(1), int64(2), int64(2), int64(2), int64(5)},
		},
		{
			name:      "ascending",
			keys:      []interface{}{"x", "y", "z"},
			avgs:      []interface{}{3.0, 1.0, 2.0},
			dir:       Ascending,
			wantOrder: []interface{}{"y", "z", "x"},
			wantRanks: []interface{}{int64(1), int64(2), int64(3)},
		},
		{
			name:      "nulls last when descending",
			keys:      []interface{}{"n1", "p", "n2", "q"},
			avgs:      []interface{}{nil, 2.0, nil, 2.0},
			dir:       Descending,
			wantOrder: []interface{}{"p", "q", "n1", "n2"},
			wantRanks: []interface{}{int64(1), int64(1), int64(3), int64(3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := mustTable(t,
				mustColumn(t, "location", String, tt.keys...),
				mustColumn(t, "avg_temperature", Float, tt.avgs...),
			)
			out, err := Rank(tbl, "avg_temperature", tt.dir, "rank_temp")
			if err != nil {
				t.Fatal(err)
			}
			assertValues(t, out, "location", tt.wantOrder...)
			assertValues(t, out, "rank_temp", tt.wantRanks...)
		})
	}
}

func TestRankIsStableUnderTies(t *testing.T) {
	// every key equal: output must be the input order, all rank 1
	keys := []interface{}{"e", "d", "c", "b", "a"}
	tbl := mustTable(t,
		mustColumn(t, "location", String, keys...),
		mustColumn(t, "avg_temperature", Float, 1.0, 1.0, 1.0, 1.0, 1.0),
	)
	for i := 0; i < 3; i++ {
		out, err := Rank(tbl, "avg_temperature", Descending, "rank_temp")
		if err != nil {
			t.Fatal(err)
		}
		assertValues(t, out, "location", keys...)
		assertValues(t, out, "rank_temp", int64(1), int64(1), int64(1), int64(1), int64(1))
	}
}

func TestRankErrors(t *testing.T) {
	tbl := readings(t)
	if _, err := Rank(tbl, "avg", Descending, "rank"); !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("Expected unknown column, got %v", err)
	}
	if _, err := Rank(tbl, "temperature", Descending, "humidity"); !errors.Is(err, ErrDuplicateColumn) {
		t.Errorf("Expected duplicate column, got %v", err)
	}
}

func TestLimit(t *testing.T) {
	tbl := mustTable(t,
		mustColumn(t, "location", String, "a", "b", "c"),
		mustColumn(t, "avg_temperature", Float, 3.0, 2.0, 1.0),
	)
	ranked, err := Rank(tbl, "avg_temperature", Descending, "rank_temp")
	if err != nil {
		t.Fatal(err)
	}

	if got := Limit(ranked, 5); got.NumRows() != 3 {
		t.Errorf("Limit(5) on 3 rows: expected 3, got %d", got.NumRows())
	}
	assertValues(t, Limit(ranked, 2), "location", "a", "b")
	if got := Limit(ranked, 0); got.NumRows() != 0 || got.NumCols() != 3 {
		t.Errorf("Limit(0): expected 0x3, got %dx%d", got.NumRows(), got.NumCols())
	}
}
