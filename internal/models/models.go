// Package models holds the JSON shapes served by the API and written by the JSON formatter.
package models

import (
	"bytes"
	"math"
	"time"

	"github.com/goccy/go-json"

	"sensorstats/internal/analysis"
	"sensorstats/internal/engine"
)

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Record is one table row that marshals as an object with keys in column order.
type Record struct {
	Columns []string
	Values  []interface{}
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Page is a window of a result table.
type Page struct {
	Task    string   `json:"task,omitempty"`
	Title   string   `json:"title,omitempty"`
	Columns []Column `json:"columns"`
	Data    []Record `json:"data"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

type TaskSummary struct {
	Task      string  `json:"task"`
	Title     string  `json:"title"`
	Rows      int     `json:"rows"`
	Columns   int     `json:"columns"`
	ElapsedMS float64 `json:"elapsed_ms"`
}

type Summary struct {
	TotalRows         int           `json:"total_rows"`
	InRange           int           `json:"in_range"`
	OutOfRange        int           `json:"out_of_range"`
	InvalidTimestamps int           `json:"invalid_timestamps"`
	Locations         []string      `json:"locations"`
	Tasks             []TaskSummary `json:"tasks"`
	ElapsedMS         float64       `json:"elapsed_ms"`
}

type Status struct {
	Ready    bool   `json:"ready"`
	Source   string `json:"source"`
	Rows     int    `json:"rows"`
	LoadedAt string `json:"loaded_at,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Columns describes the schema of tbl.
func Columns(tbl *engine.Table) []Column {
	out := make([]Column, 0, tbl.NumCols())
	for _, c := range tbl.Columns() {
		out = append(out, Column{Name: c.Name(), Type: c.Type().String()})
	}
	return out
}

func jsonValue(v engine.Value) interface{} {
	if v.IsNull() {
		return nil
	}
	switch v.Type() {
	case engine.Timestamp:
		return v.String()
	case engine.Float:
		if f := v.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
	}
	return v.Interface()
}

// Records converts rows [lo, hi) of tbl. Nulls and non-finite floats become nil,
// timestamps RFC 3339 strings.
func Records(tbl *engine.Table, lo, hi int) []Record {
	names := tbl.ColumnNames()
	out := make([]Record, 0, hi-lo)
	for i := lo; i < hi; i++ {
		vals := tbl.Row(i).Values()
		rec := Record{Columns: names, Values: make([]interface{}, len(vals))}
		for c, v := range vals {
			rec.Values[c] = jsonValue(v)
		}
		out = append(out, rec)
	}
	return out
}

// NewPage cuts the window [offset, offset+limit) out of tbl. A limit of zero
// or less means every row from offset on.
func NewPage(tbl *engine.Table, limit, offset int) Page {
	total := tbl.NumRows()
	if limit <= 0 {
		limit = total
	}
	if offset < 0 {
		offset = 0
	}
	lo, hi := offset, offset+limit
	if lo > total {
		lo = total
	}
	if hi > total || hi < lo {
		hi = total
	}
	return Page{
		Columns: Columns(tbl),
		Data:    Records(tbl, lo, hi),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}
}

// NewSummary condenses a report into its counts and per-task shapes.
func NewSummary(r *analysis.Report) Summary {
	s := Summary{
		TotalRows:         r.TotalRows,
		InRange:           r.InRange,
		OutOfRange:        r.OutOfRange,
		InvalidTimestamps: r.InvalidTimestamps,
		Locations:         []string{},
		ElapsedMS:         milliseconds(r.Elapsed),
	}
	if r.Locations != nil {
		if col, err := r.Locations.Column(analysis.ColLocation); err == nil {
			for i := 0; i < col.Len(); i++ {
				s.Locations = append(s.Locations, col.Value(i).String())
			}
		}
	}
	for _, res := range r.Results {
		s.Tasks = append(s.Tasks, TaskSummary{
			Task:      res.Task,
			Title:     res.Title,
			Rows:      res.Table.NumRows(),
			Columns:   res.Table.NumCols(),
			ElapsedMS: milliseconds(res.Elapsed),
		})
	}
	return s
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
