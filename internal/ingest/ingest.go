// Package ingest loads sensor reading exports (CSV or Parquet) into engine tables.
package ingest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"

	"sensorstats/internal/engine"
)

// Load reads path, which may be a glob. Files are dispatched on extension
// (.parquet, anything else is CSV) and concatenated in lexical order; they
// must share a schema.
func Load(path string, opts Options) (*engine.Table, error) {
	paths, err := expand(path)
	if err != nil {
		return nil, err
	}

	recs := make([]arrow.Record, 0, len(paths))
	var first *engine.Table
	for _, p := range paths {
		tbl, err := loadFile(p, opts)
		if err != nil {
			return nil, err
		}
		if len(paths) == 1 {
			return tbl, nil
		}
		if first == nil {
			first = tbl
		} else if !tbl.Schema().Equal(first.Schema()) {
			return nil, fmt.Errorf("%s: schema %s does not match %s from %s", p, tbl.Schema(), first.Schema(), paths[0])
		}
		recs = append(recs, tbl.Record())
	}
	return engine.FromRecords(recs...)
}

func loadFile(path string, opts Options) (*engine.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return LoadParquet(path, opts)
	}
	return LoadCSV(path, opts)
}

func expand(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		return []string{pattern}, nil
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files match %q", pattern)
	}
	sort.Strings(matches)
	return matches, nil
}
