package api

import (
	"fmt"
	"strings"

	"sensorstats/internal/engine"
)

// parseMeasure reads op:column or op:column:alias, e.g. avg:temperature.
func parseMeasure(param string) (engine.Measure, error) {
	parts := strings.Split(param, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[1] == "" {
		return engine.Measure{}, fmt.Errorf("measure %q: want op:column[:alias]", param)
	}
	op, err := engine.ParseAggOp(parts[0])
	if err != nil {
		return engine.Measure{}, fmt.Errorf("measure %q: %w", param, err)
	}
	m := engine.Measure{Column: parts[1], Op: op}
	if len(parts) == 3 && parts[2] != "" {
		m = m.Alias(parts[2])
	}
	return m, nil
}

// parseSortKey reads column or column:direction, e.g. avg_temperature:desc.
func parseSortKey(param string) (engine.SortKey, error) {
	column, dir, found := strings.Cut(param, ":")
	if column == "" {
		return engine.SortKey{}, fmt.Errorf("sort %q: missing column", param)
	}
	if !found {
		return engine.Asc(column), nil
	}
	d, err := engine.ParseDirection(dir)
	if err != nil {
		return engine.SortKey{}, fmt.Errorf("sort %q: %w", param, err)
	}
	return engine.SortKey{Column: column, Direction: d}, nil
}
