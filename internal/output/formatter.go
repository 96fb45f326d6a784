// Package output renders result tables as CSV, JSON Lines or a terminal table
// and writes the per-task output files.
package output

import (
	"fmt"
	"io"

	"sensorstats/internal/config"
	"sensorstats/internal/engine"
)

// Formatter defines the interface for output formatters.
type Formatter interface {
	// Format writes every row of tbl, header first where the format has one
	Format(tbl *engine.Table) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

// New returns the formatter for one of the config.Format* names.
func New(format string, w io.Writer) (Formatter, error) {
	switch format {
	case config.FormatCSV:
		return NewCSVFormatter(w), nil
	case config.FormatJSON:
		return NewJSONFormatter(w), nil
	case config.FormatTable:
		return NewTableFormatter(w), nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// Extension is the file suffix used for format.
func Extension(format string) string {
	switch format {
	case config.FormatJSON:
		return ".jsonl"
	case config.FormatTable:
		return ".txt"
	}
	return ".csv"
}
