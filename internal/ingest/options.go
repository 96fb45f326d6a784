package ingest

import (
	"runtime"

	"sensorstats/internal/engine"
)

// Options controls how input files are read.
type Options struct {
	// Workers is the number of chunks a large CSV body is parsed in. <= 0 means runtime.NumCPU().
	Workers int
	// SampleRows caps how many data rows type inference looks at. <= 0 samples every row.
	SampleRows int
	Comma      rune
	// NullValues are the CSV cells read as null.
	NullValues []string
	// Types overrides inference per column name.
	Types map[string]engine.DataType
	// ChunkRows is the arrow record batch size.
	ChunkRows int
}

// DefaultOptions reads comma separated sensor exports.
func DefaultOptions() Options {
	return Options{
		SampleRows: 0,
		Comma:      ',',
		NullValues: []string{"", "NULL", "null", "NA"},
		Types:      SensorTypes,
		ChunkRows:  64 * 1024,
	}
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.NumCPU()
	}
	return o.Workers
}

func (o Options) comma() rune {
	if o.Comma == 0 {
		return ','
	}
	return o.Comma
}

func (o Options) chunkRows() int {
	if o.ChunkRows <= 0 {
		return 64 * 1024
	}
	return o.ChunkRows
}

func (o Options) nullSet() map[string]bool {
	set := make(map[string]bool, len(o.NullValues))
	for _, v := range o.NullValues {
		set[v] = true
	}
	return set
}
