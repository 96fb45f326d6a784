package ingest

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/csv"
	"golang.org/x/sync/errgroup"

	"sensorstats/internal/engine"
)

// Bodies smaller than this are parsed by a single reader.
var minChunkBytes = 1 << 20

// LoadCSV reads a CSV file with a header row into a table.
func LoadCSV(path string, opts Options) (*engine.Table, error) {
	start := time.Now()
	logger.Infof("loading %s", path)

	// A. Read File
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	tbl, err := ParseCSV(content, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	logger.Infof("Load Complete. Rows: %d. Time: %v", tbl.NumRows(), time.Since(start))
	return tbl, nil
}

// ParseCSV infers a schema from content and parses the body in
// newline-aligned chunks concurrently. Chunks keep file order.
func ParseCSV(content []byte, opts Options) (*engine.Table, error) {
	fields, err := InferSchema(content, opts)
	if err != nil {
		return nil, err
	}
	schema := fields.Arrow()

	// B. Skip header row
	body := content[len(content):]
	if idx := bytes.IndexByte(content, '\n'); idx != -1 {
		body = content[idx+1:]
	}

	// C. Parallel parse
	chunks := splitChunks(body, opts.workers())
	parts := make([][]arrow.Record, len(chunks))
	var g errgroup.Group
	for i, chunk := range chunks {
		g.Go(func() error {
			recs, err := readChunk(chunk, schema, opts)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			parts[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var recs []arrow.Record
	for _, p := range parts {
		recs = append(recs, p...)
	}
	if len(recs) == 0 {
		return emptyTable(fields)
	}
	tbl, err := engine.FromRecords(recs...)
	if err != nil {
		return nil, err
	}
	return castLenient(tbl, fields)
}

func readChunk(chunk []byte, schema *arrow.Schema, opts Options) ([]arrow.Record, error) {
	r := csv.NewReader(bytes.NewReader(chunk), schema,
		csv.WithHeader(false),
		csv.WithComma(opts.comma()),
		csv.WithNullReader(true, opts.NullValues...),
		csv.WithChunk(opts.chunkRows()),
	)
	defer r.Release()

	var recs []arrow.Record
	for r.Next() {
		rec := r.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// splitChunks cuts body into at most n pieces that each end on a line
// boundary. Bodies with quoted fields are not split since a quoted newline
// would be taken for a record boundary.
func splitChunks(body []byte, n int) [][]byte {
	if len(body) == 0 {
		return nil
	}
	if n < 1 || len(body) < minChunkBytes || bytes.IndexByte(body, '"') != -1 {
		n = 1
	}
	chunkSize := len(body) / n
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		start, end := i*chunkSize, (i+1)*chunkSize
		if i == n-1 {
			end = len(body)
		}
		// Align to newlines
		if start > 0 {
			if j := bytes.IndexByte(body[start:], '\n'); j != -1 {
				start += j + 1
			} else {
				start = len(body)
			}
		}
		if end < len(body) {
			if j := bytes.IndexByte(body[end:], '\n'); j != -1 {
				end += j + 1
			} else {
				end = len(body)
			}
		}
		if start < end {
			out = append(out, body[start:end])
		}
	}
	return out
}

func emptyTable(fields Schema) (*engine.Table, error) {
	cols := make([]*engine.Column, len(fields))
	for i, f := range fields {
		cols[i] = engine.NewColumnBuilder(f.Name, f.Type, 0).Build()
	}
	return engine.NewTable(cols...)
}
