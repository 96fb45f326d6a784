package output

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v18/arrow/csv"

	"sensorstats/internal/engine"
)

// CSVFormatter writes a header row followed by one line per row. Nulls are
// empty fields.
type CSVFormatter struct {
	writer io.Writer
}

func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

func (c *CSVFormatter) SetOutput(w io.Writer) {
	c.writer = w
}

func (c *CSVFormatter) Format(tbl *engine.Table) error {
	rec := tbl.Record()
	defer rec.Release()

	w := csv.NewWriter(c.writer, rec.Schema(),
		csv.WithHeader(true),
		csv.WithNullWriter(""),
	)
	if err := w.Write(rec); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return w.Error()
}
