package output

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"sensorstats/internal/engine"
)

// TableFormatter draws a bordered text table. Nulls print as "null".
type TableFormatter struct {
	writer io.Writer
}

func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

func (t *TableFormatter) SetOutput(w io.Writer) {
	t.writer = w
}

func (t *TableFormatter) Format(tbl *engine.Table) error {
	table := tablewriter.NewWriter(t.writer)
	table.SetHeader(tbl.ColumnNames())
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	aligns := make([]int, tbl.NumCols())
	for i, c := range tbl.Columns() {
		aligns[i] = tablewriter.ALIGN_LEFT
		if c.Type() == engine.Integer || c.Type() == engine.Float {
			aligns[i] = tablewriter.ALIGN_RIGHT
		}
	}
	table.SetColumnAlignment(aligns)

	for i := 0; i < tbl.NumRows(); i++ {
		vals := tbl.Row(i).Values()
		cells := make([]string, len(vals))
		for c, v := range vals {
			if v.IsNull() {
				cells[c] = "null"
				continue
			}
			cells[c] = v.String()
		}
		table.Append(cells)
	}
	table.Render()
	return nil
}
