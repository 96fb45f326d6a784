package output

import (
	"io"

	"github.com/goccy/go-json"

	"sensorstats/internal/engine"
	"sensorstats/internal/models"
)

// JSONFormatter outputs rows as JSON Lines, keys in column order.
type JSONFormatter struct {
	writer io.Writer
}

func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

func (j *JSONFormatter) Format(tbl *engine.Table) error {
	encoder := json.NewEncoder(j.writer)
	for _, rec := range models.Records(tbl, 0, tbl.NumRows()) {
		if err := encoder.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
