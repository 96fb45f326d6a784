package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"

	"sensorstats/internal/engine"
)

// Field is one inferred column.
type Field struct {
	Name string
	Type engine.DataType
	// Lenient fields are read as text and cast to Type after loading.
	// Cells that do not parse become null.
	Lenient bool
}

// Schema is the ordered list of columns of an input file.
type Schema []Field

// Arrow converts the schema for the arrow CSV reader.
func (s Schema) Arrow() *arrow.Schema {
	fields := make([]arrow.Field, len(s))
	for i, f := range s {
		typ := f.Type.ArrowType()
		if f.Lenient {
			typ = engine.String.ArrowType()
		}
		fields[i] = arrow.Field{Name: f.Name, Type: typ, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// SensorTypes pins the types the analyses rely on regardless of what the
// sample looks like: measures are always floats and timestamps stay text
// until they are bucketed.
var SensorTypes = map[string]engine.DataType{
	"location":    engine.String,
	"timestamp":   engine.String,
	"temperature": engine.Float,
	"humidity":    engine.Float,
}

// InferSchema reads the header and up to opts.SampleRows data rows and picks
// the narrowest type every non-null sample fits: integer, then float, then
// string. Columns named in opts.Types take that type instead. A numeric
// override the sample contradicts makes the field lenient.
func InferSchema(content []byte, opts Options) (Schema, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = opts.comma()
	reader.FieldsPerRecord = -1

	// 1. Header
	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("CSV has no header row")
		}
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	// 2. Sample
	cols := make([]columnStats, len(headers))
	seen := make(map[string]bool, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			return nil, fmt.Errorf("CSV column %d has an empty name", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("CSV column %q appears twice", name)
		}
		seen[name] = true
		cols[i] = columnStats{name: name, ints: true, floats: true}
	}

	nulls := opts.nullSet()
	for n := 0; opts.SampleRows <= 0 || n < opts.SampleRows; n++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to sample CSV row %d: %w", n+2, err)
		}
		for i := range cols {
			if i >= len(row) {
				continue
			}
			cols[i].observe(row[i], nulls)
		}
	}

	// 3. Decide
	schema := make(Schema, len(cols))
	for i, c := range cols {
		f := Field{Name: c.name, Type: c.inferred()}
		if want, ok := opts.Types[c.name]; ok {
			switch {
			case want == engine.String:
			case want == engine.Float && (f.Type == engine.Integer || f.Type == engine.Float || c.values == 0):
			case want == engine.Integer && (f.Type == engine.Integer || c.values == 0):
			default:
				logger.Warnf("column %q: requested %s but sample is %s, unparseable cells read as null", c.name, want, f.Type)
				f.Lenient = true
			}
			f.Type = want
		}
		schema[i] = f
	}
	return schema, nil
}

type columnStats struct {
	name   string
	values int
	ints   bool
	floats bool
}

func (c *columnStats) observe(v string, nulls map[string]bool) {
	if nulls[v] {
		return
	}
	c.values++
	if c.ints {
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			c.ints = false
		}
	}
	if c.floats && !c.ints {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			c.floats = false
		}
	}
}

func (c columnStats) inferred() engine.DataType {
	switch {
	case c.values == 0:
		return engine.String
	case c.ints:
		return engine.Integer
	case c.floats:
		return engine.Float
	}
	return engine.String
}

// ValidateSensorTable checks that t has the columns the analyses read, with
// usable types.
func ValidateSensorTable(t *engine.Table) error {
	want := []struct {
		name  string
		types []engine.DataType
	}{
		{"sensor_id", []engine.DataType{engine.String, engine.Integer}},
		{"location", []engine.DataType{engine.String}},
		{"timestamp", []engine.DataType{engine.String, engine.Timestamp}},
		{"temperature", []engine.DataType{engine.Float, engine.Integer}},
		{"humidity", []engine.DataType{engine.Float, engine.Integer}},
	}
	var errs []error
	for _, w := range want {
		col, err := t.Column(w.name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ok := false
		for _, typ := range w.types {
			ok = ok || col.Type() == typ
		}
		if !ok {
			errs = append(errs, fmt.Errorf("column %q: %w: got %s, want one of %v", w.name, engine.ErrTypeMismatch, col.Type(), w.types))
		}
	}
	return errors.Join(errs...)
}

// castLenient replaces every lenient column of t, read as text, with one of
// the field's type. Cells that do not parse become null.
func castLenient(t *engine.Table, fields Schema) (*engine.Table, error) {
	cols := t.Columns()
	changed := false
	for i, f := range fields {
		if !f.Lenient || i >= len(cols) || cols[i].Type() != engine.String {
			continue
		}
		src := cols[i]
		b := engine.NewColumnBuilder(f.Name, f.Type, src.Len())
		bad := 0
		for r := 0; r < src.Len(); r++ {
			if src.IsNull(r) {
				b.AppendNull()
				continue
			}
			v, ok := parseCell(f.Type, src.Value(r).Text())
			if !ok {
				bad++
				b.AppendNull()
				continue
			}
			if err := b.Append(v); err != nil {
				return nil, err
			}
		}
		if bad > 0 {
			logger.Warnf("column %q: %d cells are not %s, read as null", f.Name, bad, f.Type)
		}
		cols[i] = b.Build()
		changed = true
	}
	if !changed {
		return t, nil
	}
	return engine.NewTable(cols...)
}

func parseCell(typ engine.DataType, s string) (engine.Value, bool) {
	s = strings.TrimSpace(s)
	switch typ {
	case engine.Integer:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return engine.IntValue(n), true
		}
	case engine.Float:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return engine.FloatValue(f), true
		}
	}
	return engine.Value{}, false
}
