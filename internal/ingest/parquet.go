package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"sensorstats/internal/engine"
)

// LoadParquet reads every row of a parquet file into a table. Column types
// follow the first non-null value of each column unless opts.Types names
// the column.
func LoadParquet(path string, opts Options) (*engine.Table, error) {
	start := time.Now()
	logger.Infof("loading %s", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pqFile, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	var names []string
	for _, f := range pqFile.Schema().Fields() {
		names = append(names, f.Name())
	}

	rows := make([]map[string]interface{}, 0, pqFile.NumRows())
	reader := parquet.NewReader(pqFile)
	defer reader.Close()
	for {
		row := make(map[string]interface{})
		if err := reader.Read(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows), err)
		}
		rows = append(rows, row)
	}

	tbl, err := fromMaps(names, rows, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Infof("Load Complete. Rows: %d. Time: %v", tbl.NumRows(), time.Since(start))
	return tbl, nil
}

// fromMaps builds one column per name from row maps.
func fromMaps(names []string, rows []map[string]interface{}, opts Options) (*engine.Table, error) {
	cols := make([]*engine.Column, len(names))
	for c, name := range names {
		typ, ok := opts.Types[name]
		if !ok {
			typ = engine.String
			for _, row := range rows {
				if raw := row[name]; raw != nil {
					typ = goType(raw)
					break
				}
			}
		}
		b := engine.NewColumnBuilder(name, typ, len(rows))
		for r, row := range rows {
			v, err := coerce(typ, row[name])
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", r, name, err)
			}
			if err := b.Append(v); err != nil {
				return nil, err
			}
		}
		cols[c] = b.Build()
	}
	return engine.NewTable(cols...)
}

func goType(raw interface{}) engine.DataType {
	switch raw.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		return engine.Integer
	case float32, float64:
		return engine.Float
	case time.Time:
		return engine.Timestamp
	}
	return engine.String
}

// coerce converts a decoded parquet value to typ. Anything can become a
// string; numbers convert between integer and float.
func coerce(typ engine.DataType, raw interface{}) (engine.Value, error) {
	if raw == nil {
		return engine.NullValue(typ), nil
	}
	switch x := raw.(type) {
	case []byte:
		raw = string(x)
	case float32:
		raw = float64(x)
	case int8:
		raw = int64(x)
	case int16:
		raw = int64(x)
	case uint8:
		raw = int64(x)
	case uint16:
		raw = int64(x)
	case uint32:
		raw = int64(x)
	}
	if typ == engine.String {
		switch x := raw.(type) {
		case string:
			return engine.StringValue(x), nil
		case time.Time:
			return engine.StringValue(x.UTC().Format(time.RFC3339Nano)), nil
		default:
			return engine.StringValue(fmt.Sprint(x)), nil
		}
	}
	return engine.ValueOf(typ, raw)
}
