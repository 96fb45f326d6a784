package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensorstats/internal/engine"
)

const sensorCSV = `sensor_id,location,timestamp,temperature,humidity
1,Kitchen,2024-01-01T14:35:00,21,40.5
2,Garage,2024-01-01T15:00:00,35.5,
3,,2024-01-01T16:10:00,17.25,55
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCSV(t *testing.T) {
	tbl, err := ParseCSV([]byte(sensorCSV), DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, ValidateSensorTable(tbl))

	assert.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, []string{"sensor_id", "location", "timestamp", "temperature", "humidity"}, tbl.ColumnNames())

	types := map[string]engine.DataType{}
	for _, c := range tbl.Columns() {
		types[c.Name()] = c.Type()
	}
	assert.Equal(t, engine.Integer, types["sensor_id"])
	assert.Equal(t, engine.String, types["location"])
	assert.Equal(t, engine.String, types["timestamp"])
	// whole numbers in the sample are still read as floats for measures
	assert.Equal(t, engine.Float, types["temperature"])
	assert.Equal(t, engine.Float, types["humidity"])

	temp, err := tbl.Column("temperature")
	require.NoError(t, err)
	v, ok := temp.Float(0)
	require.True(t, ok)
	assert.Equal(t, 21.0, v)

	hum, err := tbl.Column("humidity")
	require.NoError(t, err)
	assert.True(t, hum.IsNull(1), "empty cell should be null")

	loc, err := tbl.Column("location")
	require.NoError(t, err)
	assert.True(t, loc.IsNull(2), "empty string cell should be null")
}

func TestParseCSVHeaderOnly(t *testing.T) {
	tbl, err := ParseCSV([]byte("sensor_id,location,timestamp,temperature,humidity\n"), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.NumRows())
	assert.Equal(t, 5, tbl.NumCols())
	require.NoError(t, ValidateSensorTable(tbl))
}

func TestParseCSVParallelChunksKeepOrder(t *testing.T) {
	old := minChunkBytes
	minChunkBytes = 1
	defer func() { minChunkBytes = old }()

	var b strings.Builder
	b.WriteString("sensor_id,location,timestamp,temperature,humidity\n")
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&b, "%d,Room%d,2024-01-01T%02d:00:00,%d.5,50\n", i, i%7, i%24, i%40)
	}

	serial := DefaultOptions()
	serial.Workers = 1
	parallel := DefaultOptions()
	parallel.Workers = 8

	want, err := ParseCSV([]byte(b.String()), serial)
	require.NoError(t, err)
	got, err := ParseCSV([]byte(b.String()), parallel)
	require.NoError(t, err)

	require.Equal(t, 500, got.NumRows())
	for _, name := range want.ColumnNames() {
		wc, _ := want.Column(name)
		gc, err := got.Column(name)
		require.NoError(t, err)
		for i := 0; i < want.NumRows(); i++ {
			require.True(t, engine.Equal(wc.Value(i), gc.Value(i)), "column %s row %d", name, i)
		}
	}
}

func TestSplitChunks(t *testing.T) {
	old := minChunkBytes
	minChunkBytes = 1
	defer func() { minChunkBytes = old }()

	body := []byte("a\nbb\nccc\ndddd\neeeee\nf\n")
	for _, n := range []int{1, 2, 3, 4, 16} {
		chunks := splitChunks(body, n)
		var joined []byte
		for _, c := range chunks {
			require.True(t, len(c) > 0)
			require.Equal(t, byte('\n'), c[len(c)-1], "chunk must end on a line boundary")
			joined = append(joined, c...)
		}
		assert.Equal(t, string(body), string(joined), "n=%d", n)
	}

	quoted := []byte("1,\"multi\nline\"\n2,x\n")
	assert.Len(t, splitChunks(quoted, 4), 1)
	assert.Nil(t, splitChunks(nil, 4))
}

func TestInferSchema(t *testing.T) {
	tests := []struct {
		name    string
		content string
		opts    Options
		want    Schema
		wantErr bool
	}{
		{
			name:    "narrowest type",
			content: "a,b,c,d\n1,1.5,x,\n2,3,y,\n",
			opts:    Options{},
			want: Schema{
				{Name: "a", Type: engine.Integer},
				{Name: "b", Type: engine.Float},
				{Name: "c", Type: engine.String},
				{Name: "d", Type: engine.String},
			},
		},
		{
			name:    "override to float",
			content: "temperature,location\n20,1\n",
			opts:    Options{Types: SensorTypes},
			want: Schema{
				{Name: "temperature", Type: engine.Float},
				{Name: "location", Type: engine.String},
			},
		},
		{
			name:    "contradicted override reads leniently",
			content: "temperature\nhot\n",
			opts:    Options{Types: SensorTypes},
			want:    Schema{{Name: "temperature", Type: engine.Float, Lenient: true}},
		},
		{
			name:    "sample limit",
			content: "a\n1\nx\n",
			opts:    Options{SampleRows: 1},
			want:    Schema{{Name: "a", Type: engine.Integer}},
		},
		{
			name:    "duplicate header",
			content: "a,a\n1,2\n",
			wantErr: true,
		},
		{
			name:    "empty input",
			content: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InferSchema([]byte(tt.content), tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCSVTypeChangeAfterFirstRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("sensor_id,location,timestamp,temperature,humidity\n")
	for i := 0; i < 1500; i++ {
		fmt.Fprintf(&b, "%d,Kitchen,2024-01-01T10:00:00,20,50\n", i)
	}
	b.WriteString("S-1500,Kitchen,2024-01-01T10:00:00,20,50\n")

	tbl, err := ParseCSV([]byte(b.String()), DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, ValidateSensorTable(tbl))
	assert.Equal(t, 1501, tbl.NumRows())

	id, err := tbl.Column("sensor_id")
	require.NoError(t, err)
	assert.Equal(t, engine.String, id.Type())
	assert.Equal(t, "S-1500", id.Value(1500).Text())

	// a capped sample still misses the change
	opts := DefaultOptions()
	opts.SampleRows = 1000
	_, err = ParseCSV([]byte(b.String()), opts)
	assert.Error(t, err)
}

func TestParseCSVMalformedMeasure(t *testing.T) {
	content := `sensor_id,location,timestamp,temperature,humidity
1,Kitchen,2024-01-01T10:00:00,20,40
2,Kitchen,2024-01-01T11:00:00,N/A,50
3,Garage,2024-01-01T12:00:00,30, 60 
4,Garage,2024-01-01T13:00:00,,bad
`
	tbl, err := ParseCSV([]byte(content), DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, ValidateSensorTable(tbl))
	assert.Equal(t, 4, tbl.NumRows())

	temp, err := tbl.Column("temperature")
	require.NoError(t, err)
	assert.Equal(t, engine.Float, temp.Type())
	assert.True(t, temp.IsNull(1), "N/A should be null")
	assert.True(t, temp.IsNull(3))
	v, ok := temp.Float(2)
	require.True(t, ok)
	assert.Equal(t, 30.0, v)

	hum, err := tbl.Column("humidity")
	require.NoError(t, err)
	assert.Equal(t, engine.Float, hum.Type())
	v, ok = hum.Float(2)
	require.True(t, ok)
	assert.Equal(t, 60.0, v)
	assert.True(t, hum.IsNull(3))

	avg, err := engine.Aggregate(tbl, []string{"location"}, []engine.Measure{engine.Avg("temperature")})
	require.NoError(t, err)
	loc, err := avg.Column("location")
	require.NoError(t, err)
	got, err := avg.Column("avg_temperature")
	require.NoError(t, err)
	want := map[string]float64{"Kitchen": 20, "Garage": 30}
	require.Equal(t, 2, avg.NumRows())
	for i := 0; i < avg.NumRows(); i++ {
		v, ok := got.Float(i)
		require.True(t, ok)
		assert.Equal(t, want[loc.Value(i).Text()], v)
	}
}

func TestValidateSensorTable(t *testing.T) {
	tbl, err := ParseCSV([]byte("sensor_id,location,temperature\n1.5,a,x\n"), DefaultOptions())
	require.NoError(t, err)

	err = ValidateSensorTable(tbl)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrUnknownColumn)
	assert.ErrorIs(t, err, engine.ErrTypeMismatch)
}

func TestLoadGlob(t *testing.T) {
	dir := t.TempDir()
	header := "sensor_id,location,timestamp,temperature,humidity\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte(header+"2,Garage,2024-01-01T10:00:00,30.5,40.5\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte(header+"1,Kitchen,2024-01-01T09:00:00,20.5,45.5\n"), 0o644))

	tbl, err := Load(filepath.Join(dir, "*.csv"), DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 2, tbl.NumRows())

	loc, err := tbl.Column("location")
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", loc.Value(0).Text())
	assert.Equal(t, "Garage", loc.Value(1).Text())

	_, err = Load(filepath.Join(dir, "*.missing"), DefaultOptions())
	assert.Error(t, err)
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"), DefaultOptions())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type sensorRow struct {
	SensorID    int64   `parquet:"sensor_id"`
	Location    string  `parquet:"location"`
	Timestamp   string  `parquet:"timestamp"`
	Temperature float64 `parquet:"temperature"`
	Humidity    float64 `parquet:"humidity"`
}

func TestLoadParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)

	writer := parquet.NewGenericWriter[sensorRow](f)
	_, err = writer.Write([]sensorRow{
		{SensorID: 1, Location: "Kitchen", Timestamp: "2024-01-01T14:35:00", Temperature: 21.5, Humidity: 40},
		{SensorID: 2, Location: "Garage", Timestamp: "2024-01-01T15:00:00", Temperature: 35, Humidity: 60.5},
	})
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.NoError(t, f.Close())

	tbl, err := Load(path, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, ValidateSensorTable(tbl))
	require.Equal(t, 2, tbl.NumRows())

	id, err := tbl.Column("sensor_id")
	require.NoError(t, err)
	assert.Equal(t, "2", id.Value(1).String())

	temp, err := tbl.Column("temperature")
	require.NoError(t, err)
	assert.Equal(t, engine.Float, temp.Type())
	v, ok := temp.Float(1)
	require.True(t, ok)
	assert.Equal(t, 35.0, v)

	loc, err := tbl.Column("location")
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", loc.Value(0).Text())
}

func TestCoerce(t *testing.T) {
	v, err := coerce(engine.String, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", v.Text())

	v, err = coerce(engine.Float, float32(1.5))
	require.NoError(t, err)
	assert.Equal(t, 1.5, v.Float())

	v, err = coerce(engine.Integer, nil)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = coerce(engine.Integer, "x")
	assert.ErrorIs(t, err, engine.ErrTypeMismatch)
}
