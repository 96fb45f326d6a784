package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensorstats/internal/analysis"
	"sensorstats/internal/config"
	"sensorstats/internal/engine"
	"sensorstats/internal/metrics"
	"sensorstats/internal/models"
)

func loadedTable(t *testing.T) *engine.Table {
	t.Helper()
	cols := []struct {
		name string
		typ  engine.DataType
		vals []interface{}
	}{
		{"sensor_id", engine.Integer, []interface{}{1, 2, 1, 3}},
		{"location", engine.String, []interface{}{"Kitchen", "Garage", "Kitchen", "Attic"}},
		{"timestamp", engine.String, []interface{}{"2024-01-01T14:00:00", "2024-01-01T02:00:00", "2024-01-01T14:30:00", "2024-01-01T03:00:00"}},
		{"temperature", engine.Float, []interface{}{20.0, 35.0, 30.0, 10.0}},
		{"humidity", engine.Float, []interface{}{40.0, 20.0, 50.0, nil}},
	}
	var built []*engine.Column
	for _, c := range cols {
		col, err := engine.ColumnOf(c.name, c.typ, c.vals...)
		require.NoError(t, err)
		built = append(built, col)
	}
	tbl, err := engine.NewTable(built...)
	require.NoError(t, err)
	return tbl
}

type fixture struct {
	handler *Handler
	reg     *prometheus.Registry
	serve   func(method, target string) *httptest.ResponseRecorder
}

func newFixture(t *testing.T, cfg config.Config) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	h := NewHandler(cfg, metrics.NewMetrics(reg))
	e := NewServer(cfg, h, reg)
	return &fixture{
		handler: h,
		reg:     reg,
		serve: func(method, target string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(method, target, nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			return rec
		},
	}
}

func (f *fixture) load(t *testing.T) {
	t.Helper()
	tbl := loadedTable(t)
	report, err := analysis.Run(context.Background(), tbl, config.Default(), nil)
	require.NoError(t, err)
	f.handler.SetData(tbl, report, "readings.csv")
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.RateLimit = 0
	return cfg
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// page mirrors models.Page with plain maps for the rows.
type page struct {
	Task    string                   `json:"task"`
	Columns []models.Column          `json:"columns"`
	Data    []map[string]interface{} `json:"data"`
	Total   int                      `json:"total"`
	Limit   int                      `json:"limit"`
	Offset  int                      `json:"offset"`
}

func TestServiceUnavailableUntilLoaded(t *testing.T) {
	f := newFixture(t, testConfig())

	for _, route := range []string{"/api/summary", "/api/tasks", "/api/tasks/task1", "/api/locations", "/api/preview", "/api/aggregate?by=location"} {
		rec := f.serve(http.MethodGet, route)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, route)
		assert.Contains(t, rec.Body.String(), "still loading", route)
	}

	rec := f.serve(http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status models.Status
	decode(t, rec, &status)
	assert.False(t, status.Ready)

	f.handler.SetError("readings.csv", errors.New("missing column humidity"))
	rec = f.serve(http.MethodGet, "/api/summary")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing column humidity")
}

func TestSummaryAndStatus(t *testing.T) {
	f := newFixture(t, testConfig())
	f.load(t)

	rec := f.serve(http.MethodGet, "/api/status")
	var status models.Status
	decode(t, rec, &status)
	assert.True(t, status.Ready)
	assert.Equal(t, 4, status.Rows)
	assert.Equal(t, "readings.csv", status.Source)

	rec = f.serve(http.MethodGet, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary models.Summary
	decode(t, rec, &summary)
	assert.Equal(t, 4, summary.TotalRows)
	assert.Equal(t, 2, summary.InRange)
	assert.Equal(t, 2, summary.OutOfRange)
	assert.Len(t, summary.Tasks, 5)

	rec = f.serve(http.MethodGet, "/api/locations")
	var locations []string
	decode(t, rec, &locations)
	assert.Equal(t, []string{"Attic", "Garage", "Kitchen"}, locations)

	rec = f.serve(http.MethodGet, "/api/preview")
	var preview page
	decode(t, rec, &preview)
	assert.Equal(t, 4, preview.Total)

	// a failed reload keeps serving the loaded data
	f.handler.SetError("readings.csv", errors.New("disk gone"))
	rec = f.serve(http.MethodGet, "/api/summary")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.serve(http.MethodGet, "/api/status")
	decode(t, rec, &status)
	assert.Equal(t, "disk gone", status.Error)
}

func TestGetTask(t *testing.T) {
	f := newFixture(t, testConfig())
	f.load(t)

	rec := f.serve(http.MethodGet, "/api/tasks/task2")
	require.Equal(t, http.StatusOK, rec.Code)
	var p page
	decode(t, rec, &p)
	assert.Equal(t, "task2", p.Task)
	assert.Equal(t, 3, p.Total)
	require.Len(t, p.Data, 3)
	assert.Equal(t, "Garage", p.Data[0]["location"])
	assert.Equal(t, 35.0, p.Data[0]["avg_temperature"])
	assert.Nil(t, p.Data[2]["avg_humidity"], "Attic has no humidity")

	rec = f.serve(http.MethodGet, "/api/tasks/task2?limit=1&offset=1")
	p = page{}
	decode(t, rec, &p)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 1, p.Offset)
	require.Len(t, p.Data, 1)
	assert.Equal(t, "Kitchen", p.Data[0]["location"])

	rec = f.serve(http.MethodGet, "/api/tasks/task5?offset=10")
	p = page{}
	decode(t, rec, &p)
	assert.Empty(t, p.Data)
	assert.Len(t, p.Columns, 25)

	rec = f.serve(http.MethodGet, "/api/tasks/task9")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.serve(http.MethodGet, "/api/tasks")
	var tasks []models.TaskSummary
	decode(t, rec, &tasks)
	require.Len(t, tasks, 5)
	assert.Equal(t, "task1", tasks[0].Task)
}

func TestGetAggregate(t *testing.T) {
	f := newFixture(t, testConfig())
	f.load(t)

	rec := f.serve(http.MethodGet, "/api/aggregate?by=location&measure=avg:temperature&measure=count:humidity:n&sort=avg_temperature:desc")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var p page
	decode(t, rec, &p)
	require.Len(t, p.Data, 3)
	assert.Equal(t, "Garage", p.Data[0]["location"])
	assert.Equal(t, "Kitchen", p.Data[1]["location"])
	assert.Equal(t, 25.0, p.Data[1]["avg_temperature"])
	assert.Equal(t, 2.0, p.Data[1]["n"])
	assert.Equal(t, 0.0, p.Data[2]["n"])

	tests := []struct {
		name  string
		query string
	}{
		{"bad op", "by=location&measure=median:temperature"},
		{"bad measure", "by=location&measure=avg"},
		{"bad direction", "by=location&sort=location:up"},
		{"unknown column", "by=room"},
		{"string average", "by=sensor_id&measure=avg:location"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.serve(http.MethodGet, "/api/aggregate?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestReload(t *testing.T) {
	f := newFixture(t, testConfig())

	rec := f.serve(http.MethodPost, "/api/reload")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	done := make(chan struct{})
	release := make(chan struct{})
	f.handler.OnReload(func(context.Context) {
		<-release
		close(done)
	})

	rec = f.serve(http.MethodPost, "/api/reload")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec = f.serve(http.MethodPost, "/api/reload")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reload did not run")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, testConfig())
	f.serve(http.MethodGet, "/api/summary")
	f.load(t)
	f.serve(http.MethodGet, "/api/summary")

	rec := f.serve(http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `sensorstats_http_requests_total{code="503",method="GET",route="/api/summary"} 1`)
	assert.Contains(t, body, `sensorstats_http_requests_total{code="200",method="GET",route="/api/summary"} 1`)
}

func TestRateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	f := newFixture(t, cfg)

	assert.Equal(t, http.StatusOK, f.serve(http.MethodGet, "/api/status").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.serve(http.MethodGet, "/api/status").Code)
}

func TestParseHelpers(t *testing.T) {
	m, err := parseMeasure("MAX:humidity:peak")
	require.NoError(t, err)
	assert.Equal(t, "peak", m.OutputName())

	k, err := parseSortKey("hour_of_day")
	require.NoError(t, err)
	assert.Equal(t, engine.Ascending, k.Direction)

	_, err = parseSortKey(":desc")
	assert.Error(t, err)

	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
}

func TestJSONSerializer(t *testing.T) {
	f := newFixture(t, testConfig())
	e := NewServer(testConfig(), f.handler, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"ready": "yes"}`))
	c := e.NewContext(req, httptest.NewRecorder())
	var status models.Status
	err := JSONSerializer{}.Deserialize(c, &status)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)

	rec := httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, JSONSerializer{}.Serialize(c, models.Status{Ready: true}, "  "))
	assert.Contains(t, rec.Body.String(), "\n  \"ready\": true")
}
