package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"sensorstats/internal/analysis"
	"sensorstats/internal/config"
	"sensorstats/internal/engine"
	"sensorstats/internal/metrics"
	"sensorstats/internal/models"
)

// Handler serves the latest report. Until the first load completes every
// data route answers 503.
type Handler struct {
	mu       sync.RWMutex
	table    *engine.Table
	report   *analysis.Report
	status   models.Status
	cfg      config.Config
	metrics  *metrics.Metrics
	reload   func(context.Context)
	reloadMu sync.Mutex
}

// NewHandler returns a handler with no data. m may be nil.
func NewHandler(cfg config.Config, m *metrics.Metrics) *Handler {
	return &Handler{cfg: cfg, metrics: m, status: models.Status{Source: cfg.Input}}
}

// SetData swaps in a freshly loaded table and its report.
func (h *Handler) SetData(tbl *engine.Table, report *analysis.Report, source string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.table = tbl
	h.report = report
	h.status = models.Status{
		Ready:    true,
		Source:   source,
		Rows:     tbl.NumRows(),
		LoadedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// SetError records a failed load. Data from an earlier load keeps being served.
func (h *Handler) SetError(source string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status.Source = source
	h.status.Error = err.Error()
}

// OnReload installs the function run by POST /api/reload.
func (h *Handler) OnReload(fn func(context.Context)) {
	h.reload = fn
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/status", h.GetStatus)
	api.GET("/summary", h.GetSummary)
	api.GET("/locations", h.GetLocations)
	api.GET("/preview", h.GetPreview)
	api.GET("/tasks", h.ListTasks)
	api.GET("/tasks/:task", h.GetTask)
	api.GET("/aggregate", h.GetAggregate)
	api.POST("/reload", h.Reload)
}

// CountRequests is middleware feeding the request counter.
func (h *Handler) CountRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if h.metrics == nil {
			return err
		}
		code := c.Response().Status
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		} else if err != nil {
			code = http.StatusInternalServerError
		}
		h.metrics.ObserveRequest(c.Request().Method, c.Path(), code)
		return err
	}
}

func (h *Handler) snapshot() (*engine.Table, *analysis.Report, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.report == nil {
		if h.status.Error != "" {
			return nil, nil, echo.NewHTTPError(http.StatusServiceUnavailable, "load failed: "+h.status.Error)
		}
		return nil, nil, echo.NewHTTPError(http.StatusServiceUnavailable, "data is still loading")
	}
	return h.table, h.report, nil
}

// --- HANDLERS ---
func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *Handler) GetStatus(c echo.Context) error {
	h.mu.RLock()
	status := h.status
	h.mu.RUnlock()
	return c.JSON(http.StatusOK, status)
}

func (h *Handler) GetSummary(c echo.Context) error {
	_, report, err := h.snapshot()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.NewSummary(report))
}

// distinct locations, ascending
func (h *Handler) GetLocations(c echo.Context) error {
	_, report, err := h.snapshot()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.NewSummary(report).Locations)
}

// first rows of the input
func (h *Handler) GetPreview(c echo.Context) error {
	_, report, err := h.snapshot()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.NewPage(report.Preview, 0, 0))
}

func (h *Handler) ListTasks(c echo.Context) error {
	_, report, err := h.snapshot()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.NewSummary(report).Tasks)
}

// one task's output table, paginated
func (h *Handler) GetTask(c echo.Context) error {
	_, report, err := h.snapshot()
	if err != nil {
		return err
	}
	res, ok := report.Result(c.Param("task"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown task "+strconv.Quote(c.Param("task")))
	}
	limit, offset := getPaginationParams(c, res.Table.NumRows())
	page := models.NewPage(res.Table, limit, offset)
	page.Task, page.Title = res.Task, res.Title
	return c.JSON(http.StatusOK, page)
}

// GetAggregate runs an ad-hoc grouping over the loaded table:
//
//	/api/aggregate?by=location&measure=avg:temperature&measure=count:humidity&sort=avg_temperature:desc&limit=10
func (h *Handler) GetAggregate(c echo.Context) error {
	tbl, _, err := h.snapshot()
	if err != nil {
		return err
	}

	var groupBy []string
	for _, by := range c.QueryParams()["by"] {
		groupBy = append(groupBy, splitList(by)...)
	}
	var measures []engine.Measure
	for _, param := range c.QueryParams()["measure"] {
		m, err := parseMeasure(param)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
		}
		measures = append(measures, m)
	}
	var keys []engine.SortKey
	for _, param := range c.QueryParams()["sort"] {
		k, err := parseSortKey(param)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
		}
		keys = append(keys, k)
	}

	out, err := engine.Aggregate(tbl, groupBy, measures, h.cfg.EngineOptions()...)
	if err == nil && len(keys) > 0 {
		out, err = engine.Sort(out, keys...)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	limit, offset := getPaginationParams(c, out.NumRows())
	return c.JSON(http.StatusOK, models.NewPage(out, limit, offset))
}

// Reload starts a background reload of the input and returns immediately.
func (h *Handler) Reload(c echo.Context) error {
	if h.reload == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "reload is not enabled")
	}
	if !h.reloadMu.TryLock() {
		return echo.NewHTTPError(http.StatusConflict, "a reload is already running")
	}
	go func() {
		defer h.reloadMu.Unlock()
		h.reload(context.Background())
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "reloading"})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
