// Package metrics exposes load, analysis and HTTP counters to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sensorstats"

// Metrics holds all Prometheus metrics of a run.
type Metrics struct {
	LoadDuration prometheus.Histogram
	LoadErrors   prometheus.Counter
	RowsLoaded   prometheus.Gauge
	TaskDuration *prometheus.HistogramVec
	TaskErrors   *prometheus.CounterVec
	Requests     *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	loadDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "load_duration_seconds",
		Help:      "Time spent loading and validating the input",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	loadErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "load_errors_total",
		Help:      "Loads that failed",
	})

	rowsLoaded := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rows_loaded",
		Help:      "Rows in the currently served table",
	})

	taskDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Time spent per analysis task",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"task"})

	taskErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_errors_total",
		Help:      "Analysis tasks that failed",
	}, []string{"task"})

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"method", "route", "code"})

	reg.MustRegister(loadDuration, loadErrors, rowsLoaded, taskDuration, taskErrors, requests)

	return &Metrics{
		LoadDuration: loadDuration,
		LoadErrors:   loadErrors,
		RowsLoaded:   rowsLoaded,
		TaskDuration: taskDuration,
		TaskErrors:   taskErrors,
		Requests:     requests,
	}
}

// ObserveLoad records one load attempt.
func (m *Metrics) ObserveLoad(rows int, elapsed time.Duration, err error) {
	m.LoadDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.LoadErrors.Inc()
		return
	}
	m.RowsLoaded.Set(float64(rows))
}

// ObserveTask records one finished analysis task.
func (m *Metrics) ObserveTask(task string, elapsed time.Duration, err error) {
	m.TaskDuration.WithLabelValues(task).Observe(elapsed.Seconds())
	if err != nil {
		m.TaskErrors.WithLabelValues(task).Inc()
	}
}

// ObserveRequest counts one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int) {
	m.Requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}
