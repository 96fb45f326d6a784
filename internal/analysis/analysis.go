// Package analysis composes engine operations into the five sensor report tasks.
package analysis

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"sensorstats/internal/config"
	"sensorstats/internal/engine"
	"sensorstats/internal/logging"
)

var logger = logging.New("analysis")

// Input columns.
const (
	ColSensorID    = "sensor_id"
	ColLocation    = "location"
	ColTimestamp   = "timestamp"
	ColTemperature = "temperature"
	ColHumidity    = "humidity"
)

// Derived columns.
const (
	ColHourOfDay      = "hour_of_day"
	ColAvgTemperature = "avg_temperature"
	ColAvgHumidity    = "avg_humidity"
	ColAvgTemp        = "avg_temp"
	ColRankTemp       = "rank_temp"
)

// Task names, also used as output file stems.
const (
	TaskExplore = "task1"
	TaskRange   = "task2"
	TaskHourly  = "task3"
	TaskRanking = "task4"
	TaskPivot   = "task5"
)

// Tasks lists the task names in report order.
var Tasks = []string{TaskExplore, TaskRange, TaskHourly, TaskRanking, TaskPivot}

var titles = map[string]string{
	TaskExplore: "Load & Basic Exploration",
	TaskRange:   "Filtering & Aggregations",
	TaskHourly:  "Time-Based Analysis",
	TaskRanking: "Sensor Ranking by Avg Temperature",
	TaskPivot:   "Pivot Table by Location and Hour",
}

// Title returns the human readable heading of a task.
func Title(task string) string { return titles[task] }

// Observer is told about every finished task.
type Observer interface {
	ObserveTask(task string, elapsed time.Duration, err error)
}

// Result is the output table of one task.
type Result struct {
	Task    string
	Title   string
	Table   *engine.Table
	Elapsed time.Duration
}

// Report is everything the five tasks produce.
type Report struct {
	TotalRows         int
	InRange           int
	OutOfRange        int
	InvalidTimestamps int
	// Preview holds the first PreviewRows input rows.
	Preview *engine.Table
	// Locations holds the distinct locations in ascending order.
	Locations *engine.Table
	Results   []Result
	Elapsed   time.Duration
}

// Result looks a task's output up by name.
func (r *Report) Result(task string) (Result, bool) {
	for _, res := range r.Results {
		if res.Task == task {
			return res, true
		}
	}
	return Result{}, false
}

// Run executes the five tasks over tbl concurrently. The hour-of-day column
// shared by the hourly and pivot tasks is derived once up front. obs may be nil.
func Run(ctx context.Context, tbl *engine.Table, cfg config.Config, obs Observer) (*Report, error) {
	start := time.Now()
	opts := cfg.EngineOptions()

	withHour, invalid, err := engine.WithHourOfDay(tbl, ColTimestamp, ColHourOfDay)
	if err != nil {
		return nil, fmt.Errorf("derive %s: %w", ColHourOfDay, err)
	}

	report := &Report{TotalRows: tbl.NumRows(), InvalidTimestamps: invalid}
	tables := make([]*engine.Table, len(Tasks))
	elapsed := make([]time.Duration, len(Tasks))

	g, ctx := errgroup.WithContext(ctx)
	run := func(i int, fn func() (*engine.Table, error)) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t0 := time.Now()
			out, err := fn()
			elapsed[i] = time.Since(t0)
			if obs != nil {
				obs.ObserveTask(Tasks[i], elapsed[i], err)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", Tasks[i], err)
			}
			logger.Infof("%s (%s) done in %v: %d rows", Tasks[i], Title(Tasks[i]), elapsed[i], out.NumRows())
			tables[i] = out
			return nil
		})
	}

	run(0, func() (*engine.Table, error) {
		preview, locations, err := Explore(tbl, cfg.PreviewRows, opts...)
		if err != nil {
			return nil, err
		}
		report.Preview, report.Locations = preview, locations
		return tbl, nil
	})
	run(1, func() (*engine.Table, error) {
		in, out, byLocation, err := TemperatureRange(tbl, cfg.TempMin, cfg.TempMax, opts...)
		if err != nil {
			return nil, err
		}
		report.InRange, report.OutOfRange = in, out
		return byLocation, nil
	})
	run(2, func() (*engine.Table, error) {
		return HourlyAverages(withHour, opts...)
	})
	run(3, func() (*engine.Table, error) {
		return TopSensors(tbl, cfg.TopN, opts...)
	})
	run(4, func() (*engine.Table, error) {
		return LocationHourPivot(withHour, cfg.HourDomain(), opts...)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, task := range Tasks {
		report.Results = append(report.Results, Result{Task: task, Title: Title(task), Table: tables[i], Elapsed: elapsed[i]})
	}
	report.Elapsed = time.Since(start)
	logger.Infof("report complete: %d rows, %d in range, %d out of range, %d invalid timestamps, %v",
		report.TotalRows, report.InRange, report.OutOfRange, report.InvalidTimestamps, report.Elapsed)
	return report, nil
}

// Explore returns the first n rows and the distinct locations in ascending order.
func Explore(tbl *engine.Table, n int, opts ...engine.Option) (preview, locations *engine.Table, err error) {
	locations, err = engine.Distinct(tbl, []string{ColLocation}, opts...)
	if err != nil {
		return nil, nil, err
	}
	if locations, err = engine.Sort(locations, engine.Asc(ColLocation)); err != nil {
		return nil, nil, err
	}
	return engine.Limit(tbl, n), locations, nil
}

// TemperatureRange counts readings inside and outside [lo, hi] and averages
// temperature and humidity per location, hottest first. Readings without a
// temperature count as out of range.
func TemperatureRange(tbl *engine.Table, lo, hi float64, opts ...engine.Option) (in, out int, byLocation *engine.Table, err error) {
	inRange, outRange, err := engine.Split(tbl, engine.Between(ColTemperature, engine.FloatValue(lo), engine.FloatValue(hi)), opts...)
	if err != nil {
		return 0, 0, nil, err
	}

	byLocation, err = engine.Aggregate(tbl, []string{ColLocation}, []engine.Measure{
		engine.Avg(ColTemperature).Alias(ColAvgTemperature),
		engine.Avg(ColHumidity).Alias(ColAvgHumidity),
	}, opts...)
	if err != nil {
		return 0, 0, nil, err
	}
	byLocation, err = engine.Sort(byLocation, engine.Desc(ColAvgTemperature), engine.Asc(ColLocation))
	if err != nil {
		return 0, 0, nil, err
	}
	return inRange.NumRows(), outRange.NumRows(), byLocation, nil
}

// HourlyAverages averages temperature per hour of day, in hour order. Rows
// whose timestamp could not be bucketed form the leading null hour.
func HourlyAverages(withHour *engine.Table, opts ...engine.Option) (*engine.Table, error) {
	hourly, err := engine.Aggregate(withHour, []string{ColHourOfDay}, []engine.Measure{
		engine.Avg(ColTemperature).Alias(ColAvgTemp),
	}, opts...)
	if err != nil {
		return nil, err
	}
	return engine.Sort(hourly, engine.Asc(ColHourOfDay))
}

// TopSensors ranks sensors by average temperature, hottest first, and keeps
// the first n. Sensors tied on average are listed by ascending id.
func TopSensors(tbl *engine.Table, n int, opts ...engine.Option) (*engine.Table, error) {
	perSensor, err := engine.Aggregate(tbl, []string{ColSensorID}, []engine.Measure{
		engine.Avg(ColTemperature).Alias(ColAvgTemp),
	}, opts...)
	if err != nil {
		return nil, err
	}
	if perSensor, err = engine.Sort(perSensor, engine.Asc(ColSensorID)); err != nil {
		return nil, err
	}
	ranked, err := engine.Rank(perSensor, ColAvgTemp, engine.Descending, ColRankTemp)
	if err != nil {
		return nil, err
	}
	return engine.Limit(ranked, n), nil
}

// LocationHourPivot lays average temperature out as one row per location and
// one column per hour in domain.
func LocationHourPivot(withHour *engine.Table, domain []engine.Value, opts ...engine.Option) (*engine.Table, error) {
	return engine.Pivot(withHour, ColLocation, ColHourOfDay, ColTemperature, domain, opts...)
}
