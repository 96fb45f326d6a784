// Package config holds every tunable of a run and binds them to command line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"sensorstats/internal/engine"
	"sensorstats/internal/ingest"
	"sensorstats/internal/logging"
)

// Output formats understood by the output package.
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatTable = "table"
)

// Config is the explicit parameter set of the analyses and their shell.
type Config struct {
	Input     string
	OutputDir string
	Format    string

	// Closed range of temperatures counted as in range.
	TempMin float64
	TempMax float64
	// TopN sensors kept by the ranking analysis.
	TopN int
	// PreviewRows printed by the exploration analysis.
	PreviewRows int
	// Hours [HourFrom, HourTo] are the pivot columns.
	HourFrom int
	HourTo   int

	Workers          int
	MinPartitionRows int
	SampleRows       int

	LogLevel string

	Addr         string
	RateLimit    float64
	RateBurst    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Default returns the parameters of the original sensor report.
func Default() Config {
	return Config{
		Input:        "sensor_data.csv",
		OutputDir:    "output",
		Format:       FormatCSV,
		TempMin:      18,
		TempMax:      30,
		TopN:         5,
		PreviewRows:  5,
		HourFrom:     0,
		HourTo:       23,
		SampleRows:   0,
		LogLevel:     "info",
		Addr:         ":8080",
		RateLimit:    20,
		RateBurst:    40,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RegisterFlags binds every field to a flag on fs, using the current values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Input, "input", c.Input, "CSV or Parquet file (glob allowed)")
	fs.StringVar(&c.OutputDir, "out", c.OutputDir, "directory for taskN_output files, empty to skip writing")
	fs.StringVar(&c.Format, "format", c.Format, "output format: csv, json or table")
	fs.Float64Var(&c.TempMin, "temp-min", c.TempMin, "lower bound of the temperature range (inclusive)")
	fs.Float64Var(&c.TempMax, "temp-max", c.TempMax, "upper bound of the temperature range (inclusive)")
	fs.IntVar(&c.TopN, "top", c.TopN, "number of sensors kept by the ranking")
	fs.IntVar(&c.PreviewRows, "preview", c.PreviewRows, "rows shown by the exploration task")
	fs.IntVar(&c.HourFrom, "hour-from", c.HourFrom, "first hour column of the pivot")
	fs.IntVar(&c.HourTo, "hour-to", c.HourTo, "last hour column of the pivot")
	fs.IntVar(&c.Workers, "workers", c.Workers, "parallel partitions, 0 for one per CPU")
	fs.IntVar(&c.MinPartitionRows, "min-partition-rows", c.MinPartitionRows, "smallest partition worth its own worker, 0 for the engine default")
	fs.IntVar(&c.SampleRows, "sample", c.SampleRows, "CSV rows sampled for type inference, 0 for all")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn, error or off")
	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP listen address")
	fs.Float64Var(&c.RateLimit, "rate", c.RateLimit, "requests per second per client, 0 disables limiting")
	fs.IntVar(&c.RateBurst, "burst", c.RateBurst, "request burst per client")
	fs.DurationVar(&c.ReadTimeout, "read-timeout", c.ReadTimeout, "HTTP read timeout")
	fs.DurationVar(&c.WriteTimeout, "write-timeout", c.WriteTimeout, "HTTP write timeout")
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Input) == "" {
		errs = append(errs, errors.New("input path is required"))
	}
	switch c.Format {
	case FormatCSV, FormatJSON, FormatTable:
	default:
		errs = append(errs, fmt.Errorf("unknown format %q (want csv, json or table)", c.Format))
	}
	if c.TempMin > c.TempMax {
		errs = append(errs, fmt.Errorf("temperature range [%g, %g] is empty", c.TempMin, c.TempMax))
	}
	if c.TopN < 0 {
		errs = append(errs, fmt.Errorf("top must not be negative, got %d", c.TopN))
	}
	if c.PreviewRows < 0 {
		errs = append(errs, fmt.Errorf("preview must not be negative, got %d", c.PreviewRows))
	}
	if c.HourFrom < 0 || c.HourTo > 23 || c.HourFrom > c.HourTo {
		errs = append(errs, fmt.Errorf("hour range %d..%d must lie within 0..23", c.HourFrom, c.HourTo))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		errs = append(errs, fmt.Errorf("rate %g and burst %d must not be negative", c.RateLimit, c.RateBurst))
	}
	return errors.Join(errs...)
}

// HourDomain lists the pivot buckets HourFrom..HourTo in order.
func (c Config) HourDomain() []engine.Value {
	if c.HourFrom > c.HourTo {
		return nil
	}
	out := make([]engine.Value, 0, c.HourTo-c.HourFrom+1)
	for h := c.HourFrom; h <= c.HourTo; h++ {
		out = append(out, engine.IntValue(int64(h)))
	}
	return out
}

// EngineOptions returns the partitioning options for engine operations.
func (c Config) EngineOptions() []engine.Option {
	opts := []engine.Option{engine.WithWorkers(c.Workers)}
	if c.MinPartitionRows > 0 {
		opts = append(opts, engine.WithMinPartitionRows(c.MinPartitionRows))
	}
	return opts
}

// IngestOptions returns the loader settings for Input.
func (c Config) IngestOptions() ingest.Options {
	opts := ingest.DefaultOptions()
	opts.Workers = c.Workers
	opts.SampleRows = c.SampleRows
	return opts
}
